package user

import (
	"time"

	"github.com/google/uuid"
)

// NewFromSignUp builds a user record. trialEnd is provisioned by the caller.
func NewFromSignUp(req SignUpRequest, passwordHash string, trialEnd time.Time, now time.Time) User {
	u := User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		TrialEnd:     &trialEnd,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.Profile.Apply(req.UpdateProfileRequest)

	return u
}
