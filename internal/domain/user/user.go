package user

import (
	"errors"
	"time"
)

type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON

	Profile

	Subscriber bool       `json:"subscriber"`
	TrialEnd   *time.Time `json:"trialEnd"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile holds the self-service fields. Entitlement fields are deliberately not part of it.
type Profile struct {
	Age       *int    `json:"age,omitempty"`
	Sex       *string `json:"sex,omitempty"`
	Ethnicity *string `json:"ethnicity,omitempty"`
	HairColor *string `json:"hairColor,omitempty"`
	SkinColor *string `json:"skinColor,omitempty"`
	EyeColor  *string `json:"eyeColor,omitempty"`
	BodyType  *string `json:"bodyType,omitempty"`
	Weight    *int    `json:"weight,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already in use")
	ErrUsernameTaken = errors.New("username already taken")
)

type SignUpRequest struct {
	FirstName string `json:"firstName" binding:"required,max=80"`
	LastName  string `json:"lastName" binding:"required,max=80"`
	Username  string `json:"username" binding:"required,min=3,max=40"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`

	UpdateProfileRequest
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest only lists the fields a user may change on their own record.
// subscriber and trialEnd are unknown to the decoder and silently dropped.
type UpdateProfileRequest struct {
	Age       *int    `json:"age" binding:"omitempty,min=18,max=120"`
	Sex       *string `json:"sex" binding:"omitempty,max=40"`
	Ethnicity *string `json:"ethnicity" binding:"omitempty,max=80"`
	HairColor *string `json:"hairColor" binding:"omitempty,max=40"`
	SkinColor *string `json:"skinColor" binding:"omitempty,max=40"`
	EyeColor  *string `json:"eyeColor" binding:"omitempty,max=40"`
	BodyType  *string `json:"bodyType" binding:"omitempty,max=40"`
	Weight    *int    `json:"weight" binding:"omitempty,min=1,max=1000"`
	Avatar    *string `json:"avatar" binding:"omitempty"`
}

// Apply copies the non-nil fields of req onto p.
func (p *Profile) Apply(req UpdateProfileRequest) {
	if req.Age != nil {
		p.Age = req.Age
	}
	if req.Sex != nil {
		p.Sex = req.Sex
	}
	if req.Ethnicity != nil {
		p.Ethnicity = req.Ethnicity
	}
	if req.HairColor != nil {
		p.HairColor = req.HairColor
	}
	if req.SkinColor != nil {
		p.SkinColor = req.SkinColor
	}
	if req.EyeColor != nil {
		p.EyeColor = req.EyeColor
	}
	if req.BodyType != nil {
		p.BodyType = req.BodyType
	}
	if req.Weight != nil {
		p.Weight = req.Weight
	}
	if req.Avatar != nil {
		p.Avatar = req.Avatar
	}
}
