package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/entitlement"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	EnsureTrialEnd(ctx context.Context, id string, trialEnd time.Time) (user.User, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, username string) (string, error)
}

type AuthHandler struct {
	users UserStore
	jwt   TokenIssuer
	clock entitlement.Clock
	trial time.Duration
	log   *slog.Logger
}

func NewAuthHandler(users UserStore, jwt TokenIssuer, clock entitlement.Clock, trial time.Duration, log *slog.Logger) *AuthHandler {
	if clock == nil {
		clock = entitlement.SystemClock
	}
	if trial <= 0 {
		trial = entitlement.DefaultTrial
	}
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		users: users,
		jwt:   jwt,
		clock: clock,
		trial: trial,
		log:   log,
	}
}

type sessionResponse struct {
	User        user.User            `json:"user"`
	Token       string               `json:"token,omitempty"`
	Entitlement entitlement.Snapshot `json:"entitlement"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	now := h.clock()
	u, err := h.users.Create(cctx, user.NewFromSignUp(req, hash, now.Add(h.trial), now))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, user.ErrUsernameTaken):
			RespondConflict(ctx, "username_taken", "Username is already taken.")
		default:
			h.log.ErrorContext(cctx, "register failed", "op", "users.create", "err", err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.respondSession(ctx, http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	found, err := h.users.GetByUsername(cctx, strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.ErrorContext(cctx, "login lookup failed", "op", "users.get_by_username", "err", err)
		}
		RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		return
	}

	found, err = h.ensureTrial(cctx, found)
	if err != nil {
		RespondInternal(ctx, "Could not start session")
		return
	}

	h.respondSession(ctx, http.StatusOK, found)
}

// Profile returns the caller's record with a fresh token, provisioning a trial if
// the account predates trials.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	u, err := h.ensureTrial(cctx, u)
	if err != nil {
		RespondInternal(ctx, "Could not load profile")
		return
	}

	h.respondSession(ctx, http.StatusOK, u)
}

// UpdateProfile only touches self-service fields; subscriber and trialEnd are not writable here.
func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	profile := u.Profile
	profile.Apply(req)

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	updated, err := h.users.UpdateProfile(cctx, u.ID, profile)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Not authorized")
			return
		}
		h.log.ErrorContext(cctx, "update profile failed", "op", "users.update_profile", "user_id", u.ID, "err", err)
		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, sessionResponse{
		User:        updated,
		Entitlement: entitlement.NewSnapshot(updated.Subscriber, updated.TrialEnd, h.clock()),
	})
}

func (h *AuthHandler) ensureTrial(ctx context.Context, u user.User) (user.User, error) {
	trialEnd, assign := entitlement.EnsureTrialEnd(u.TrialEnd, h.clock(), h.trial)
	if !assign {
		return u, nil
	}

	updated, err := h.users.EnsureTrialEnd(ctx, u.ID, trialEnd)
	if err != nil {
		h.log.ErrorContext(ctx, "ensure trial failed", "op", "users.ensure_trial_end", "user_id", u.ID, "err", err)
		return user.User{}, err
	}

	return updated, nil
}

func (h *AuthHandler) respondSession(ctx *gin.Context, status int, u user.User) {
	token, err := h.jwt.GenerateAccessToken(u.ID, u.Username)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(status, sessionResponse{
		User:        u,
		Token:       token,
		Entitlement: entitlement.NewSnapshot(u.Subscriber, u.TrialEnd, h.clock()),
	})
}
