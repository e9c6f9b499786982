package endpoints

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/auth/packets"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

type UserStore interface {
	CreateUser(ctx context.Context, email, hashedPassword string, fullName, companyName *string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpdateUserProfile(ctx context.Context, id string, fullName, companyName *string) (model.User, error)
}

// SessionMonitor stops a user's display timers on logout.
type SessionMonitor interface {
	StopUserDisplayMonitoring(ctx context.Context, userID string) (int, error)
}

// AuthPublicModule mounts /auth/register and /auth/login.
func AuthPublicModule(jwtSecret string, store UserStore) api.Module {
	ctl := newAccountManager(jwtSecret, store, nil)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/register", ctl.register)
		c.PUBLIC_POST("/auth/login", ctl.login)
	})
}

// AuthSessionModule mounts the endpoints that need a valid token.
func AuthSessionModule(jwtSecret string, store UserStore, monitor SessionMonitor) api.Module {
	ctl := newAccountManager(jwtSecret, store, monitor)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/me", ctl.me)
		c.PUT("/auth/me", ctl.updateProfile)
		c.POST("/auth/logout", ctl.logout)
	})
}

type AccountManager struct {
	jwtSecret string
	store     UserStore
	monitor   SessionMonitor
}

func newAccountManager(secret string, store UserStore, monitor SessionMonitor) *AccountManager {
	return &AccountManager{jwtSecret: secret, store: store, monitor: monitor}
}

// POST /api/auth/register
func (a *AccountManager) register(ctx *gin.Context) (any, *api.APIError) {
	var request packets.RegisterRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	_, err := a.store.GetUserByEmail(ctx.Request.Context(), request.Email)
	switch {
	case err == nil:
		log.Warn().Str("email", request.Email).Msg("register email already registered")
		return nil, api.NewError(http.StatusConflict, "email already registered")
	case !errors.Is(err, db.ErrNotFound):
		log.Error().Err(err).Str("email", request.Email).Msg("failed to look up email")
		return nil, api.NewError(http.StatusInternalServerError, "failed to register user")
	}

	hashed, err := middleware.HashPassword(request.Password)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "could not hash password")
	}

	user, err := a.store.CreateUser(ctx.Request.Context(), request.Email, hashed, request.FullName, request.CompanyName)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to register user")
	}

	token, err := middleware.GenerateJWT(user.ID, a.jwtSecret)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "could not generate token")
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return api.Created(packets.SessionResponse{Token: token, User: user}), nil
}

// POST /api/auth/login
func (a *AccountManager) login(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := a.store.GetUserByEmail(ctx.Request.Context(), request.Email)
	if err != nil || !middleware.CheckPassword(user.HashedPassword, request.Password) {
		log.Warn().Str("email", request.Email).Msg("login failed")
		return nil, api.NewError(http.StatusUnauthorized, middleware.ErrInvalidCredentials.Error())
	}

	token, err := middleware.GenerateJWT(user.ID, a.jwtSecret)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "could not generate token")
	}
	return packets.SessionResponse{Token: token, User: user}, nil
}

// GET /api/auth/me
func (a *AccountManager) me(_ *gin.Context, user *model.User) (any, *api.APIError) {
	return packets.ProfileResponse{User: *user}, nil
}

// PUT /api/auth/me
func (a *AccountManager) updateProfile(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	updated, err := a.store.UpdateUserProfile(ctx.Request.Context(), user.ID, request.FullName, request.CompanyName)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to update profile")
	}
	return packets.ProfileResponse{User: updated}, nil
}

// POST /api/auth/logout
// Tokens are stateless; logging out only stops the user's monitoring.
func (a *AccountManager) logout(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	if a.monitor != nil {
		if n, err := a.monitor.StopUserDisplayMonitoring(ctx.Request.Context(), user.ID); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to stop monitoring on logout")
		} else if n > 0 {
			log.Info().Str("user_id", user.ID).Int("displays", n).Msg("monitoring stopped on logout")
		}
	}
	return packets.MessageResponse{Message: "Logged out successfully"}, nil
}
