package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, caller access.Caller) (employee.Employee, error)
	GuestAccess(ctx context.Context) (string, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt + throttle store round trips
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	token, err := h.auth.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.auth.Me(cctx, caller)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *AuthHandler) GuestAccess(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	token, err := h.auth.GuestAccess(cctx)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
