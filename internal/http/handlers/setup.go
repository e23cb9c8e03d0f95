package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type SystemInitializer interface {
	NeedsSetup(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, req employee.SetupRequest) (string, employee.Employee, error)
}

type SetupHandler struct {
	setup SystemInitializer
}

func NewSetupHandler(setup SystemInitializer) *SetupHandler {
	return &SetupHandler{setup: setup}
}

type SetupStatusResponse struct {
	NeedsSetup bool `json:"needsSetup"`
}

func (h *SetupHandler) Status(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	needs, err := h.setup.NeedsSetup(cctx)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, SetupStatusResponse{NeedsSetup: needs})
}

func (h *SetupHandler) Initialize(ctx *gin.Context) {
	var req employee.SetupRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	token, _, err := h.setup.Initialize(cctx, req)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
