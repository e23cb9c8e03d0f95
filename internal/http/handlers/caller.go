package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/http/middlewares"
)

func mustCaller(ctx *gin.Context) (access.Caller, bool) {
	caller, ok := middlewares.CallerFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return access.Caller{}, false
	}
	return caller, true
}
