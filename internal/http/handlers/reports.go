package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/domain/orgchart"
)

type OrgChartReporter interface {
	OrgChart(ctx context.Context, caller access.Caller, departmentID *int64) ([]*orgchart.Node, error)
}

type ReportsHandler struct {
	reports OrgChartReporter
}

func NewReportsHandler(reports OrgChartReporter) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// OrgChart handles GET /api/reports/orgchart?departmentId=3
func (h *ReportsHandler) OrgChart(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	departmentID, ok := optionalQueryID(ctx, "departmentId")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	roots, err := h.reports.OrgChart(cctx, caller, departmentID)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, roots)
}
