package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/domain/department"
)

type DepartmentManager interface {
	List(ctx context.Context, caller access.Caller) ([]department.Department, error)
	Get(ctx context.Context, caller access.Caller, id int64) (department.Department, error)
	Create(ctx context.Context, caller access.Caller, req department.Request) (department.Department, error)
	Update(ctx context.Context, caller access.Caller, id int64, req department.Request) (department.Department, error)
	Delete(ctx context.Context, caller access.Caller, id int64) error
}

type DepartmentsHandler struct {
	departments DepartmentManager
}

func NewDepartmentsHandler(departments DepartmentManager) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (h *DepartmentsHandler) ListDepartments(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.departments.List(cctx, caller)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	if items == nil {
		items = []department.Department{}
	}

	ctx.JSON(http.StatusOK, items)
}

func (h *DepartmentsHandler) GetDepartment(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	d, err := h.departments.Get(cctx, caller, id)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d)
}

func (h *DepartmentsHandler) CreateDepartment(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	var req department.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	d, err := h.departments.Create(cctx, caller, req)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.Header("Location", "/api/departments/"+formatID(d.ID))
	ctx.JSON(http.StatusCreated, d)
}

func (h *DepartmentsHandler) UpdateDepartment(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req department.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	d, err := h.departments.Update(cctx, caller, id, req)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, d)
}

func (h *DepartmentsHandler) DeleteDepartment(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.departments.Delete(cctx, caller, id); err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
