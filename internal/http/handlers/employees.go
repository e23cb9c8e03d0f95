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

type EmployeeManager interface {
	List(ctx context.Context, caller access.Caller, roles []employee.Role) ([]employee.Employee, error)
	Get(ctx context.Context, caller access.Caller, id int64) (employee.Employee, error)
	Create(ctx context.Context, caller access.Caller, req employee.CreateEmployeeRequest) (employee.Employee, error)
	Update(ctx context.Context, caller access.Caller, id int64, req employee.UpdateEmployeeRequest) (employee.Employee, error)
	Delete(ctx context.Context, caller access.Caller, id int64) error
}

type EmployeesHandler struct {
	employees EmployeeManager
}

func NewEmployeesHandler(employees EmployeeManager) *EmployeesHandler {
	return &EmployeesHandler{employees: employees}
}

// ListEmployees handles GET /api/employees?role=ADMIN,EMPLOYEE
func (h *EmployeesHandler) ListEmployees(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	roles := employee.ParseRoles(ctx.Query("role"))

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.employees.List(cctx, caller, roles)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	if items == nil {
		items = []employee.Employee{}
	}

	ctx.JSON(http.StatusOK, items)
}

func (h *EmployeesHandler) GetEmployee(ctx *gin.Context) {
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

	e, err := h.employees.Get(cctx, caller, id)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EmployeesHandler) CreateEmployee(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	var req employee.CreateEmployeeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.employees.Create(cctx, caller, req)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.Header("Location", "/api/employees/"+formatID(e.ID))
	ctx.JSON(http.StatusCreated, e)
}

func (h *EmployeesHandler) UpdateEmployee(ctx *gin.Context) {
	caller, ok := mustCaller(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req employee.UpdateEmployeeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.employees.Update(cctx, caller, id, req)
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EmployeesHandler) DeleteEmployee(ctx *gin.Context) {
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

	if err := h.employees.Delete(cctx, caller, id); err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
