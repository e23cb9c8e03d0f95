package employee

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleGuest    Role = "GUEST"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleGuest:
		return true
	}
	return false
}

// ParseRoles splits a comma separated role filter such as "ADMIN,EMPLOYEE".
// Unknown names are skipped rather than rejected.
func ParseRoles(raw string) []Role {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []Role
	for _, part := range strings.Split(raw, ",") {
		r := Role(strings.ToUpper(strings.TrimSpace(part)))
		if r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}

var (
	ErrNotFound           = errors.New("employee not found")
	ErrManagerNotFound    = fmt.Errorf("manager %w", ErrNotFound)
	ErrEmailTaken         = errors.New("email already in use")
	ErrSelfManagement     = errors.New("an employee cannot be their own manager")
	ErrManagementCycle    = errors.New("assigning this manager would create a management cycle")
	ErrInvalidReference   = errors.New("employee references a missing department or manager")
	ErrAlreadyInitialized = errors.New("system is already initialized")
)

// IsValidationError reports whether err is one of the manager assignment rule violations.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrSelfManagement) || errors.Is(err, ErrManagementCycle)
}

type DepartmentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ManagerSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	JobTitle  string `json:"jobTitle"`
}

// Employee is the stored record. DepartmentID and ManagerID are the writable
// links; Department and Manager are read-side summaries filled in by the store.
type Employee struct {
	ID           int64           `json:"id"`
	Active       bool            `json:"active"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         Role            `json:"role"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	JobTitle     string          `json:"jobTitle"`
	DepartmentID *int64          `json:"-"`
	Department   *DepartmentRef  `json:"department"`
	ManagerID    *int64          `json:"managerId"`
	Manager      *ManagerSummary `json:"manager"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Employee) Summary() ManagerSummary {
	return ManagerSummary{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     e.Email,
		JobTitle:  e.JobTitle,
	}
}

// NormalizeEmail is the canonical form used for lookups and throttle keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type DepartmentInput struct {
	ID int64 `json:"id" binding:"required,min=1"`
}

type CreateEmployeeRequest struct {
	Email        string           `json:"email" binding:"required,email,max=254"`
	Password     string           `json:"password" binding:"required,min=8,max=72"`
	FirstName    string           `json:"firstName" binding:"required,max=100"`
	LastName     string           `json:"lastName" binding:"required,max=100"`
	JobTitle     string           `json:"jobTitle" binding:"omitempty,max=120"`
	Active       *bool            `json:"active"`
	Role         Role             `json:"role" binding:"required,oneof=ADMIN EMPLOYEE GUEST"`
	Department   *DepartmentInput `json:"department"`
	DepartmentID *int64           `json:"departmentId" binding:"omitempty,min=1"`
	ManagerID    *int64           `json:"managerId" binding:"omitempty,min=1"`
}

func (r CreateEmployeeRequest) ResolvedDepartmentID() *int64 {
	return resolveDepartment(r.DepartmentID, r.Department)
}

// UpdateEmployeeRequest is a full replacement except for Password (blank keeps
// the stored hash) and Active (nil keeps the stored flag).
type UpdateEmployeeRequest struct {
	Email        string           `json:"email" binding:"required,email,max=254"`
	Password     string           `json:"password" binding:"omitempty,min=8,max=72"`
	FirstName    string           `json:"firstName" binding:"required,max=100"`
	LastName     string           `json:"lastName" binding:"required,max=100"`
	JobTitle     string           `json:"jobTitle" binding:"omitempty,max=120"`
	Active       *bool            `json:"active"`
	Role         Role             `json:"role" binding:"required,oneof=ADMIN EMPLOYEE GUEST"`
	Department   *DepartmentInput `json:"department"`
	DepartmentID *int64           `json:"departmentId" binding:"omitempty,min=1"`
	ManagerID    *int64           `json:"managerId" binding:"omitempty,min=1"`
}

func (r UpdateEmployeeRequest) ResolvedDepartmentID() *int64 {
	return resolveDepartment(r.DepartmentID, r.Department)
}

// department.id wins over departmentId when both are sent
func resolveDepartment(id *int64, ref *DepartmentInput) *int64 {
	if ref != nil {
		v := ref.ID
		return &v
	}
	return id
}

// SetupRequest describes the first administrator created on an empty system.
type SetupRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
}
