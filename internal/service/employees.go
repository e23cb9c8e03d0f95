package service

import (
	"context"
	"log/slog"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type EmployeeService struct {
	store  EmployeeStore
	depts  DepartmentStore
	gate   *access.Gate
	hasher PasswordHasher
	dir    *Directory
	log    *slog.Logger
}

func NewEmployeeService(store EmployeeStore, depts DepartmentStore, gate *access.Gate, hasher PasswordHasher, dir *Directory, log *slog.Logger) *EmployeeService {
	return &EmployeeService{
		store:  store,
		depts:  depts,
		gate:   gate,
		hasher: hasher,
		dir:    dir,
		log:    loggerOrDefault(log),
	}
}

// List returns the employees the caller may see, optionally narrowed to roles.
func (s *EmployeeService) List(ctx context.Context, caller access.Caller, roles []employee.Role) ([]employee.Employee, error) {
	if err := s.gate.Authorize(caller, access.ListEmployees, nil); err != nil {
		return nil, err
	}

	all, err := s.store.List(ctx, roles)
	if err != nil {
		return nil, err
	}

	return s.gate.Visible(caller, all), nil
}

// Get reports ErrNotFound for records hidden from the caller.
func (s *EmployeeService) Get(ctx context.Context, caller access.Caller, id int64) (employee.Employee, error) {
	if !s.gate.CanView(caller, id) {
		return employee.Employee{}, employee.ErrNotFound
	}
	return s.store.GetByID(ctx, id)
}

func (s *EmployeeService) Create(ctx context.Context, caller access.Caller, req employee.CreateEmployeeRequest) (employee.Employee, error) {
	if err := s.gate.Authorize(caller, access.CreateEmployee, nil); err != nil {
		return employee.Employee{}, err
	}

	deptID := req.ResolvedDepartmentID()
	if err := s.checkDepartment(ctx, deptID); err != nil {
		return employee.Employee{}, err
	}

	if err := employee.ValidateManager(ctx, s.store, nil, req.ManagerID); err != nil {
		return employee.Employee{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return employee.Employee{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	created, err := s.store.Create(ctx, employee.Employee{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		JobTitle:     req.JobTitle,
		Active:       active,
		Role:         req.Role,
		DepartmentID: deptID,
		ManagerID:    req.ManagerID,
	})
	if err != nil {
		return employee.Employee{}, err
	}

	s.dir.Invalidate()
	s.log.InfoContext(ctx, "employee created", "employee_id", created.ID, "role", created.Role, "caller_id", caller.ID)

	return created, nil
}

// Update replaces the employee's fields. A blank password keeps the stored
// hash and a missing active flag keeps the stored value.
func (s *EmployeeService) Update(ctx context.Context, caller access.Caller, id int64, req employee.UpdateEmployeeRequest) (employee.Employee, error) {
	if err := s.gate.Authorize(caller, access.UpdateEmployee, &id); err != nil {
		return employee.Employee{}, err
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return employee.Employee{}, err
	}

	if err := s.gate.CheckSelfUpdate(caller, current, req.Role, req.Active); err != nil {
		return employee.Employee{}, err
	}

	deptID := req.ResolvedDepartmentID()
	if err := s.checkDepartment(ctx, deptID); err != nil {
		return employee.Employee{}, err
	}

	if err := employee.ValidateManager(ctx, s.store, &id, req.ManagerID); err != nil {
		return employee.Employee{}, err
	}

	hash := current.PasswordHash
	if req.Password != "" {
		hash, err = s.hasher.Hash(req.Password)
		if err != nil {
			return employee.Employee{}, err
		}
	}

	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}

	updated, err := s.store.Update(ctx, employee.Employee{
		ID:           id,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		JobTitle:     req.JobTitle,
		Active:       active,
		Role:         req.Role,
		DepartmentID: deptID,
		ManagerID:    req.ManagerID,
	})
	if err != nil {
		return employee.Employee{}, err
	}

	s.dir.Invalidate()
	return updated, nil
}

// Delete removes the employee; its direct reports lose their manager link.
func (s *EmployeeService) Delete(ctx context.Context, caller access.Caller, id int64) error {
	if err := s.gate.Authorize(caller, access.DeleteEmployee, &id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.dir.Invalidate()
	s.log.InfoContext(ctx, "employee deleted", "employee_id", id, "caller_id", caller.ID)

	return nil
}

func (s *EmployeeService) checkDepartment(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}

	_, err := s.depts.GetByID(ctx, *id)
	return err
}
