package service

import (
	"context"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/department"
)

type DepartmentService struct {
	store DepartmentStore
	gate  *access.Gate
	dir   *Directory
}

func NewDepartmentService(store DepartmentStore, gate *access.Gate, dir *Directory) *DepartmentService {
	return &DepartmentService{store: store, gate: gate, dir: dir}
}

func (s *DepartmentService) List(ctx context.Context, caller access.Caller) ([]department.Department, error) {
	if err := s.gate.Authorize(caller, access.ListDepartments, nil); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *DepartmentService) Get(ctx context.Context, caller access.Caller, id int64) (department.Department, error) {
	if err := s.gate.Authorize(caller, access.ViewDepartment, &id); err != nil {
		return department.Department{}, err
	}
	return s.store.GetByID(ctx, id)
}

func (s *DepartmentService) Create(ctx context.Context, caller access.Caller, req department.Request) (department.Department, error) {
	if err := s.gate.Authorize(caller, access.CreateDepartment, nil); err != nil {
		return department.Department{}, err
	}
	return s.store.Create(ctx, req)
}

func (s *DepartmentService) Update(ctx context.Context, caller access.Caller, id int64, req department.Request) (department.Department, error) {
	if err := s.gate.Authorize(caller, access.UpdateDepartment, &id); err != nil {
		return department.Department{}, err
	}

	d, err := s.store.Update(ctx, id, req)
	if err != nil {
		return department.Department{}, err
	}

	s.dir.Invalidate()
	return d, nil
}

// Delete removes the department; its members keep their records without one.
func (s *DepartmentService) Delete(ctx context.Context, caller access.Caller, id int64) error {
	if err := s.gate.Authorize(caller, access.DeleteDepartment, &id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.dir.Invalidate()
	return nil
}
