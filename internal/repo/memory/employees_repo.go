package memory

import (
	"context"

	"github.com/geocoder89/ems/internal/domain/employee"
)

type EmployeesRepo struct {
	db *DB
}

func NewEmployeesRepo(db *DB) *EmployeesRepo {
	return &EmployeesRepo{db: db}
}

func (r *EmployeesRepo) List(_ context.Context, roles []employee.Role) ([]employee.Employee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := r.db.sortedEmployees()
	if len(roles) == 0 {
		return all, nil
	}

	wanted := make(map[employee.Role]struct{}, len(roles))
	for _, role := range roles {
		wanted[role] = struct{}{}
	}

	out := make([]employee.Employee, 0, len(all))
	for _, e := range all {
		if _, ok := wanted[e.Role]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *EmployeesRepo) GetByID(_ context.Context, id int64) (employee.Employee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	e, ok := r.db.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrNotFound
	}
	return r.db.hydrate(e), nil
}

func (r *EmployeesRepo) GetByEmail(_ context.Context, email string) (employee.Employee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	key := employee.NormalizeEmail(email)
	for _, e := range r.db.employees {
		if e.Email == key {
			return r.db.hydrate(e), nil
		}
	}
	return employee.Employee{}, employee.ErrNotFound
}

func (r *EmployeesRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.employees), nil
}

func (r *EmployeesRepo) ManagerOf(_ context.Context, id int64) (*int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	e, ok := r.db.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return e.ManagerID, nil
}

func (r *EmployeesRepo) Create(_ context.Context, e employee.Employee) (employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.insertEmployee(e)
}

// insertEmployee assigns the id and timestamps. Callers hold mu.
func (db *DB) insertEmployee(e employee.Employee) (employee.Employee, error) {
	e.Email = employee.NormalizeEmail(e.Email)

	if db.emailTaken(e.Email, 0) {
		return employee.Employee{}, employee.ErrEmailTaken
	}
	if !db.referencesExist(e.DepartmentID, e.ManagerID) {
		return employee.Employee{}, employee.ErrInvalidReference
	}

	db.nextEmpID++
	now := db.now()

	e.ID = db.nextEmpID
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Department = nil
	e.Manager = nil

	db.employees[e.ID] = e
	return db.hydrate(e), nil
}

func (r *EmployeesRepo) Update(_ context.Context, e employee.Employee) (employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.employees[e.ID]
	if !ok {
		return employee.Employee{}, employee.ErrNotFound
	}

	e.Email = employee.NormalizeEmail(e.Email)

	if r.db.emailTaken(e.Email, e.ID) {
		return employee.Employee{}, employee.ErrEmailTaken
	}
	if !r.db.referencesExist(e.DepartmentID, e.ManagerID) {
		return employee.Employee{}, employee.ErrInvalidReference
	}

	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = r.db.now()
	e.Department = nil
	e.Manager = nil

	r.db.employees[e.ID] = e
	return r.db.hydrate(e), nil
}

func (r *EmployeesRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.employees[id]; !ok {
		return employee.ErrNotFound
	}

	now := r.db.now()
	for rid, e := range r.db.employees {
		if e.ManagerID != nil && *e.ManagerID == id {
			e.ManagerID = nil
			e.UpdatedAt = now
			r.db.employees[rid] = e
		}
	}

	delete(r.db.employees, id)
	return nil
}
