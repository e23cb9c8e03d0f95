package memory

import (
	"context"
	"strings"

	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type SetupRepo struct {
	db *DB
}

func NewSetupRepo(db *DB) *SetupRepo {
	return &SetupRepo{db: db}
}

func (r *SetupRepo) Initialize(_ context.Context, dept department.Request, admin employee.Employee) (employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if len(r.db.employees) > 0 {
		return employee.Employee{}, employee.ErrAlreadyInitialized
	}

	var deptID int64
	for _, d := range r.db.departments {
		if strings.EqualFold(d.Name, dept.Name) {
			deptID = d.ID
			break
		}
	}

	if deptID == 0 {
		d, err := r.db.insertDepartment(dept)
		if err != nil {
			return employee.Employee{}, err
		}
		deptID = d.ID
	}

	admin.Role = employee.RoleAdmin
	admin.Active = true
	admin.DepartmentID = &deptID
	admin.ManagerID = nil

	return r.db.insertEmployee(admin)
}
