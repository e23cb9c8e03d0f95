package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
)

// DB is the process-local backing store shared by the memory repositories so
// cross-table rules (reference checks, detaching on delete) hold.
type DB struct {
	mu          sync.RWMutex
	employees   map[int64]employee.Employee
	departments map[int64]department.Department
	nextEmpID   int64
	nextDeptID  int64
	now         func() time.Time
}

func NewDB() *DB {
	return &DB{
		employees:   make(map[int64]employee.Employee),
		departments: make(map[int64]department.Department),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// hydrate fills the read-side department and manager summaries. Callers hold mu.
func (db *DB) hydrate(e employee.Employee) employee.Employee {
	e.Department = nil
	e.Manager = nil

	if e.DepartmentID != nil {
		if d, ok := db.departments[*e.DepartmentID]; ok {
			e.Department = &employee.DepartmentRef{ID: d.ID, Name: d.Name}
		}
	}

	if e.ManagerID != nil {
		if m, ok := db.employees[*e.ManagerID]; ok {
			s := m.Summary()
			e.Manager = &s
		}
	}

	return e
}

func (db *DB) sortedEmployees() []employee.Employee {
	out := make([]employee.Employee, 0, len(db.employees))
	for _, e := range db.employees {
		out = append(out, db.hydrate(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *DB) emailTaken(email string, exceptID int64) bool {
	for id, e := range db.employees {
		if id != exceptID && strings.EqualFold(e.Email, email) {
			return true
		}
	}
	return false
}

func (db *DB) nameTaken(name string, exceptID int64) bool {
	for id, d := range db.departments {
		if id != exceptID && strings.EqualFold(d.Name, name) {
			return true
		}
	}
	return false
}

// referencesExist mirrors the foreign keys of the relational schema.
func (db *DB) referencesExist(deptID, managerID *int64) bool {
	if deptID != nil {
		if _, ok := db.departments[*deptID]; !ok {
			return false
		}
	}
	if managerID != nil {
		if _, ok := db.employees[*managerID]; !ok {
			return false
		}
	}
	return true
}
