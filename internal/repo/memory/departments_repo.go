package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/ems/internal/domain/department"
)

type DepartmentsRepo struct {
	db *DB
}

func NewDepartmentsRepo(db *DB) *DepartmentsRepo {
	return &DepartmentsRepo{db: db}
}

func (r *DepartmentsRepo) List(_ context.Context) ([]department.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]department.Department, 0, len(r.db.departments))
	for _, d := range r.db.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *DepartmentsRepo) GetByID(_ context.Context, id int64) (department.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	d, ok := r.db.departments[id]
	if !ok {
		return department.Department{}, department.ErrNotFound
	}
	return d, nil
}

func (r *DepartmentsRepo) Create(_ context.Context, req department.Request) (department.Department, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.insertDepartment(req)
}

// insertDepartment assigns the id. Callers hold mu.
func (db *DB) insertDepartment(req department.Request) (department.Department, error) {
	if db.nameTaken(req.Name, 0) {
		return department.Department{}, department.ErrNameTaken
	}

	db.nextDeptID++
	d := department.Department{
		ID:          db.nextDeptID,
		Name:        req.Name,
		Description: req.Description,
	}
	db.departments[d.ID] = d
	return d, nil
}

func (r *DepartmentsRepo) Update(_ context.Context, id int64, req department.Request) (department.Department, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.departments[id]; !ok {
		return department.Department{}, department.ErrNotFound
	}
	if r.db.nameTaken(req.Name, id) {
		return department.Department{}, department.ErrNameTaken
	}

	d := department.Department{ID: id, Name: req.Name, Description: req.Description}
	r.db.departments[id] = d
	return d, nil
}

func (r *DepartmentsRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.departments[id]; !ok {
		return department.ErrNotFound
	}

	now := r.db.now()
	for eid, e := range r.db.employees {
		if e.DepartmentID != nil && *e.DepartmentID == id {
			e.DepartmentID = nil
			e.UpdatedAt = now
			r.db.employees[eid] = e
		}
	}

	delete(r.db.departments, id)
	return nil
}
