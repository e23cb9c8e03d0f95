package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/geocoder89/ems/internal/observability"
)

// selectEmployees reads employees together with their department name and
// manager summary.
const selectEmployees = `
	SELECT e.id, e.email, e.password_hash, e.first_name, e.last_name, e.job_title,
	       e.active, e.role, e.department_id, d.name, e.manager_id,
	       m.first_name, m.last_name, m.email, m.job_title,
	       e.created_at, e.updated_at
	FROM employees e
	LEFT JOIN departments d ON d.id = e.department_id
	LEFT JOIN employees m ON m.id = e.manager_id
`

type EmployeesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEmployeesRepo(pool *pgxpool.Pool, prom *observability.Prom) *EmployeesRepo {
	return &EmployeesRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EmployeesRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (employee.Employee, error) {
	var e employee.Employee
	var role string
	var deptName *string
	var mFirst, mLast, mEmail, mJobTitle *string

	err := row.Scan(
		&e.ID,
		&e.Email,
		&e.PasswordHash,
		&e.FirstName,
		&e.LastName,
		&e.JobTitle,
		&e.Active,
		&role,
		&e.DepartmentID,
		&deptName,
		&e.ManagerID,
		&mFirst,
		&mLast,
		&mEmail,
		&mJobTitle,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return employee.Employee{}, err
	}

	e.Role = employee.Role(role)

	if e.DepartmentID != nil && deptName != nil {
		e.Department = &employee.DepartmentRef{ID: *e.DepartmentID, Name: *deptName}
	}

	if e.ManagerID != nil && mEmail != nil {
		e.Manager = &employee.ManagerSummary{
			ID:        *e.ManagerID,
			FirstName: deref(mFirst),
			LastName:  deref(mLast),
			Email:     *mEmail,
			JobTitle:  deref(mJobTitle),
		}
	}

	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// List returns employees ordered by id. A non-empty roles slice restricts
// the result to those roles.
func (r *EmployeesRepo) List(ctx context.Context, roles []employee.Role) ([]employee.Employee, error) {
	query := selectEmployees
	var args []any

	if len(roles) > 0 {
		names := make([]string, 0, len(roles))
		for _, role := range roles {
			names = append(names, string(role))
		}
		query += ` WHERE e.role = ANY($1)`
		args = append(args, names)
	}

	query += ` ORDER BY e.id ASC`

	out := make([]employee.Employee, 0)

	err := r.observe("employees.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEmployee(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list employees")
	}

	return out, nil
}

func (r *EmployeesRepo) GetByID(ctx context.Context, id int64) (employee.Employee, error) {
	return r.getOne(ctx, "employees.get_by_id", selectEmployees+` WHERE e.id = $1`, id)
}

func (r *EmployeesRepo) GetByEmail(ctx context.Context, email string) (employee.Employee, error) {
	return r.getOne(ctx, "employees.get_by_email", selectEmployees+` WHERE lower(e.email) = lower($1)`, employee.NormalizeEmail(email))
}

func (r *EmployeesRepo) getOne(ctx context.Context, op, query string, arg any) (employee.Employee, error) {
	var e employee.Employee

	err := r.observe(op, func() error {
		var err error
		e, err = scanEmployee(r.pool.QueryRow(ctx, query, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrNotFound
		}
		return employee.Employee{}, pkgerrors.Wrap(err, op)
	}

	return e, nil
}

func (r *EmployeesRepo) Count(ctx context.Context) (int, error) {
	var n int

	err := r.observe("employees.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n)
	})
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count employees")
	}

	return n, nil
}

// ManagerOf returns the manager id recorded for the employee.
func (r *EmployeesRepo) ManagerOf(ctx context.Context, id int64) (*int64, error) {
	var manager *int64

	err := r.observe("employees.manager_of", func() error {
		return r.pool.QueryRow(ctx, `SELECT manager_id FROM employees WHERE id = $1`, id).Scan(&manager)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "employee manager lookup")
	}

	return manager, nil
}

func (r *EmployeesRepo) Create(ctx context.Context, e employee.Employee) (employee.Employee, error) {
	var id int64

	err := r.observe("employees.create", func() error {
		return r.pool.QueryRow(ctx, `
		INSERT INTO employees (email, password_hash, first_name, last_name, job_title, active, role, department_id, manager_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		RETURNING id
	`, employee.NormalizeEmail(e.Email), e.PasswordHash, e.FirstName, e.LastName, e.JobTitle, e.Active, string(e.Role), e.DepartmentID, e.ManagerID).Scan(&id)
	})
	if err != nil {
		return employee.Employee{}, mapEmployeeWriteErr(err, "create employee")
	}

	return r.GetByID(ctx, id)
}

// Update replaces every writable column of the employee with e.
func (r *EmployeesRepo) Update(ctx context.Context, e employee.Employee) (employee.Employee, error) {
	var tag pgconn.CommandTag

	err := r.observe("employees.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE employees
			SET email = $2,
			    password_hash = $3,
			    first_name = $4,
			    last_name = $5,
			    job_title = $6,
			    active = $7,
			    role = $8,
			    department_id = $9,
			    manager_id = $10,
			    updated_at = NOW()
		WHERE id = $1
	`, e.ID, employee.NormalizeEmail(e.Email), e.PasswordHash, e.FirstName, e.LastName, e.JobTitle, e.Active, string(e.Role), e.DepartmentID, e.ManagerID)
		return err
	})
	if err != nil {
		return employee.Employee{}, mapEmployeeWriteErr(err, "update employee")
	}

	if tag.RowsAffected() == 0 {
		return employee.Employee{}, employee.ErrNotFound
	}

	return r.GetByID(ctx, e.ID)
}

// Delete detaches the employee's direct reports and removes the row in one
// transaction.
func (r *EmployeesRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return pkgerrors.Wrap(err, "begin delete employee")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("employees.delete.detach_reports", func() error {
		_, e := tx.Exec(ctx, `UPDATE employees SET manager_id = NULL, updated_at = NOW() WHERE manager_id = $1`, id)
		return e
	})
	if err != nil {
		return pkgerrors.Wrap(err, "detach direct reports")
	}

	var tag pgconn.CommandTag
	err = r.observe("employees.delete", func() error {
		var e error
		tag, e = tx.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return pkgerrors.Wrap(err, "delete employee")
	}

	if tag.RowsAffected() == 0 {
		return employee.ErrNotFound
	}

	return pkgerrors.Wrap(tx.Commit(ctx), "commit delete employee")
}

func mapEmployeeWriteErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err):
		return employee.ErrEmailTaken
	case isForeignKeyViolation(err):
		return employee.ErrInvalidReference
	default:
		return pkgerrors.Wrap(err, msg)
	}
}
