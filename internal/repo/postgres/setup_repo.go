package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/geocoder89/ems/internal/observability"
)

// setupLockKey serialises concurrent first-run initialisations.
const setupLockKey int64 = 0x656d735f7365 // "ems_se"

type SetupRepo struct {
	pool      *pgxpool.Pool
	prom      *observability.Prom
	employees *EmployeesRepo
}

func NewSetupRepo(pool *pgxpool.Pool, prom *observability.Prom, employees *EmployeesRepo) *SetupRepo {
	return &SetupRepo{
		pool:      pool,
		prom:      prom,
		employees: employees,
	}
}

// Initialize creates the default department and the first administrator,
// provided no employee exists yet.
func (r *SetupRepo) Initialize(ctx context.Context, dept department.Request, admin employee.Employee) (employee.Employee, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return employee.Employee{}, pkgerrors.Wrap(err, "begin setup")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var count int
	err = r.prom.ObserveDB("setup.check", func() error {
		if _, e := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, setupLockKey); e != nil {
			return e
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count)
	})
	if err != nil {
		return employee.Employee{}, pkgerrors.Wrap(err, "check setup state")
	}

	if count > 0 {
		return employee.Employee{}, employee.ErrAlreadyInitialized
	}

	var deptID int64
	err = r.prom.ObserveDB("setup.department", func() error {
		e := tx.QueryRow(ctx, `SELECT id FROM departments WHERE lower(name) = lower($1)`, dept.Name).Scan(&deptID)
		if !errors.Is(e, pgx.ErrNoRows) {
			return e
		}
		return tx.QueryRow(ctx, `
		INSERT INTO departments (name, description)
		VALUES ($1, $2)
		RETURNING id
	`, dept.Name, dept.Description).Scan(&deptID)
	})
	if err != nil {
		return employee.Employee{}, pkgerrors.Wrap(err, "create default department")
	}

	var id int64
	err = r.prom.ObserveDB("setup.admin", func() error {
		return tx.QueryRow(ctx, `
		INSERT INTO employees (email, password_hash, first_name, last_name, job_title, active, role, department_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,TRUE,$6,$7,NOW(),NOW())
		RETURNING id
	`, employee.NormalizeEmail(admin.Email), admin.PasswordHash, admin.FirstName, admin.LastName, admin.JobTitle, string(employee.RoleAdmin), deptID).Scan(&id)
	})
	if err != nil {
		return employee.Employee{}, mapEmployeeWriteErr(err, "create administrator")
	}

	if err := tx.Commit(ctx); err != nil {
		return employee.Employee{}, pkgerrors.Wrap(err, "commit setup")
	}

	return r.employees.GetByID(ctx, id)
}
