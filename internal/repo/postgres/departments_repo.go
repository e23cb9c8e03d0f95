package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/observability"
)

type DepartmentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDepartmentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DepartmentsRepo {
	return &DepartmentsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *DepartmentsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func (r *DepartmentsRepo) List(ctx context.Context) ([]department.Department, error) {
	out := make([]department.Department, 0)

	err := r.observe("departments.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM departments ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var d department.Department
			if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list departments")
	}

	return out, nil
}

func (r *DepartmentsRepo) GetByID(ctx context.Context, id int64) (department.Department, error) {
	var d department.Department

	err := r.observe("departments.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `SELECT id, name, description FROM departments WHERE id = $1`, id).
			Scan(&d.ID, &d.Name, &d.Description)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department.Department{}, department.ErrNotFound
		}
		return department.Department{}, pkgerrors.Wrap(err, "get department")
	}

	return d, nil
}

func (r *DepartmentsRepo) Create(ctx context.Context, req department.Request) (department.Department, error) {
	var d department.Department

	err := r.observe("departments.create", func() error {
		return r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description
	`, req.Name, req.Description).Scan(&d.ID, &d.Name, &d.Description)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return department.Department{}, department.ErrNameTaken
		}
		return department.Department{}, pkgerrors.Wrap(err, "create department")
	}

	return d, nil
}

func (r *DepartmentsRepo) Update(ctx context.Context, id int64, req department.Request) (department.Department, error) {
	var d department.Department

	err := r.observe("departments.update", func() error {
		return r.pool.QueryRow(ctx, `
		UPDATE departments
			SET name = $2,
			    description = $3
		WHERE id = $1
		RETURNING id, name, description
	`, id, req.Name, req.Description).Scan(&d.ID, &d.Name, &d.Description)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department.Department{}, department.ErrNotFound
		}
		if isUniqueViolation(err) {
			return department.Department{}, department.ErrNameTaken
		}
		return department.Department{}, pkgerrors.Wrap(err, "update department")
	}

	return d, nil
}

// Delete clears the department on its members and removes it in one
// transaction.
func (r *DepartmentsRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return pkgerrors.Wrap(err, "begin delete department")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("departments.delete.detach_members", func() error {
		_, e := tx.Exec(ctx, `UPDATE employees SET department_id = NULL, updated_at = NOW() WHERE department_id = $1`, id)
		return e
	})
	if err != nil {
		return pkgerrors.Wrap(err, "detach department members")
	}

	var tag pgconn.CommandTag
	err = r.observe("departments.delete", func() error {
		var e error
		tag, e = tx.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return pkgerrors.Wrap(err, "delete department")
	}

	if tag.RowsAffected() == 0 {
		return department.ErrNotFound
	}

	return pkgerrors.Wrap(tx.Commit(ctx), "commit delete department")
}
