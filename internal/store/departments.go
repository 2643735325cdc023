package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// GetDepartment returns a department by ID, or ErrNotFound.
func (s *Store) GetDepartment(ctx context.Context, id DeptID) (Department, error) {
	var d Department
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, cidr FROM departments WHERE id = $1`, id)
	if err := row.Scan(&d.ID, &d.Name, &d.CIDR); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, fmt.Errorf("department %s: %w", id, ErrNotFound)
		}
		return Department{}, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

// ListDepartments returns every configured department.
func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, cidr FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CIDR); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FirstLab returns the department's lowest-LabID lab, following the
// tie-break rule in spec.md §4.3: "assign the first lab ordered by
// lab_id". Returns (Lab{}, false, nil) when the department has no labs.
func (s *Store) FirstLab(ctx context.Context, dept DeptID) (Lab, bool, error) {
	var l Lab
	row := s.pool.QueryRow(ctx,
		`SELECT id, department_id, name FROM labs WHERE department_id = $1 ORDER BY id LIMIT 1`, dept)
	if err := row.Scan(&l.ID, &l.DeptID, &l.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lab{}, false, nil
		}
		return Lab{}, false, fmt.Errorf("first lab: %w", err)
	}
	return l, true, nil
}
