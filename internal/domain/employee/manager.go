package employee

import (
	"context"
	"errors"
)

// ManagerChain resolves one hop of the reporting line. ManagerOf returns the
// manager id of the given employee (nil when it has none) or ErrNotFound.
type ManagerChain interface {
	ManagerOf(ctx context.Context, id int64) (*int64, error)
}

// ValidateManager checks that assigning managerID to the employee targetID
// keeps the reporting graph free of self loops and cycles. targetID is nil
// for an employee that does not exist yet.
func ValidateManager(ctx context.Context, chain ManagerChain, targetID, managerID *int64) error {
	if managerID == nil {
		return nil
	}

	if targetID != nil && *managerID == *targetID {
		return ErrSelfManagement
	}

	next, err := chain.ManagerOf(ctx, *managerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrManagerNotFound
		}
		return err
	}

	if targetID == nil {
		return nil
	}

	visited := map[int64]struct{}{*managerID: {}}

	for current := next; current != nil; {
		if *current == *targetID {
			return ErrManagementCycle
		}

		// a loop that does not pass through the target
		if _, seen := visited[*current]; seen {
			return nil
		}
		visited[*current] = struct{}{}

		next, err := chain.ManagerOf(ctx, *current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		current = next
	}

	return nil
}

// SliceChain walks manager links over an in-memory list of employees.
type SliceChain []Employee

func (s SliceChain) ManagerOf(_ context.Context, id int64) (*int64, error) {
	for i := range s {
		if s[i].ID == id {
			return s[i].ManagerID, nil
		}
	}
	return nil, ErrNotFound
}
