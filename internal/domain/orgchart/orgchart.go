package orgchart

import (
	"time"

	"github.com/geocoder89/ems/internal/domain/employee"
)

type Node struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Role         employee.Role `json:"role"`
	Department   *string       `json:"department"`
	DepartmentID *int64        `json:"departmentId"`
	ManagerID    *int64        `json:"managerId"`
	JobTitle     string        `json:"jobTitle"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Subordinates []*Node       `json:"subordinates"`
}

// Build arranges a flat employee list into manager -> subordinate trees and
// returns the roots in input order.
//
// With departmentID set, only members of that department take part and an
// employee whose manager sits outside the department is left out of the
// result entirely. Without a filter such an employee becomes a root.
func Build(employees []employee.Employee, departmentID *int64) []*Node {
	members := employees
	if departmentID != nil {
		members = make([]employee.Employee, 0, len(employees))
		for _, e := range employees {
			if e.DepartmentID != nil && *e.DepartmentID == *departmentID {
				members = append(members, e)
			}
		}
	}

	nodes := make(map[int64]*Node, len(members))
	for _, e := range members {
		nodes[e.ID] = newNode(e)
	}

	roots := make([]*Node, 0)
	for _, e := range members {
		node := nodes[e.ID]

		if e.ManagerID == nil {
			roots = append(roots, node)
			continue
		}

		if manager, ok := nodes[*e.ManagerID]; ok {
			manager.Subordinates = append(manager.Subordinates, node)
			continue
		}

		if departmentID == nil {
			roots = append(roots, node)
		}
	}

	return roots
}

// Flatten lists node ids in pre-order.
func Flatten(roots []*Node) []int64 {
	var out []int64

	var walk func(n *Node)
	walk = func(n *Node) {
		out = append(out, n.ID)
		for _, child := range n.Subordinates {
			walk(child)
		}
	}

	for _, r := range roots {
		walk(r)
	}
	return out
}

func newNode(e employee.Employee) *Node {
	n := &Node{
		ID:           e.ID,
		Name:         e.FullName(),
		Role:         e.Role,
		DepartmentID: e.DepartmentID,
		ManagerID:    e.ManagerID,
		JobTitle:     e.JobTitle,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		Subordinates: make([]*Node, 0),
	}

	if e.Department != nil {
		name := e.Department.Name
		n.Department = &name
		if n.DepartmentID == nil {
			id := e.Department.ID
			n.DepartmentID = &id
		}
	}

	return n
}
