package department

import "errors"

var (
	ErrNotFound  = errors.New("department not found")
	ErrNameTaken = errors.New("department name already in use")
)

type Department struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Request struct {
	Name        string `json:"name" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// Default is the department created alongside the first administrator.
func Default() Request {
	return Request{
		Name:        "Administration",
		Description: "System Administration Department",
	}
}
