package service

import (
	"context"
	"log/slog"

	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type SetupService struct {
	employees EmployeeStore
	setup     SetupStore
	hasher    PasswordHasher
	tokens    TokenIssuer
	dir       *Directory
	log       *slog.Logger
}

func NewSetupService(employees EmployeeStore, setup SetupStore, hasher PasswordHasher, tokens TokenIssuer, dir *Directory, log *slog.Logger) *SetupService {
	return &SetupService{
		employees: employees,
		setup:     setup,
		hasher:    hasher,
		tokens:    tokens,
		dir:       dir,
		log:       loggerOrDefault(log),
	}
}

// NeedsSetup reports whether the system has no employees yet.
func (s *SetupService) NeedsSetup(ctx context.Context) (bool, error) {
	n, err := s.employees.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Initialize creates the Administration department and the first admin,
// then signs the admin in. It fails with ErrAlreadyInitialized once any
// employee exists.
func (s *SetupService) Initialize(ctx context.Context, req employee.SetupRequest) (string, employee.Employee, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", employee.Employee{}, err
	}

	admin, err := s.setup.Initialize(ctx, department.Default(), employee.Employee{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		JobTitle:     "System Administrator",
		Active:       true,
		Role:         employee.RoleAdmin,
	})
	if err != nil {
		return "", employee.Employee{}, err
	}

	s.dir.Invalidate()
	s.log.InfoContext(ctx, "system initialized", "admin_id", admin.ID, "admin_email", admin.Email)

	token, err := s.tokens.GenerateAccessToken(admin.ID, admin.Email, admin.Role)
	if err != nil {
		return "", employee.Employee{}, err
	}

	return token, admin, nil
}
