package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/geocoder89/ems/internal/domain/orgchart"
	"github.com/geocoder89/ems/internal/repo/memory"
	"github.com/geocoder89/ems/internal/security"
	"github.com/geocoder89/ems/internal/service"
	"github.com/geocoder89/ems/internal/throttle"
)

type fakeTokens struct{}

func (fakeTokens) GenerateAccessToken(id int64, email string, role employee.Role) (string, error) {
	return fmt.Sprintf("token:%d:%s:%s", id, email, role), nil
}

type loginCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *loginCounter) ObserveLogin(result string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[result]++
}

type env struct {
	emps      *memory.EmployeesRepo
	depts     *memory.DepartmentsRepo
	employees *service.EmployeeService
	deptSvc   *service.DepartmentService
	reports   *service.ReportService
	auth      *service.AuthService
	setup     *service.SetupService
	metrics   *loginCounter
	hasher    security.BcryptHasher
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := memory.NewDB()
	emps := memory.NewEmployeesRepo(db)
	depts := memory.NewDepartmentsRepo(db)
	gate := access.MustNewGate()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	dir := service.NewDirectory(emps, time.Minute)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := &loginCounter{}

	th := throttle.New(throttle.NewMemoryStore(), throttle.Options{
		Exempt: []string{"admin@example.com"},
	})

	return &env{
		emps:      emps,
		depts:     depts,
		employees: service.NewEmployeeService(emps, depts, gate, hasher, dir, log),
		deptSvc:   service.NewDepartmentService(depts, gate, dir),
		reports:   service.NewReportService(dir, gate),
		auth: service.NewAuthService(service.AuthDeps{
			Store:    emps,
			Hasher:   hasher,
			Tokens:   fakeTokens{},
			Throttle: th,
			Metrics:  metrics,
			Guest:    service.GuestAccount{Email: "guest@demo.com", Password: "guest123"},
			Dir:      dir,
			Log:      log,
		}),
		setup:   service.NewSetupService(emps, memory.NewSetupRepo(db), hasher, fakeTokens{}, dir, log),
		metrics: metrics,
		hasher:  hasher,
	}
}

var rootAdmin = access.Caller{ID: 1, Email: "admin@example.com", Role: employee.RoleAdmin}

func (e *env) mustCreate(t *testing.T, req employee.CreateEmployeeRequest) employee.Employee {
	t.Helper()
	if req.Password == "" {
		req.Password = "password123"
	}
	if req.Role == "" {
		req.Role = employee.RoleEmployee
	}
	if req.FirstName == "" {
		req.FirstName = "Test"
	}
	if req.LastName == "" {
		req.LastName = "User"
	}
	created, err := e.employees.Create(context.Background(), rootAdmin, req)
	require.NoError(t, err)
	return created
}

func updateFrom(e employee.Employee) employee.UpdateEmployeeRequest {
	return employee.UpdateEmployeeRequest{
		Email:        e.Email,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		JobTitle:     e.JobTitle,
		Role:         e.Role,
		DepartmentID: e.DepartmentID,
		ManagerID:    e.ManagerID,
	}
}

func TestChainAndCycleRejection(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "a@x.io", Role: employee.RoleAdmin})
	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io", ManagerID: &a.ID})
	c := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "c@x.io", ManagerID: &b.ID})

	roots, err := e.reports.OrgChart(ctx, rootAdmin, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Equal(t, []int64{a.ID, b.ID, c.ID}, orgchart.Flatten(roots))

	req := updateFrom(a)
	req.ManagerID = &c.ID
	_, err = e.employees.Update(ctx, rootAdmin, a.ID, req)
	require.ErrorIs(t, err, employee.ErrManagementCycle)

	req.ManagerID = &a.ID
	_, err = e.employees.Update(ctx, rootAdmin, a.ID, req)
	require.ErrorIs(t, err, employee.ErrSelfManagement)

	missing := int64(404)
	_, err = e.employees.Create(ctx, rootAdmin, employee.CreateEmployeeRequest{
		Email: "d@x.io", Password: "password123", FirstName: "D", LastName: "D",
		Role: employee.RoleEmployee, ManagerID: &missing,
	})
	require.ErrorIs(t, err, employee.ErrManagerNotFound)

	_, err = e.employees.Create(ctx, rootAdmin, employee.CreateEmployeeRequest{
		Email: "d@x.io", Password: "password123", FirstName: "D", LastName: "D",
		Role: employee.RoleEmployee, DepartmentID: &missing,
	})
	require.ErrorIs(t, err, department.ErrNotFound)
}

func TestNonAdminSeesOnlySelf(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "a@x.io", Role: employee.RoleAdmin})
	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io", ManagerID: &a.ID})
	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "c@x.io", ManagerID: &b.ID})

	caller := access.Caller{ID: b.ID, Email: b.Email, Role: employee.RoleEmployee}

	list, err := e.employees.List(ctx, caller, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)

	_, err = e.employees.Get(ctx, caller, a.ID)
	require.ErrorIs(t, err, employee.ErrNotFound)

	got, err := e.employees.Get(ctx, caller, b.ID)
	require.NoError(t, err)
	require.Equal(t, b.Email, got.Email)

	// b's manager is hidden, so b becomes a root of the caller's chart
	roots, err := e.reports.OrgChart(ctx, caller, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID}, orgchart.Flatten(roots))
}

func TestRoleFilter(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "a@x.io", Role: employee.RoleAdmin})
	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io", Role: employee.RoleGuest})
	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "c@x.io"})

	list, err := e.employees.List(ctx, rootAdmin, employee.ParseRoles("GUEST,NOPE"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b@x.io", list[0].Email)
}

func TestSelfUpdateRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "a@x.io", Role: employee.RoleAdmin})
	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io"})
	g := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "g@x.io", Role: employee.RoleGuest})

	staff := access.CallerFor(b)

	req := updateFrom(b)
	req.JobTitle = "Engineer"
	updated, err := e.employees.Update(ctx, staff, b.ID, req)
	require.NoError(t, err)
	require.Equal(t, "Engineer", updated.JobTitle)
	require.True(t, updated.Active)

	req.Role = employee.RoleAdmin
	_, err = e.employees.Update(ctx, staff, b.ID, req)
	require.ErrorIs(t, err, access.ErrForbidden)

	off := false
	req = updateFrom(b)
	req.Active = &off
	_, err = e.employees.Update(ctx, staff, b.ID, req)
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = e.employees.Update(ctx, staff, a.ID, updateFrom(a))
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = e.employees.Update(ctx, access.CallerFor(g), g.ID, updateFrom(g))
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = e.employees.Create(ctx, staff, employee.CreateEmployeeRequest{Email: "n@x.io"})
	require.ErrorIs(t, err, access.ErrForbidden)
}

func TestUpdateKeepsPasswordWhenBlank(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io", Password: "original-pass"})

	_, err := e.employees.Update(ctx, rootAdmin, b.ID, updateFrom(b))
	require.NoError(t, err)

	stored, err := e.emps.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, e.hasher.Compare(stored.PasswordHash, "original-pass"))

	req := updateFrom(b)
	req.Password = "brand-new-pass"
	_, err = e.employees.Update(ctx, rootAdmin, b.ID, req)
	require.NoError(t, err)

	stored, err = e.emps.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, e.hasher.Compare(stored.PasswordHash, "brand-new-pass"))
}

func TestDeleteRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "a@x.io", Role: employee.RoleAdmin})
	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io", ManagerID: &a.ID})

	self := access.CallerFor(a)
	require.ErrorIs(t, e.employees.Delete(ctx, self, a.ID), access.ErrForbidden)
	require.ErrorIs(t, e.employees.Delete(ctx, access.CallerFor(b), b.ID), access.ErrForbidden)

	other := access.Caller{ID: 999, Role: employee.RoleAdmin}
	require.NoError(t, e.employees.Delete(ctx, other, a.ID))

	got, err := e.employees.Get(ctx, other, b.ID)
	require.NoError(t, err)
	require.Nil(t, got.ManagerID)

	require.ErrorIs(t, e.employees.Delete(ctx, other, a.ID), employee.ErrNotFound)
}

func TestDepartmentLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	d, err := e.deptSvc.Create(ctx, rootAdmin, department.Request{Name: "Engineering"})
	require.NoError(t, err)

	m := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "m@x.io", DepartmentID: &d.ID})
	require.NotNil(t, m.Department)

	roots, err := e.reports.OrgChart(ctx, rootAdmin, &d.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{m.ID}, orgchart.Flatten(roots))

	staff := access.CallerFor(m)
	_, err = e.deptSvc.Update(ctx, staff, d.ID, department.Request{Name: "Eng"})
	require.ErrorIs(t, err, access.ErrForbidden)

	list, err := e.deptSvc.List(ctx, staff)
	require.NoError(t, err)
	require.Len(t, list, 1)

	renamed, err := e.deptSvc.Update(ctx, rootAdmin, d.ID, department.Request{Name: "Platform"})
	require.NoError(t, err)
	require.Equal(t, "Platform", renamed.Name)

	// the cached directory was cleared by the rename
	roots, err = e.reports.OrgChart(ctx, rootAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, "Platform", *roots[0].Department)

	require.NoError(t, e.deptSvc.Delete(ctx, rootAdmin, d.ID))

	got, err := e.employees.Get(ctx, rootAdmin, m.ID)
	require.NoError(t, err)
	require.Nil(t, got.Department)

	roots, err = e.reports.OrgChart(ctx, rootAdmin, &d.ID)
	require.NoError(t, err)
	require.Empty(t, roots)
}

func TestLoginThrottling(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "bob@x.io", Password: "correct-pass"})

	for i := 0; i < 4; i++ {
		_, err := e.auth.Login(ctx, "bob@x.io", "wrong")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	}

	token, err := e.auth.Login(ctx, "bob@x.io", "correct-pass")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// success reset the counter, so five more failures are needed
	for i := 0; i < 5; i++ {
		_, err := e.auth.Login(ctx, "bob@x.io", "wrong")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	}

	_, err = e.auth.Login(ctx, "bob@x.io", "correct-pass")
	require.ErrorIs(t, err, service.ErrThrottled)

	require.Equal(t, 9, e.metrics.counts["failure"])
	require.Equal(t, 1, e.metrics.counts["blocked"])
	require.Equal(t, 1, e.metrics.counts["success"])
}

func TestLoginExemptAdminNeverBlocked(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "admin@example.com", Password: "admin-pass", Role: employee.RoleAdmin})

	for i := 0; i < 10; i++ {
		_, err := e.auth.Login(ctx, "admin@example.com", "nope")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	}

	_, err := e.auth.Login(ctx, "Admin@Example.com", "admin-pass")
	require.NoError(t, err)
}

func TestLoginInactiveAndUnknown(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	off := false
	e.mustCreate(t, employee.CreateEmployeeRequest{Email: "off@x.io", Password: "password123", Active: &off})

	_, err := e.auth.Login(ctx, "off@x.io", "password123")
	require.ErrorIs(t, err, service.ErrAccountInactive)

	_, err = e.auth.Login(ctx, "ghost@x.io", "password123")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestResolveCaller(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	b := e.mustCreate(t, employee.CreateEmployeeRequest{Email: "b@x.io"})

	caller, err := e.auth.ResolveCaller(ctx, b.ID, "b@x.io")
	require.NoError(t, err)
	require.Equal(t, access.CallerFor(b), caller)

	_, err = e.auth.ResolveCaller(ctx, b.ID+1, "b@x.io")
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	_, err = e.auth.ResolveCaller(ctx, b.ID, "gone@x.io")
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	off := false
	req := updateFrom(b)
	req.Active = &off
	_, err = e.employees.Update(ctx, rootAdmin, b.ID, req)
	require.NoError(t, err)

	_, err = e.auth.ResolveCaller(ctx, b.ID, "b@x.io")
	require.ErrorIs(t, err, service.ErrAccountInactive)
}

func TestGuestAccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	t1, err := e.auth.GuestAccess(ctx)
	require.NoError(t, err)
	t2, err := e.auth.GuestAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, t1, t2)

	g, err := e.emps.GetByEmail(ctx, "guest@demo.com")
	require.NoError(t, err)
	require.Equal(t, employee.RoleGuest, g.Role)
	require.Equal(t, "Demo User", g.JobTitle)

	n, err := e.emps.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	needs, err := e.setup.NeedsSetup(ctx)
	require.NoError(t, err)
	require.True(t, needs)

	token, admin, err := e.setup.Initialize(ctx, employee.SetupRequest{
		Email: "root@x.io", Password: "password123", FirstName: "Root", LastName: "Admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, employee.RoleAdmin, admin.Role)
	require.Equal(t, "System Administrator", admin.JobTitle)
	require.Equal(t, "Administration", admin.Department.Name)

	needs, err = e.setup.NeedsSetup(ctx)
	require.NoError(t, err)
	require.False(t, needs)

	_, _, err = e.setup.Initialize(ctx, employee.SetupRequest{
		Email: "other@x.io", Password: "password123", FirstName: "O", LastName: "O",
	})
	require.ErrorIs(t, err, service.ErrAlreadyInitialized)

	_, err = e.auth.Login(ctx, "root@x.io", "password123")
	require.NoError(t, err)
}
