package employee_test

import (
	"encoding/json"
	"testing"

	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/stretchr/testify/require"
)

func TestResolvedDepartmentIDPrefersDepartmentObject(t *testing.T) {
	var create employee.CreateEmployeeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"department":{"id":4},"departmentId":9}`), &create))
	require.Equal(t, int64(4), *create.ResolvedDepartmentID())

	var update employee.UpdateEmployeeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"department":{"id":4},"departmentId":9}`), &update))
	require.Equal(t, int64(4), *update.ResolvedDepartmentID())
}

func TestResolvedDepartmentIDFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *int64
	}{
		{"only departmentId", `{"departmentId":9}`, ptr(9)},
		{"only department object", `{"department":{"id":4}}`, ptr(4)},
		{"neither", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req employee.UpdateEmployeeRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			require.Equal(t, tt.want, req.ResolvedDepartmentID())
		})
	}
}

func TestFullNameTrims(t *testing.T) {
	require.Equal(t, "Ada Lovelace", employee.Employee{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	require.Equal(t, "Cher", employee.Employee{FirstName: "Cher"}.FullName())
}
