package service

import (
	"context"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/orgchart"
)

type ReportService struct {
	dir  *Directory
	gate *access.Gate
}

func NewReportService(dir *Directory, gate *access.Gate) *ReportService {
	return &ReportService{dir: dir, gate: gate}
}

// OrgChart builds the reporting forest over the employees visible to the
// caller, optionally scoped to one department.
func (s *ReportService) OrgChart(ctx context.Context, caller access.Caller, departmentID *int64) ([]*orgchart.Node, error) {
	if err := s.gate.Authorize(caller, access.ViewOrgChart, nil); err != nil {
		return nil, err
	}

	all, err := s.dir.All(ctx)
	if err != nil {
		return nil, err
	}

	return orgchart.Build(s.gate.Visible(caller, all), departmentID), nil
}
