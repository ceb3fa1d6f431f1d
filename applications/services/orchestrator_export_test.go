package services

import (
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

func (s *OrchestratorSuite) TestExportActionsWritesAuditTrail() {
	app := s.lodge(s.create(s.keeping.ID))
	dir := s.T().TempDir()

	path, err := s.o.ExportActions(s.ctx, app.ID, dir)
	s.Require().NoError(err)
	s.Equal(dir, filepath.Dir(path))

	f, err := excelize.OpenFile(path)
	s.Require().NoError(err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	s.Require().NoError(err)
	s.Require().Len(rows, len(s.actions(app.ID))+1)
	s.Equal([]string{"When", "Who", "What", "CorrelationID"}, rows[0])
	s.Equal("Ada Keeper", rows[1][1])
	s.Equal("test-Ada", rows[1][3])
}
