package utils

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type exportRow struct {
	When string
	What string
	Hits int
}

func TestGenerateExcel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rows := []exportRow{
		{When: "2024-03-01", What: "Lodge application A000001", Hits: 1},
		{When: "2024-03-02", What: "Issue L000001: Keeping", Hits: 2},
	}

	path, err := GenerateExcel(dir, rows, "actions A000001", []string{"When", "What", "Missing", "Hits"}, now)
	require.NoError(t, err)
	assert.Equal(t, "actions_A000001_20240301_093000.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	assert.Equal(t, "What", header)

	what, err := f.GetCellValue("Sheet1", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Issue L000001: Keeping", what)

	missing, err := f.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	assert.Empty(t, missing)

	hits, err := f.GetCellValue("Sheet1", "D3")
	require.NoError(t, err)
	assert.Equal(t, "2", hits)
}

func TestGenerateExcelRejectsNonSlice(t *testing.T) {
	_, err := GenerateExcel(t.TempDir(), exportRow{}, "actions", []string{"When"}, time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "slice"))
}
