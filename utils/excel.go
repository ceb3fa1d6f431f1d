package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"time"
	"wildlife-licensing-backend/config"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Sheet1"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// EnsureDirectoryExists creates dir and its parents when missing.
func EnsureDirectoryExists(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	return nil
}

// GenerateExcel writes a slice of structs to a new workbook in dir. Each
// header names a struct field and becomes one column. It returns the path
// of the saved file.
func GenerateExcel(dir string, data interface{}, taskName string, headers []string, now time.Time) (string, error) {
	rows := reflect.ValueOf(data)
	if rows.Kind() != reflect.Slice {
		return "", fmt.Errorf("expected data to be a slice, got %v", rows.Kind())
	}
	if err := EnsureDirectoryExists(dir); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("error creating header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return "", fmt.Errorf("error setting header %s: %w", header, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, style); err != nil {
			return "", fmt.Errorf("error styling header %s: %w", header, err)
		}
	}

	for row := 0; row < rows.Len(); row++ {
		item := reflect.Indirect(rows.Index(row))
		if item.Kind() != reflect.Struct {
			return "", fmt.Errorf("row %d is a %v, expected a struct", row, item.Kind())
		}
		for col, header := range headers {
			field := item.FieldByName(header)
			if !field.IsValid() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(exportSheet, cell, field.Interface()); err != nil {
				return "", fmt.Errorf("error setting value for field %s (row %d): %w", header, row+2, err)
			}
		}
	}

	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		if err := f.SetColWidth(exportSheet, "A", last, 24); err != nil {
			return "", err
		}
	}

	fileName := fmt.Sprintf("%s_%s.xlsx", unsafeFileChars.ReplaceAllString(taskName, "_"), now.Format("20060102_150405"))
	path := filepath.Join(dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving Excel file: %w", err)
	}

	config.Logger.Info("Excel export saved", zap.String("path", path), zap.Int("rows", rows.Len()))
	return path, nil
}
