// Package export streams operational datasets as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a tabular dataset ready to be written out.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// WriteCSV streams the sheet as a CSV attachment.
func (s Sheet) WriteCSV(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", strings.ToLower(s.Name)))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(s.Headers); err != nil {
		return err
	}
	for _, row := range s.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteXLSX streams the sheet as an Excel attachment with a styled
// header row.
func (s Sheet) WriteXLSX(w http.ResponseWriter) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(s.Name)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, header := range s.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.Name, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(s.Name, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for rowIdx, row := range s.Rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.Name, cell, value); err != nil {
				return err
			}
		}
	}
	for i := range s.Headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(s.Name, col, col, 18)
	}
	if s.Name != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(s.Name)))
	return f.Write(w)
}
