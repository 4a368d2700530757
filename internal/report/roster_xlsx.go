package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"oct-review-service/internal/domain/entities"
)

const rosterSheet = "Patients"

// RosterHeader is the first row of the roster workbook.
var RosterHeader = []string{"Patient ID", "Name", "Age", "Gender", "Phone", "Last Visit", "Visits", "Latest Diagnosis"}

var rosterColumnWidths = []float64{12, 28, 6, 10, 16, 14, 8, 40}

// RenderRosterXLSX writes one row per patient, in the order given.
func RenderRosterXLSX(patients []*entities.Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(rosterSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range RosterHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(rosterSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(rosterSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(rosterSheet, name, name, rosterColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, p := range patients {
		latest := ""
		if len(p.History) > 0 {
			latest = p.History[0].Diagnosis
		}
		row := []interface{}{p.ID, p.Name, p.Age, p.Gender, p.Phone, p.LastVisit, len(p.History), latest}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row for %s: %w", p.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
