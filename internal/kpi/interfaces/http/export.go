package http

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	kpi "fleet-telemetry/internal/kpi/domain"
)

// BuildDayReportPDF renders a minimal PDF for one day's KPI record.
func BuildDayReportPDF(record *kpi.Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Vehicle Daily KPI Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vehicle: %s", record.VehicleID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Day: %s", record.Date.Format("2006-01-02")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Metric", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	rows := []struct {
		label string
		value string
	}{
		{"Clave ON minutes (priority response)", fmt.Sprintf("%.1f", record.ClaveOnMinutes)},
		{"Clave OFF minutes (routine)", fmt.Sprintf("%.1f", record.ClaveOffMinutes)},
		{"Out-of-park minutes", fmt.Sprintf("%.1f", record.OutOfParkMinutes)},
		{"Workshop minutes", fmt.Sprintf("%.1f", record.WorkshopMinutes)},
		{"Park minutes", fmt.Sprintf("%.1f", record.ParkMinutes)},
		{"High severity events", fmt.Sprintf("%d", record.HighSeverityEvents)},
		{"Moderate severity events", fmt.Sprintf("%d", record.ModerateSeverityEvents)},
	}
	for _, row := range rows {
		pdf.CellFormat(90, 6, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, row.value, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDayReportXLSX renders a minimal XLSX for one day's KPI record.
func BuildDayReportXLSX(record *kpi.Record) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "kpi"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Vehicle Daily KPI Report")
	_ = f.SetCellValue(sheet, "A3", "Vehicle")
	_ = f.SetCellValue(sheet, "B3", record.VehicleID)
	_ = f.SetCellValue(sheet, "A4", "Day")
	_ = f.SetCellValue(sheet, "B4", record.Date.Format("2006-01-02"))
	_ = f.SetCellValue(sheet, "A6", "Clave ON minutes")
	_ = f.SetCellValue(sheet, "B6", record.ClaveOnMinutes)
	_ = f.SetCellValue(sheet, "A7", "Clave OFF minutes")
	_ = f.SetCellValue(sheet, "B7", record.ClaveOffMinutes)
	_ = f.SetCellValue(sheet, "A8", "Out-of-park minutes")
	_ = f.SetCellValue(sheet, "B8", record.OutOfParkMinutes)
	_ = f.SetCellValue(sheet, "A9", "Workshop minutes")
	_ = f.SetCellValue(sheet, "B9", record.WorkshopMinutes)
	_ = f.SetCellValue(sheet, "A10", "Park minutes")
	_ = f.SetCellValue(sheet, "B10", record.ParkMinutes)
	_ = f.SetCellValue(sheet, "A11", "High severity events")
	_ = f.SetCellValue(sheet, "B11", record.HighSeverityEvents)
	_ = f.SetCellValue(sheet, "A12", "Moderate severity events")
	_ = f.SetCellValue(sheet, "B12", record.ModerateSeverityEvents)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
