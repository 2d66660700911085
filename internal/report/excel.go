// Package report builds appointment workbooks for clinic managers.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dentsched/internal/model"
)

// ExcelWriter abstracts workbook building so report logic stays testable.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []any) error
	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// ExcelizeWriter implements ExcelWriter using the excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{
		file: excelize.NewFile(),
	}
}

// AddSheet adds a new sheet with the given name.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Truncate sheet name to 31 chars (Excel limit)
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		_, err := w.file.NewSheet(name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes column headers to the current sheet.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *ExcelizeWriter) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

// Save writes the workbook to the writer.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the workbook to disk.
func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}

// AppointmentSource is the store slice the report generator reads from.
type AppointmentSource interface {
	ListAppointmentsByDateRange(ctx context.Context, from, to string) ([]model.Appointment, error)
	ListProviders(ctx context.Context, roles []string) ([]model.Provider, error)
}

var appointmentColumns = []string{
	"Appointment ID", "Provider", "Patient ID", "Branch", "Date", "Time", "Duration (min)", "Status",
}

// Generator produces appointment workbooks, one sheet per branch plus a
// summary sheet.
type Generator struct {
	source AppointmentSource
}

// NewGenerator creates a report generator over the store.
func NewGenerator(source AppointmentSource) *Generator {
	return &Generator{source: source}
}

// WriteAppointmentsReport builds a workbook for [from, to] into w.
func (g *Generator) WriteAppointmentsReport(ctx context.Context, w ExcelWriter, from, to string) error {
	appointments, err := g.source.ListAppointmentsByDateRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}

	providers, err := g.source.ListProviders(ctx, nil)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.FullName()
	}

	byBranch := make(map[string][]model.Appointment)
	var branches []string
	for _, a := range appointments {
		key := model.BranchKey(a.Branch)
		if key == "" {
			key = "unassigned"
		}
		if _, ok := byBranch[key]; !ok {
			branches = append(branches, key)
		}
		byBranch[key] = append(byBranch[key], a)
	}

	if err := w.AddSheet("Summary"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Branch", "Total", "Active", "Cancelled"}); err != nil {
		return err
	}
	for _, branch := range branches {
		total, active, cancelled := 0, 0, 0
		for _, a := range byBranch[branch] {
			total++
			if a.Active() {
				active++
			} else {
				cancelled++
			}
		}
		if err := w.WriteRow([]any{branch, total, active, cancelled}); err != nil {
			return err
		}
	}

	for _, branch := range branches {
		if err := w.AddSheet(branch); err != nil {
			return err
		}
		if err := w.WriteHeader(appointmentColumns); err != nil {
			return err
		}
		for _, a := range byBranch[branch] {
			providerName := names[a.ProviderID]
			if providerName == "" {
				providerName = a.ProviderID
			}
			row := []any{a.ID, providerName, a.PatientID, a.Branch, a.Date, a.Time, a.Duration, a.Status}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}

	return nil
}
