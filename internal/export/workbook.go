// Package export renders voiding history as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/uroflow/internal/models"
)

const (
	EventsSheet = "Events"
	DailySheet  = "Daily"
)

// EventsHeader is the header row of the events sheet.
var EventsHeader = []string{
	"Event ID",
	"Device",
	"Start",
	"End",
	"Duration (s)",
	"Total Volume (ml)",
	"Average Flow (ml/s)",
	"Peak Sample (ml)",
	"Samples",
}

// DailyHeader is the header row of the daily sheet.
var DailyHeader = []string{
	"Date",
	"Events",
	"Total Volume (ml)",
}

var eventColumnWidths = []float64{38, 15, 20, 20, 12, 16, 18, 16, 10}

// Workbook builds an XLSX file with one row per event and one per day.
// Times are written in loc.
func Workbook(events []models.VoidingEvent, period models.PeriodStats, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", EventsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DailySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFF4CC"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, EventsSheet, EventsHeader, headerStyle); err != nil {
		return nil, err
	}
	if err := writeHeader(f, DailySheet, DailyHeader, headerStyle); err != nil {
		return nil, err
	}

	for i, w := range eventColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(EventsSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, e := range events {
		end := ""
		if e.EndTime != nil {
			end = e.EndTime.In(loc).Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			e.ID,
			e.DeviceID,
			e.StartTime.In(loc).Format("2006-01-02 15:04:05"),
			end,
			e.Duration,
			e.TotalVolume,
			e.AverageFlowRate,
			e.PeakSample,
			len(e.FlowSamples),
		}
		if err := writeRow(f, EventsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	for i, d := range period.PerDay {
		row := []interface{}{d.Date, d.EventCount, d.TotalVolume}
		if err := writeRow(f, DailySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
