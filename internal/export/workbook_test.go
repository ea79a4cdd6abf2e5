package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/uroflow/internal/models"
)

func TestWorkbook(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)
	events := []models.VoidingEvent{
		{
			ID:              "evt-1",
			DeviceID:        "ESP32_001",
			StartTime:       start,
			EndTime:         &end,
			Duration:        30,
			TotalVolume:     300,
			AverageFlowRate: 10,
			PeakSample:      80,
			FlowSamples:     []models.FlowSample{{Time: start, Volume: 80}, {Time: end, Volume: 220}},
		},
	}
	period := models.PeriodStats{
		Days: 2,
		PerDay: []models.DayTotal{
			{Date: "2026-02-28", EventCount: 0, TotalVolume: 0},
			{Date: "2026-03-01", EventCount: 1, TotalVolume: 300},
		},
	}

	data, err := Workbook(events, period, time.UTC)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{EventsSheet, DailySheet}, f.GetSheetList())

	rows, err := f.GetRows(EventsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, EventsHeader, rows[0])
	assert.Equal(t, "evt-1", rows[1][0])
	assert.Equal(t, "2026-03-01 08:00:00", rows[1][2])
	assert.Equal(t, "2026-03-01 08:00:30", rows[1][3])
	assert.Equal(t, "300", rows[1][5])
	assert.Equal(t, "2", rows[1][8])

	daily, err := f.GetRows(DailySheet)
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.Equal(t, DailyHeader, daily[0])
	assert.Equal(t, []string{"2026-03-01", "1", "300"}, daily[2])
}

func TestWorkbookEmpty(t *testing.T) {
	data, err := Workbook(nil, models.PeriodStats{}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(EventsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWorkbookLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	events := []models.VoidingEvent{{ID: "e", DeviceID: "d", StartTime: start}}

	data, err := Workbook(events, models.PeriodStats{}, loc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(EventsSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02 07:00:00", v)
	end, err := f.GetCellValue(EventsSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "", end)
}
