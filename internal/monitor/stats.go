package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/uroflow/internal/models"
)

const dateLayout = "2006-01-02"

// CalculateDailyStats summarizes events whose start time falls on day's calendar date,
// evaluated in day's location. The input slice is not modified.
func CalculateDailyStats(events []models.VoidingEvent, day time.Time, cfg Config) models.DailyStats {
	date := day.Format(dateLayout)
	loc := day.Location()

	var starts []time.Time
	var volumes []float64
	for i := range events {
		if events[i].StartTime.In(loc).Format(dateLayout) != date {
			continue
		}
		starts = append(starts, events[i].StartTime)
		volumes = append(volumes, events[i].TotalVolume)
	}

	if len(volumes) == 0 {
		return models.DailyStats{Date: date, Empty: true}
	}

	total, minV, maxV := 0.0, volumes[0], volumes[0]
	for _, v := range volumes {
		total += v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	var intervalSum float64
	for i := 1; i < len(starts); i++ {
		intervalSum += starts[i].Sub(starts[i-1]).Hours()
	}
	var meanInterval float64
	if len(starts) > 1 {
		meanInterval = intervalSum / float64(len(starts)-1)
	}

	var goalPct float64
	if cfg.DailyGoal > 0 {
		goalPct = math.Min(100, total/cfg.DailyGoal*100)
	}

	return models.DailyStats{
		Date:                 date,
		EventCount:           len(volumes),
		TotalVolume:          round1(total),
		AverageVolume:        round1(total / float64(len(volumes))),
		AverageIntervalHours: round1(meanInterval),
		MinVolume:            round1(minV),
		MaxVolume:            round1(maxV),
		GoalPercentage:       round1(goalPct),
	}
}

// PeriodStats summarizes the trailing days ending on now's calendar date, one bucket
// per date, oldest first. days is clamped to [1, MaxPeriodDays].
func PeriodStats(events []models.VoidingEvent, now time.Time, days int) models.PeriodStats {
	if days < 1 {
		days = 1
	}
	if days > MaxPeriodDays {
		days = MaxPeriodDays
	}

	loc := now.Location()
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	from := todayStart.AddDate(0, 0, -(days - 1))

	buckets := make([]models.DayTotal, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(dateLayout)
		buckets[i] = models.DayTotal{Date: date}
		index[date] = i
	}

	out := models.PeriodStats{Days: days, From: from, To: now}
	for i := range events {
		st := events[i].StartTime.In(loc)
		if st.Before(from) || st.After(now) {
			continue
		}
		b, ok := index[st.Format(dateLayout)]
		if !ok {
			continue
		}
		buckets[b].EventCount++
		buckets[b].TotalVolume += events[i].TotalVolume
		out.EventCount++
		out.TotalVolume += events[i].TotalVolume
	}
	for i := range buckets {
		buckets[i].TotalVolume = round1(buckets[i].TotalVolume)
	}
	out.PerDay = buckets
	out.TotalVolume = round1(out.TotalVolume)
	out.DailyAverage = round1(out.TotalVolume / float64(days))
	return out
}

// MaxPeriodDays bounds multi-day summaries.
const MaxPeriodDays = 30

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
