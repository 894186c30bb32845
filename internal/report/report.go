// Package report aggregates injury history for the chart screens.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"impact-backend/internal/models"
)

// ErrUnknownTimeframe is returned for a timeframe other than day, week,
// month or year
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe selects how bars are bucketed
type Timeframe string

const (
	Day   Timeframe = "day"   // one bar per calendar date
	Week  Timeframe = "week"  // Sun..Sat
	Month Timeframe = "month" // Jan..Dec
	Year  Timeframe = "year"  // one bar per year
)

var (
	weekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	monthLabels   = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// Bar is one bucket of the bar chart
type Bar struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DirectionCount is one slice of the direction chart
type DirectionCount struct {
	Direction string `json:"direction"`
	Count     int    `json:"count"`
}

// Report is the aggregated history
type Report struct {
	Timeframe  Timeframe        `json:"timeframe"`
	Total      int              `json:"total"`
	Bars       []Bar            `json:"bars"`
	Directions []DirectionCount `json:"directions"`
}

// ParseTimeframe validates s
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case Day, Week, Month, Year:
		return tf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
}

// Summarize weights every record by its injury count. Records with an
// unparseable date still count towards Total and Directions but fall out
// of the bars.
func Summarize(records []models.InjuryRecord, tf Timeframe) (Report, error) {
	if _, err := ParseTimeframe(string(tf)); err != nil {
		return Report{}, err
	}

	var (
		total      int
		byDay      = make(map[string]int)
		byYear     = make(map[int]int)
		weekdays   = make([]int, 7)
		months     = make([]int, 12)
		directions = make(map[string]int)
	)

	for _, r := range records {
		total += r.InjuryCount
		directions[r.Direction] += r.InjuryCount

		date, err := time.Parse(models.DateLayout, r.Date)
		if err != nil {
			continue
		}
		switch tf {
		case Day:
			byDay[date.Format("2006-01-02")] += r.InjuryCount
		case Week:
			weekdays[date.Weekday()] += r.InjuryCount
		case Month:
			months[date.Month()-1] += r.InjuryCount
		case Year:
			byYear[date.Year()] += r.InjuryCount
		}
	}

	report := Report{
		Timeframe:  tf,
		Total:      total,
		Bars:       []Bar{},
		Directions: []DirectionCount{},
	}

	switch tf {
	case Day:
		for label, count := range byDay {
			report.Bars = append(report.Bars, Bar{Label: label, Count: count})
		}
		sort.Slice(report.Bars, func(i, j int) bool { return report.Bars[i].Label < report.Bars[j].Label })
	case Week:
		report.Bars = fixedBars(weekdayLabels, weekdays)
	case Month:
		report.Bars = fixedBars(monthLabels, months)
	case Year:
		years := make([]int, 0, len(byYear))
		for year := range byYear {
			years = append(years, year)
		}
		sort.Ints(years)
		for _, year := range years {
			report.Bars = append(report.Bars, Bar{Label: strconv.Itoa(year), Count: byYear[year]})
		}
	}

	for direction, count := range directions {
		report.Directions = append(report.Directions, DirectionCount{Direction: direction, Count: count})
	}
	sort.Slice(report.Directions, func(i, j int) bool {
		return report.Directions[i].Direction < report.Directions[j].Direction
	})

	return report, nil
}

func fixedBars(labels []string, counts []int) []Bar {
	bars := make([]Bar, len(labels))
	for i, label := range labels {
		bars[i] = Bar{Label: label, Count: counts[i]}
	}
	return bars
}
