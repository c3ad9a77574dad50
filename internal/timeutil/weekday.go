package timeutil

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekday разбирает название дня недели ("MONDAY", "monday", "Mon")
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if d, ok := weekdayNames[n]; ok {
		return d, nil
	}
	if len(n) == 3 {
		for full, d := range weekdayNames {
			if strings.HasPrefix(full, n) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// ParseWeekdays разбирает список и убирает повторы, сохраняя порядок
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(names))
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	return days, nil
}

// WeekdayName название дня в формате хранилища (MONDAY)
func WeekdayName(d time.Weekday) string {
	return strings.ToUpper(d.String())
}

func WeekdayNames(days []time.Weekday) []string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = WeekdayName(d)
	}
	return names
}

// StartOfNextDay полночь следующего дня в часовом поясе loc
func StartOfNextDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, loc)
}
