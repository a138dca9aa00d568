// Package calendar builds the month grid the booking page is rendered from.
package calendar

import "time"

// Day is one selectable cell in the booking calendar.
type Day struct {
	Number int       `json:"dayNumber"`
	Date   time.Time `json:"fullDate"`
	Past   bool      `json:"isPast"`
	Today  bool      `json:"isToday"`
}

// Generate returns the cells for one month as a Sunday-first grid. Leading
// nil entries pad the first week so day 1 lands in its weekday column.
//
// Past is true for every date up to and including today: same-day booking is
// intentionally not offered, so today renders as unselectable.
func Generate(year int, month time.Month, today time.Time) []*Day {
	todayMidnight := Midnight(today)
	first := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
	daysInMonth := first.AddDate(0, 1, -1).Day()

	cells := make([]*Day, 0, int(first.Weekday())+daysInMonth)
	for i := 0; i < int(first.Weekday()); i++ {
		cells = append(cells, nil)
	}

	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, today.Location())
		cells = append(cells, &Day{
			Number: d,
			Date:   date,
			Past:   !date.After(todayMidnight),
			Today:  date.Equal(todayMidnight),
		})
	}

	return cells
}

// DefaultBookingDate is the first selectable date: tomorrow. When tomorrow
// rolls into the next month the caller renders that month instead.
func DefaultBookingDate(today time.Time) time.Time {
	return Midnight(today).AddDate(0, 0, 1)
}

// Midnight truncates t to the start of its day, keeping the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
