package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar day exchanged on the wire as [year, month, day].
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func DateOf(year int, month time.Month, day int) *Date {
	return &Date{Year: year, Month: month, Day: day}
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String renders the date day-month-year, zero padded: 05/03/2024.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// FormatDate renders an optional date, empty when unset.
func FormatDate(d *Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{d.Year, int(d.Month), d.Day})
}

// UnmarshalJSON accepts the [year, month, day] array, an ISO "2006-01-02"
// string, or an empty string, which leaves the date unset.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*d = Date{}
			return nil
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return fmt.Errorf("date %q: %w", s, err)
		}
		*d = NewDate(t)
		return nil
	}
	var parts []int
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if len(parts) < 3 {
		return fmt.Errorf("date: want [year, month, day], got %d elements", len(parts))
	}
	*d = Date{Year: parts[0], Month: time.Month(parts[1]), Day: parts[2]}
	return nil
}
