package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// MonthKeyOf returns the month key of t in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return monthKeyFor(t.Year(), t.Month())
}

func monthKeyFor(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, _, err := splitMonthKey(s); err != nil {
		return "", err
	}
	return MonthKey(s), nil
}

func splitMonthKey(s string) (int, time.Month, error) {
	if !monthKeyPattern.MatchString(s) {
		return 0, 0, invalid("month", s, "must match YYYY-MM")
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])
	if month < 1 || month > 12 {
		return 0, 0, invalid("month", s, "month must be between 01 and 12")
	}
	if year < 1 {
		return 0, 0, invalid("month", s, "year must be positive")
	}
	return year, time.Month(month), nil
}

// YearMonth returns the components of the key.
func (m MonthKey) YearMonth() (int, time.Month, error) {
	return splitMonthKey(string(m))
}

func (m MonthKey) Validate() error {
	_, _, err := splitMonthKey(string(m))
	return err
}

func (m MonthKey) String() string {
	return string(m)
}

// Next returns the following month, wrapping December into January.
func (m MonthKey) Next() (MonthKey, error) {
	year, month, err := splitMonthKey(string(m))
	if err != nil {
		return "", err
	}
	if month == time.December {
		return monthKeyFor(year+1, time.January), nil
	}
	return monthKeyFor(year, month+1), nil
}

// Previous returns the preceding month, wrapping January into December.
func (m MonthKey) Previous() (MonthKey, error) {
	year, month, err := splitMonthKey(string(m))
	if err != nil {
		return "", err
	}
	if month == time.January {
		return monthKeyFor(year-1, time.December), nil
	}
	return monthKeyFor(year, month-1), nil
}

// Before compares two valid keys; zero-padded keys sort chronologically.
func (m MonthKey) Before(other MonthKey) bool {
	return m < other
}

func (m MonthKey) After(other MonthKey) bool {
	return m > other
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidateDayOfMonth checks 1 <= day <= 31.
func ValidateDayOfMonth(day int) error {
	if day < 1 || day > 31 {
		return invalid("day_of_month", day, "must be between 1 and 31")
	}
	return nil
}

// ClampDay returns min(day, last day of the month of m).
func ClampDay(m MonthKey, day int) (int, error) {
	year, month, err := splitMonthKey(string(m))
	if err != nil {
		return 0, err
	}
	if err := ValidateDayOfMonth(day); err != nil {
		return 0, err
	}
	return min(day, LastDayOfMonth(year, month)), nil
}

// ResolveDueDate returns the date an obligation falls on in month m, clamping
// day to the month's last day (day 31 in February lands on the 28th or 29th).
func ResolveDueDate(m MonthKey, day int) (time.Time, error) {
	year, month, err := splitMonthKey(string(m))
	if err != nil {
		return time.Time{}, err
	}
	clamped, err := ClampDay(m, day)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, month, clamped, 0, 0, 0, 0, time.UTC), nil
}
