// Galactic calendar: era labels and the time increments sessions advance by.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talgya/galaxy-of-consequence/internal/entropy"
)

// Galactic Standard Calendar units, in days.
const (
	DaysPerWeek  = 5
	DaysPerMonth = 35
	DaysPerYear  = 368
)

// startingYears are the eras a new session can open in. Years are relative
// to the Battle of Yavin: negative is BBY, positive is ABY.
var startingYears = []int{25, 4, 0, -19, -22}

// Calendar is a position in galactic time. Day runs from 1 to DaysPerYear.
type Calendar struct {
	Year int `json:"year"`
	Day  int `json:"day"`
}

// RandomCalendar opens a session on the first day of a random era.
func RandomCalendar(src entropy.Source) Calendar {
	return Calendar{Year: entropy.Pick(src, startingYears), Day: 1}
}

// Era names the period a year belongs to.
func Era(year int) string {
	switch {
	case year < -19:
		return "Clone Wars"
	case year < 0:
		return "Dark Times"
	case year < 4:
		return "Rebellion Era"
	case year < 25:
		return "New Republic Era"
	default:
		return "New Jedi Order Era"
	}
}

// YearLabel renders a year as "19 BBY" or "4 ABY". Year zero is "0 BBY".
func YearLabel(year int) string {
	if year <= 0 {
		return fmt.Sprintf("%d BBY", -year)
	}
	return fmt.Sprintf("%d ABY", year)
}

// Label returns the session timestamp string. The first day of a year
// carries no day suffix.
func (c Calendar) Label() string {
	base := fmt.Sprintf("Galactic Standard Calendar: %s - %s", YearLabel(c.Year), Era(c.Year))
	if c.Day <= 1 {
		return base
	}
	return fmt.Sprintf("%s, Day %d", base, c.Day)
}

// Advance moves the calendar forward by days, rolling over years.
func (c Calendar) Advance(days int) Calendar {
	if c.Day < 1 {
		c.Day = 1
	}
	if days <= 0 {
		return c
	}
	c.Day += days
	for c.Day > DaysPerYear {
		c.Day -= DaysPerYear
		c.Year++
	}
	return c
}

// Elapsed counts days since day one of year zero. Used as a noise coordinate.
func (c Calendar) Elapsed() int {
	return c.Year*DaysPerYear + c.Day - 1
}

// ParseIncrement reads increments like "1 day", "3 weeks" or "2 months".
// Anything it cannot read counts as one day.
func ParseIncrement(s string) int {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return 1
	}
	n := 1
	unit := fields[0]
	if len(fields) > 1 {
		v, err := strconv.Atoi(fields[0])
		if err != nil || v < 1 {
			return 1
		}
		n, unit = v, fields[1]
	}
	switch strings.TrimSuffix(unit, "s") {
	case "day":
		return n
	case "week":
		return n * DaysPerWeek
	case "month":
		return n * DaysPerMonth
	case "year":
		return n * DaysPerYear
	default:
		return 1
	}
}
