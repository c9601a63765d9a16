package reservation

import (
	"fmt"
	"time"
)

// FormatDate renders a day the way the reservation calendar labels its cells,
// e.g. "Thursday, July 4, 2024".
func FormatDate(year, month, day int) string {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%s, %s %d, %d", d.Weekday(), time.Month(month), day, year)
}

// AvailableLabel returns the aria-label an open calendar cell carries for date
func AvailableLabel(formattedDate string) string {
	return formattedDate + " - Available"
}

// MonthSteps returns how many times the calendar must be advanced from the
// current month to show the desired month. A negative difference returns
// ErrPastMonth.
func MonthSteps(desiredMonth int, currentMonth time.Month) (int, error) {
	steps := desiredMonth - int(currentMonth)
	if steps < 0 {
		return 0, fmt.Errorf("%w: desired month %d is before current month %d", ErrPastMonth, desiredMonth, int(currentMonth))
	}
	return steps, nil
}

// DaysIn returns the number of days in the given month
func DaysIn(year, month int) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
