package order

import "time"

// addBusinessDays returns t moved forward by n business days, skipping
// Saturdays and Sundays. The time of day is preserved, matching the product's
// "T+3" settlement wording.
func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		n--
	}
	return t
}
