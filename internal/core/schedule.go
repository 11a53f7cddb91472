package core

import "time"

// Installment schedule arithmetic. Due dates are pure functions of the
// start date, the frequency and the occurrence index, and are strictly
// monotonic in the index.
//
// Card purchases charge on the first date: leg i (0-based) is due at
// DueDate(firstChargeDate, Monthly, i). Credits pay in arrears: the
// first installment matures one period after the start date, so
// installment i (0-based) is due at DueDate(startDate, freq, i+1).

// DueDate returns the start date advanced by n periods of the given
// frequency. Monthly advancement clamps to the last day of the target
// month (Jan 31 + 1 month = Feb 28/29).
func DueDate(start Date, freq Frequency, n int) Date {
	if n <= 0 {
		return start
	}
	switch freq {
	case Weekly:
		return Date{Time: start.AddDate(0, 0, 7*n)}
	case Biweekly:
		return Date{Time: start.AddDate(0, 0, 14*n)}
	default: // Monthly
		return addMonthsClamped(start, n)
	}
}

// PastDueCount returns how many occurrences in the index range
// [first, first+count) have a due date strictly before today. Due dates
// are monotonic, so the count is always a contiguous prefix: the walk
// stops at the first occurrence due today or later.
func PastDueCount(start Date, freq Frequency, first, count int, today Date) int {
	due := 0
	for i := 0; i < count; i++ {
		d := DueDate(start, freq, first+i)
		if !d.Before(today) {
			break
		}
		due++
	}
	return due
}

// addMonthsClamped adds n months keeping the day of month where it
// exists and clamping to the month's last day where it does not.
// time.AddDate alone would normalize Jan 31 + 1 month into Mar 2/3.
func addMonthsClamped(start Date, n int) Date {
	y, m, d := start.Date()
	month := int(m) + n
	year := y + (month-1)/12
	month = (month-1)%12 + 1
	last := lastDayOfMonth(year, month)
	if d > last {
		d = last
	}
	return NewDate(year, month, d)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
