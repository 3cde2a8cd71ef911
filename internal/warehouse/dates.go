package warehouse

import "time"

// DateRow is one calendar day of the date dimension.
type DateRow struct {
	Date      time.Time
	Day       int
	Month     int
	Year      int
	Quarter   int
	DayOfWeek int
	DayName   string
	MonthName string
	IsWeekend bool
}

// DateWindow returns the rolling generation window: the same month and day
// three years before now, through 365 days after now.
func DateWindow(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(-3, 0, 0), day.AddDate(0, 0, 365)
}

// GenerateDates produces one row per calendar day from start through end
// inclusive. Day-of-week is Monday-based (Monday=0, Sunday=6).
func GenerateDates(start, end time.Time) []DateRow {
	var rows []DateRow
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		dow := (int(current.Weekday()) + 6) % 7
		rows = append(rows, DateRow{
			Date:      current,
			Day:       current.Day(),
			Month:     int(current.Month()),
			Year:      current.Year(),
			Quarter:   (int(current.Month())-1)/3 + 1,
			DayOfWeek: dow,
			DayName:   current.Format("Monday"),
			MonthName: current.Format("January"),
			IsWeekend: dow >= 5,
		})
	}
	return rows
}
