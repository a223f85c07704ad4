package utils

import "time"

const (
	timeLayout = "3:04 PM"
	dateLayout = "2 Jan, 2006"
)

// FormatTime renders a message timestamp, e.g. "7:23 AM".
func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// FormatDate renders a day separator, e.g. "7 Mar, 2024".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
