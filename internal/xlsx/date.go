package xlsx

import (
	"math"
	"time"
)

// excelEpoch is December 31, 1899 so that adding the serial's day count
// lands on the correct date once the 1900 leap-year bug is corrected.
var excelEpoch = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)

// serialToTime converts a SpreadsheetML numeric date serial to time.Time.
// Excel (inheriting a Lotus 1-2-3 bug) treats 1900 as a leap year, so serial
// 60 is the nonexistent February 29, 1900; serials above it are shifted back
// a day to land on the real date.
func serialToTime(serial float64) time.Time {
	if serial < 0 {
		return time.Time{}
	}

	days := int(serial)
	fraction := serial - float64(days)
	if days > 60 {
		days--
	}

	totalSeconds := math.Round(fraction * 24 * 60 * 60)
	hours := int(totalSeconds) / 3600
	totalSeconds -= float64(hours * 3600)
	minutes := int(totalSeconds) / 60
	seconds := int(totalSeconds) - minutes*60

	d := excelEpoch.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hours, minutes, seconds, 0, time.UTC)
}
