package risk

import "time"

const dateLayout = "2006-01-02"

// TodayOpen returns the local midnight for now in loc.
func TodayOpen(loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// TradingDate is the YYYY-MM-DD key of now in loc.
func TradingDate(loc *time.Location, now time.Time) string {
	return TodayOpen(loc, now).Format(dateLayout)
}

// SameTradingDay checks if a and b are on the same local day in loc.
func SameTradingDay(loc *time.Location, a, b time.Time) bool {
	return TodayOpen(loc, a).Equal(TodayOpen(loc, b))
}
