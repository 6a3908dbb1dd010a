package risk

import "math"

// RR is the planned reward to risk ratio of a trade. Zero when the stop
// sits on the entry.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 || takeProfit == 0 {
		return 0
	}
	return reward / risk
}

// PlannedRisk computes the absolute quote-currency loss if the stop is hit
// for volume lots of contractSize units each.
func PlannedRisk(volume, contractSize, entry, stop float64) float64 {
	return volume * contractSize * math.Abs(entry-stop)
}
