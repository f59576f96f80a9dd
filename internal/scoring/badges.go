package scoring

import "strings"

// HeartRateZone names a training zone derived from average heart rate.
type HeartRateZone struct {
	Name  string
	Color string
}

var zones = []struct {
	min, max float64
	zone     HeartRateZone
}{
	{160, 178, HeartRateZone{Name: "VO2 Max", Color: "#d10000"}},
	{142, 159, HeartRateZone{Name: "Anaerobic", Color: "#ff4500"}},
	{125, 141, HeartRateZone{Name: "Aerobic", Color: "#2e8b57"}},
	{107, 124, HeartRateZone{Name: "Fat Burn", Color: "#4682b4"}},
	{89, 106, HeartRateZone{Name: "Warm Up", Color: "#6a5acd"}},
}

// ZoneFor returns the zone for an average heart rate in bpm. Missing or
// out-of-range values return nil.
func ZoneFor(avg *float64) *HeartRateZone {
	if avg == nil || *avg <= 0 {
		return nil
	}
	for _, z := range zones {
		if *avg >= z.min && *avg <= z.max {
			zone := z.zone
			return &zone
		}
	}
	return nil
}

// IsPersonalBest reports whether the athlete tagged the activity title as a PB.
func IsPersonalBest(name string) bool {
	return strings.Contains(name, "PB")
}
