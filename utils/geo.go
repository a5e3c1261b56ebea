package utils

import (
	"fmt"
	"math"
)

const earthRadiusMiles = 3959.0

// HaversineMiles returns the great-circle distance between two points in
// miles, rounded to one decimal place.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(earthRadiusMiles*c*10) / 10
}

// FormatDistance renders a distance in miles for display
func FormatDistance(miles float64) string {
	if miles < 0.1 {
		return "Very close"
	}
	if miles < 1 {
		return fmt.Sprintf("%.0f ft", miles*5280)
	}
	return fmt.Sprintf("%.1f mi", miles)
}
