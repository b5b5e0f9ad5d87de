package casework

import (
	"math"
	"regexp"
	"strconv"

	"golang.org/x/text/cases"
)

const earthRadiusMeters = 6371000.0

// DefaultNearbyRadius is used when a nearby query omits the radius.
const DefaultNearbyRadius = 5000.0

var (
	sridPointRe = regexp.MustCompile(`^SRID=\d+;POINT\((-?\d+\.?\d*) (-?\d+\.?\d*)\)$`)
	pointRe     = regexp.MustCompile(`^POINT\((-?\d+\.?\d*) (-?\d+\.?\d*)\)$`)
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParseLocation reads the WKT the intake app stores, with or without an
// SRID prefix. WKT orders coordinates longitude first.
func ParseLocation(wkt string) (Point, bool) {
	m := sridPointRe.FindStringSubmatch(wkt)
	if m == nil {
		m = pointRe.FindStringSubmatch(wkt)
	}
	if m == nil {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Point{}, false
	}
	return Point{Lat: lat, Lng: lng}, true
}

// Coordinates returns the report position, falling back to its WKT location.
func (r CrimeReport) Coordinates() (Point, bool) {
	if r.Latitude != nil && r.Longitude != nil {
		return Point{Lat: *r.Latitude, Lng: *r.Longitude}, true
	}
	if r.Location != "" {
		return ParseLocation(r.Location)
	}
	return Point{}, false
}

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func ValidPoint(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// MarkerColor picks the map marker color for a crime type. A Caser is not
// safe for concurrent use, so each call builds its own.
func MarkerColor(crimeType string) string {
	switch cases.Fold().String(crimeType) {
	case "theft":
		return "#FF0000"
	case "assault":
		return "#8B00FF"
	default:
		return "#FFFF00"
	}
}
