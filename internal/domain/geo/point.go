// Package geo provides the coordinate types and distance math used by the
// spatial matching layer. Distances use a great-circle (haversine) model.
package geo

import "math"

const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate pair.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// NewPoint creates a Point from longitude and latitude.
func NewPoint(lng, lat float64) Point {
	return Point{Longitude: lng, Latitude: lat}
}

// Valid reports whether the point lies within WGS84 coordinate bounds.
func (p Point) Valid() bool {
	return p.Longitude >= -180 && p.Longitude <= 180 &&
		p.Latitude >= -90 && p.Latitude <= 90
}

// LngLat returns the point as a [longitude, latitude] pair, the wire
// ordering used in alert payloads.
func (p Point) LngLat() [2]float64 {
	return [2]float64{p.Longitude, p.Latitude}
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BoundingBox returns the min/max latitude and longitude of a box that
// fully contains the circle of radiusMeters around center. Used to
// prefilter candidates in SQL before the precise haversine check.
// The longitude range is not wrapped at the antimeridian, so a circle
// straddling ±180° loses candidates on the far side of the seam.
func BoundingBox(center Point, radiusMeters float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	minLat = center.Latitude - dLat
	maxLat = center.Latitude + dLat

	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat < 1e-10 {
		// Polar degenerate case: the box spans all longitudes.
		return minLat, maxLat, -180, 180
	}
	dLng := radiusMeters / (earthRadiusMeters * cosLat) * 180 / math.Pi
	minLng = center.Longitude - dLng
	maxLng = center.Longitude + dLng
	return minLat, maxLat, minLng, maxLng
}
