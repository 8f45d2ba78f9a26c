package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mean earth radius in meters, shared by the projection and the
// spherical-area computation.
const earthRadiusM = 6371000.0

// LatLngPoint is a geographic coordinate in degrees.
type LatLngPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is a latitude/longitude-aligned rectangle in degrees.
// LatLo/LngLo is the southwest corner, LatHi/LngHi the northeast corner.
type BoundingBox struct {
	LatLo float64 `json:"lat_lo"`
	LngLo float64 `json:"lng_lo"`
	LatHi float64 `json:"lat_hi"`
	LngHi float64 `json:"lng_hi"`
}

// LowCorner returns the southwest corner of the box.
func (b BoundingBox) LowCorner() LatLngPoint {
	return LatLngPoint{Lat: b.LatLo, Lng: b.LngLo}
}

// HighCorner returns the northeast corner of the box.
func (b BoundingBox) HighCorner() LatLngPoint {
	return LatLngPoint{Lat: b.LatHi, Lng: b.LngHi}
}

// Contains reports whether other lies entirely within b.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return other.LatLo >= b.LatLo && other.LatHi <= b.LatHi &&
		other.LngLo >= b.LngLo && other.LngHi <= b.LngHi
}

// ContainsPoint reports whether p lies within b.
func (b BoundingBox) ContainsPoint(p LatLngPoint) bool {
	return p.Lat >= b.LatLo && p.Lat <= b.LatHi &&
		p.Lng >= b.LngLo && p.Lng <= b.LngHi
}

// String renders the box in the same comma-separated form ParseView accepts.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.LatLo, b.LngLo, b.LatHi, b.LngHi)
}

// ParseView parses a "latLo,lngLo,latHi,lngHi" view string in degrees.
func ParseView(view string) (BoundingBox, error) {
	parts := strings.Split(view, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("view must have 4 comma-separated values, got %d", len(parts))
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid view coordinate %q: %w", part, err)
		}
		coords[i] = v
	}

	box := BoundingBox{LatLo: coords[0], LngLo: coords[1], LatHi: coords[2], LngHi: coords[3]}
	if box.LatLo > box.LatHi || box.LngLo > box.LngHi {
		return BoundingBox{}, fmt.Errorf("view corners out of order: %s", view)
	}
	if box.LatLo < -90 || box.LatHi > 90 || box.LngLo < -180 || box.LngHi > 180 {
		return BoundingBox{}, fmt.Errorf("view coordinates out of range: %s", view)
	}

	return box, nil
}

// Flatten projects point into the local planar frame anchored at reference
// using an equirectangular projection. The returned x/y are meters east and
// north of the reference.
func Flatten(reference, point LatLngPoint) (x, y float64) {
	x = radians(point.Lng-reference.Lng) * earthRadiusM * math.Cos(radians(reference.Lat))
	y = radians(point.Lat-reference.Lat) * earthRadiusM
	return x, y
}

// Unflatten is the inverse of Flatten for the same reference point.
func Unflatten(reference LatLngPoint, x, y float64) LatLngPoint {
	return LatLngPoint{
		Lat: reference.Lat + degrees(y/earthRadiusM),
		Lng: reference.Lng + degrees(x/(earthRadiusM*math.Cos(radians(reference.Lat)))),
	}
}

// DiagonalKm returns the great-circle length of the box diagonal in
// kilometers.
func DiagonalKm(b BoundingBox) float64 {
	return haversineM(b.LatLo, b.LngLo, b.LatHi, b.LngHi) / 1000
}

// SphericalAreaSqm returns the true area in square meters of the rectangle
// bounded by the box's parallels and meridians on a spherical earth.
func SphericalAreaSqm(b BoundingBox) float64 {
	band := math.Abs(math.Sin(radians(b.LatHi)) - math.Sin(radians(b.LatLo)))
	return earthRadiusM * earthRadiusM * band * math.Abs(radians(b.LngHi-b.LngLo))
}

// Pad expands the box by the given distance in meters on all four sides.
// The longitudinal padding is scaled by the cosine of the box's center
// latitude so the padding is metrically uniform.
func Pad(b BoundingBox, meters float64) BoundingBox {
	latDelta := degrees(meters / earthRadiusM)
	centerLat := (b.LatLo + b.LatHi) / 2
	lngDelta := degrees(meters / (earthRadiusM * math.Cos(radians(centerLat))))

	return BoundingBox{
		LatLo: b.LatLo - latDelta,
		LngLo: b.LngLo - lngDelta,
		LatHi: b.LatHi + latDelta,
		LngHi: b.LngHi + lngDelta,
	}
}

// haversineM returns the great-circle distance between two coordinates in
// meters.
func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1, phi2 := radians(lat1), radians(lat2)
	dPhi, dLambda := radians(lat2-lat1), radians(lng2-lng1)
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
