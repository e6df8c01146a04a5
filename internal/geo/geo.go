// Package geo provides the spherical geometry used by clustering, zone
// shaping, and forecasting: great-circle distance, centroids, convex hulls,
// and buffered polygons. All distances are on the WGS-84 sphere with a mean
// earth radius of 6371 km.
package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

const (
	// EarthRadiusKm is Earth's mean radius.
	EarthRadiusKm = 6371.0

	// circleSegments is the vertex count for single-point buffer rings.
	circleSegments = 16
)

// DistanceKm returns the great-circle distance between two points in
// kilometers.
func DistanceKm(a, b domain.GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// DistanceMeters returns the great-circle distance in meters.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	return DistanceKm(a, b) * 1000
}

// Centroid returns the arithmetic mean of the points' coordinates. Good
// enough for cluster-scale extents; not valid across the antimeridian.
func Centroid(points []domain.GeoPoint) domain.GeoPoint {
	if len(points) == 0 {
		return domain.GeoPoint{}
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return domain.GeoPoint{Lat: sumLat / n, Lon: sumLon / n}
}

// MaxRadiusKm returns the distance from the centroid to the farthest point.
func MaxRadiusKm(centroid domain.GeoPoint, points []domain.GeoPoint) float64 {
	var max float64
	for _, p := range points {
		if d := DistanceKm(centroid, p); d > max {
			max = d
		}
	}
	return max
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lonDiff := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)
	bearing := math.Atan2(y, x) * 180 / math.Pi

	// Float error can land a due-north bearing a hair under 360; fold it
	// back so the result stays in [0, 360).
	deg := math.Mod(bearing+360, 360)
	if 360-deg < 1e-9 {
		deg = 0
	}
	return deg
}

// DestinationPoint returns the point reached by travelling distanceKm from p
// along the given bearing (degrees).
func DestinationPoint(p domain.GeoPoint, bearingDeg, distanceKm float64) domain.GeoPoint {
	bearingRad := bearingDeg * math.Pi / 180
	angular := distanceKm / EarthRadiusKm

	latRad := p.Lat * math.Pi / 180
	lonRad := p.Lon * math.Pi / 180

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))
	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(lat2))

	return domain.GeoPoint{Lat: lat2 * 180 / math.Pi, Lon: lon2 * 180 / math.Pi}
}

// ConvexHull returns the convex hull of the points as a closed ring (first
// vertex repeated last). Degenerate inputs (fewer than 3 points) return the
// points as given.
func ConvexHull(points []domain.GeoPoint) []domain.GeoPoint {
	if len(points) < 3 {
		return append([]domain.GeoPoint(nil), points...)
	}

	query := s2.NewConvexHullQuery()
	for _, p := range points {
		query.AddPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)))
	}
	loop := query.ConvexHull()

	hull := make([]domain.GeoPoint, 0, loop.NumVertices()+1)
	for i := 0; i < loop.NumVertices(); i++ {
		ll := s2.LatLngFromPoint(loop.Vertex(i))
		hull = append(hull, domain.GeoPoint{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()})
	}
	if len(hull) > 0 {
		hull = append(hull, hull[0])
	}
	return hull
}

// BufferedHull returns the convex hull of the points expanded outward from
// the centroid by bufferKm, as a closed ring. One or two points degrade to a
// circle around the centroid.
func BufferedHull(points []domain.GeoPoint, bufferKm float64) []domain.GeoPoint {
	if bufferKm < 0 {
		bufferKm = 0
	}
	centroid := Centroid(points)

	if len(points) < 3 {
		radius := MaxRadiusKm(centroid, points) + bufferKm
		return CircleRing(centroid, radius)
	}

	hull := ConvexHull(points)
	buffered := make([]domain.GeoPoint, 0, len(hull))
	for _, v := range hull {
		if v == centroid {
			buffered = append(buffered, v)
			continue
		}
		bearing := Bearing(centroid, v)
		buffered = append(buffered, DestinationPoint(v, bearing, bufferKm))
	}
	return buffered
}

// CircleRing approximates a circle of radiusKm around center as a closed
// 16-segment ring.
func CircleRing(center domain.GeoPoint, radiusKm float64) []domain.GeoPoint {
	if radiusKm <= 0 {
		radiusKm = 0.1
	}
	ring := make([]domain.GeoPoint, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		bearing := 360 * float64(i) / float64(circleSegments)
		ring = append(ring, DestinationPoint(center, bearing, radiusKm))
	}
	ring = append(ring, ring[0])
	return ring
}
