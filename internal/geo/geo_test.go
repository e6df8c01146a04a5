package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

var (
	mumbai = domain.GeoPoint{Lat: 19.0760, Lon: 72.8777}
	chennai = domain.GeoPoint{Lat: 13.0827, Lon: 80.2707}
)

func TestDistanceKm(t *testing.T) {
	// Mumbai to Chennai is roughly 1030 km great-circle.
	d := DistanceKm(mumbai, chennai)
	assert.InDelta(t, 1030, d, 15)

	assert.Zero(t, DistanceKm(mumbai, mumbai))
}

func TestDistanceMeters_ShortRange(t *testing.T) {
	a := domain.GeoPoint{Lat: 19.0760, Lon: 72.8777}
	b := domain.GeoPoint{Lat: 19.0769, Lon: 72.8777} // ~100m north
	assert.InDelta(t, 100, DistanceMeters(a, b), 2)
}

func TestCentroid(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 10, Lon: 70},
		{Lat: 12, Lon: 72},
		{Lat: 14, Lon: 74},
	}
	c := Centroid(points)
	assert.InDelta(t, 12, c.Lat, 1e-9)
	assert.InDelta(t, 72, c.Lon, 1e-9)

	assert.Equal(t, domain.GeoPoint{}, Centroid(nil))
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	dest := DestinationPoint(mumbai, 90, 50)
	assert.InDelta(t, 50, DistanceKm(mumbai, dest), 0.1)

	back := DestinationPoint(dest, 270, 50)
	assert.InDelta(t, mumbai.Lat, back.Lat, 0.01)
	assert.InDelta(t, mumbai.Lon, back.Lon, 0.01)
}

func TestConvexHull_ClosedRing(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 19.0, Lon: 72.8},
		{Lat: 19.1, Lon: 72.8},
		{Lat: 19.1, Lon: 72.9},
		{Lat: 19.0, Lon: 72.9},
		{Lat: 19.05, Lon: 72.85}, // interior point, must not appear
	}
	hull := ConvexHull(points)
	require.GreaterOrEqual(t, len(hull), 5)
	assert.Equal(t, hull[0], hull[len(hull)-1], "ring must close")

	for _, v := range hull {
		assert.NotEqual(t, domain.GeoPoint{Lat: 19.05, Lon: 72.85}, v)
	}
}

func TestConvexHull_Degenerate(t *testing.T) {
	two := []domain.GeoPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	assert.Equal(t, two, ConvexHull(two))
}

func TestBufferedHull_SinglePointIsCircle(t *testing.T) {
	ring := BufferedHull([]domain.GeoPoint{mumbai}, 1.0)
	require.Len(t, ring, 17) // 16 segments + closing vertex
	assert.Equal(t, ring[0], ring[len(ring)-1])

	for _, v := range ring[:16] {
		assert.InDelta(t, 1.0, DistanceKm(mumbai, v), 0.05)
	}
}

func TestBufferedHull_ExpandsOutward(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 19.0, Lon: 72.8},
		{Lat: 19.1, Lon: 72.8},
		{Lat: 19.1, Lon: 72.9},
		{Lat: 19.0, Lon: 72.9},
	}
	centroid := Centroid(points)
	plain := ConvexHull(points)
	buffered := BufferedHull(points, 2.0)

	require.Equal(t, len(plain), len(buffered))
	for i := range buffered {
		assert.Greater(t,
			DistanceKm(centroid, buffered[i]),
			DistanceKm(centroid, plain[i])-1e-9,
		)
	}
}

func TestBearing_Cardinal(t *testing.T) {
	north := DestinationPoint(mumbai, 0, 10)
	assert.InDelta(t, 0, Bearing(mumbai, north), 0.5)

	east := DestinationPoint(mumbai, 90, 10)
	assert.InDelta(t, 90, Bearing(mumbai, east), 0.5)

	// Same longitude is exactly due north. Float error here produces a value
	// a hair under 360, which must fold back to 0.
	up := domain.GeoPoint{Lat: mumbai.Lat + 0.1, Lon: mumbai.Lon}
	assert.Equal(t, 0.0, Bearing(mumbai, up))
}

func TestBearing_Range(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 19.1, Lon: 72.8777}, {Lat: 19.0, Lon: 72.9},
		{Lat: 19.0, Lon: 72.8}, {Lat: 19.1, Lon: 72.9}, chennai,
	}
	for _, p := range points {
		b := Bearing(mumbai, p)
		assert.GreaterOrEqual(t, b, 0.0)
		assert.Less(t, b, 360.0)
	}
}

func TestCircleRing(t *testing.T) {
	ring := CircleRing(mumbai, 2.0)
	require.Len(t, ring, 17, "16 segments plus the closing vertex")
	assert.Equal(t, ring[0], ring[len(ring)-1])
	for _, v := range ring[:16] {
		assert.InDelta(t, 2.0, DistanceKm(mumbai, v), 0.05)
	}
}
