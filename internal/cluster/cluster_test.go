package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

var clusterNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// signalAt builds a scored flood signal near Mumbai offset by degrees.
func signalAt(id string, dLat, dLon float64) domain.Signal {
	return domain.Signal{
		ID:         id,
		Source:     domain.SourceReport,
		Location:   domain.GeoPoint{Lat: 19.07 + dLat, Lon: 72.87 + dLon},
		Hazard:     domain.HazardFlood,
		Composite:  0.8,
		Scored:     true,
		OccurredAt: clusterNow.Add(-10 * time.Minute),
	}
}

func TestCluster_TwoSeparateGroups(t *testing.T) {
	c := New(DefaultParams())

	var signals []domain.Signal
	// Group A: 4 signals within ~110m of each other.
	for i := 0; i < 4; i++ {
		signals = append(signals, signalAt(fmt.Sprintf("a%d", i), float64(i)*0.0005, 0))
	}
	// Group B: 3 signals ~11km away.
	for i := 0; i < 3; i++ {
		signals = append(signals, signalAt(fmt.Sprintf("b%d", i), 0.1+float64(i)*0.0005, 0))
	}

	clusters := c.Cluster(signals)
	require.Len(t, clusters, 2)

	assert.Equal(t, 4, clusters[0].Count)
	assert.ElementsMatch(t, []string{"a0", "a1", "a2", "a3"}, clusters[0].SignalIDs)
	assert.Equal(t, 3, clusters[1].Count)
	assert.Equal(t, domain.HazardFlood, clusters[0].Hazard)
}

func TestCluster_NoiseBelowMinPoints(t *testing.T) {
	c := New(DefaultParams())

	signals := []domain.Signal{
		signalAt("lone", 0, 0),
		signalAt("pair-a", 0.5, 0),
		signalAt("pair-b", 0.5005, 0),
	}
	assert.Empty(t, c.Cluster(signals))
}

func TestCluster_ChainIsDensityConnected(t *testing.T) {
	c := New(DefaultParams())

	// Each link is ~440m from the next, so the chain is epsilon-connected
	// even though the endpoints are kilometers apart.
	var signals []domain.Signal
	for i := 0; i < 8; i++ {
		signals = append(signals, signalAt(fmt.Sprintf("link%d", i), float64(i)*0.004, 0))
	}

	clusters := c.Cluster(signals)
	require.Len(t, clusters, 1)
	assert.Equal(t, 8, clusters[0].Count)
	assert.Greater(t, clusters[0].RadiusKm, 1.0, "chain span exceeds epsilon")
}

func TestCluster_DeterministicMembership(t *testing.T) {
	c := New(DefaultParams())

	var signals []domain.Signal
	for i := 0; i < 12; i++ {
		signals = append(signals, signalAt(fmt.Sprintf("s%02d", i), float64(i%4)*0.0005, float64(i/4)*0.0005))
	}

	first := c.Cluster(signals)
	require.NotEmpty(t, first)

	for run := 0; run < 5; run++ {
		again := c.Cluster(signals)
		require.Len(t, again, len(first))
		for i := range first {
			assert.Equal(t, first[i].SignalIDs, again[i].SignalIDs)
			assert.Equal(t, first[i].Risk, again[i].Risk)
		}
	}
}

func TestEligible(t *testing.T) {
	c := New(DefaultParams())

	fresh := signalAt("fresh", 0, 0)
	stale := signalAt("stale", 0, 0)
	stale.OccurredAt = clusterNow.Add(-4 * time.Hour)
	weak := signalAt("weak", 0, 0)
	weak.Composite = 0.2
	unscored := signalAt("unscored", 0, 0)
	unscored.Scored = false

	got := c.Eligible([]domain.Signal{fresh, stale, weak, unscored}, clusterNow)

	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}

func TestCluster_AssembledFields(t *testing.T) {
	c := New(DefaultParams())

	a := signalAt("z-later", 0, 0)
	a.Verified = true
	b := signalAt("a-first", 0.0005, 0)
	b.Hazard = domain.HazardTsunami
	d := signalAt("m-mid", 0.001, 0)

	clusters := c.Cluster([]domain.Signal{a, b, d})
	require.Len(t, clusters, 1)
	cl := clusters[0]

	assert.NotEmpty(t, cl.ID)
	assert.Equal(t, []string{"a-first", "m-mid", "z-later"}, cl.SignalIDs, "IDs are sorted")
	assert.InDelta(t, 19.0705, cl.Centroid.Lat, 1e-4)
	assert.InDelta(t, 1.0/3.0, cl.VerificationRate, 1e-9)
	assert.InDelta(t, 0.8, cl.AvgConfidence, 1e-9)
	assert.Greater(t, float64(cl.Risk), 0.0)
	assert.Equal(t, cl.Risk.Level(), cl.Level)
	assert.NotEmpty(t, cl.Polygon)
	assert.Equal(t, 2, cl.HazardCounts[domain.HazardFlood])
	assert.Equal(t, domain.HazardFlood, cl.Hazard, "majority hazard wins")
	assert.Equal(t, PartitionKey(cl.Centroid), cl.PartitionKey)
}

func TestDominantHazard_TieBreaksOnKnownOrder(t *testing.T) {
	counts := map[domain.HazardType]int{
		domain.HazardFlood:   2,
		domain.HazardTsunami: 2,
	}
	// Tsunami precedes flood in the canonical hazard order.
	assert.Equal(t, domain.HazardTsunami, dominantHazard(counts))
}

func TestClusterOwned_BoundaryGroupEmittedOnce(t *testing.T) {
	c := New(DefaultParams())

	// Four signals within ~45m of each other straddling the 19.0 grid line.
	var signals []domain.Signal
	for i, lat := range []float64{18.9998, 18.9999, 19.0001, 19.0002} {
		s := signalAt(fmt.Sprintf("edge%d", i), 0, 0)
		s.Location = domain.GeoPoint{Lat: lat, Lon: 72.87}
		signals = append(signals, s)
	}

	south := PartitionKey(domain.GeoPoint{Lat: 18.9998, Lon: 72.87})
	north := PartitionKey(domain.GeoPoint{Lat: 19.0002, Lon: 72.87})
	require.NotEqual(t, south, north)

	owned := c.ClusterOwned(signals, south)
	require.Len(t, owned, 1, "the seed's partition owns the straddling group")
	assert.Equal(t, 4, owned[0].Count)

	assert.Empty(t, c.ClusterOwned(signals, north), "the neighboring pass must not emit a duplicate")
}

func TestPartitionCell(t *testing.T) {
	row, col := PartitionCell(domain.GeoPoint{Lat: 19.07, Lon: 72.87})
	assert.Equal(t, 38, row)
	assert.Equal(t, 145, col)
	assert.Equal(t, "p38:145", CellKey(row, col))
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, "p38:145", PartitionKey(domain.GeoPoint{Lat: 19.07, Lon: 72.87}))
	assert.Equal(t, "p38:145", PartitionKey(domain.GeoPoint{Lat: 19.3, Lon: 72.6}), "same half-degree cell")
	assert.NotEqual(t,
		PartitionKey(domain.GeoPoint{Lat: 19.07, Lon: 72.87}),
		PartitionKey(domain.GeoPoint{Lat: 19.7, Lon: 72.87}))
	assert.Equal(t, "p-1:-1", PartitionKey(domain.GeoPoint{Lat: -0.2, Lon: -0.2}))
}
