// Package cluster groups recent high-confidence signals into
// density-connected clusters (DBSCAN semantics). Expansion is breadth-first
// from the first unvisited signal in input order, so output is reproducible
// for a fixed input order, epsilon, and minPoints. Neighbor lookup uses a
// degree-grid index instead of the naive O(n²) scan; the grid only narrows
// candidates, every membership decision still goes through the exact
// great-circle distance, so cluster semantics are unchanged.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/geo"
	"github.com/atlas-alert/hazard-engine/internal/scoring"
)

const (
	// metersPerDegree approximates one degree of latitude. Used only to size
	// grid cells; never for membership decisions.
	metersPerDegree = 111_000.0

	// hullBufferFactor pads the cluster hull by half the cluster radius to
	// form the safety polygon.
	hullBufferFactor = 0.5

	// partitionCellDeg is the coarse grid used to serialize clustering
	// passes per geographic area.
	partitionCellDeg = 0.5
)

// Params configure a clustering pass.
type Params struct {
	EpsilonMeters float64       // pairwise linkage distance
	MinPoints     int           // minimum cluster membership
	MinConfidence float64       // composite threshold for eligibility, 0–1
	Window        time.Duration // sliding window over signal timestamps
}

// DefaultParams mirror a dense coastal-city deployment.
func DefaultParams() Params {
	return Params{
		EpsilonMeters: 500,
		MinPoints:     3,
		MinConfidence: 0.4,
		Window:        3 * time.Hour,
	}
}

// Clusterer runs density-reachability expansion over signal sets.
type Clusterer struct {
	params Params
}

// New creates a Clusterer. Zero or negative parameter values fall back to
// defaults.
func New(p Params) *Clusterer {
	def := DefaultParams()
	if p.EpsilonMeters <= 0 {
		p.EpsilonMeters = def.EpsilonMeters
	}
	if p.MinPoints <= 0 {
		p.MinPoints = def.MinPoints
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	return &Clusterer{params: p}
}

// Eligible filters signals to scored entries inside the sliding window with
// composite at or above the confidence threshold, preserving input order.
func (c *Clusterer) Eligible(signals []domain.Signal, now time.Time) []domain.Signal {
	cutoff := now.Add(-c.params.Window)
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Scored || s.Composite < c.params.MinConfidence {
			continue
		}
		if s.OccurredAt.Before(cutoff) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Run filters the signals and clusters the survivors.
func (c *Clusterer) Run(signals []domain.Signal, now time.Time) []domain.Cluster {
	return c.Cluster(c.Eligible(signals, now))
}

// Cluster performs one density-expansion pass over the given signals.
// Groups below MinPoints are discarded as noise.
func (c *Clusterer) Cluster(signals []domain.Signal) []domain.Cluster {
	return c.cluster(signals, "")
}

// ClusterOwned clusters the signals but emits only clusters whose seed, the
// first member in input order, lies in the owner partition. Passes over
// neighboring partitions receive boundary-straddling groups through their
// halo input; seed ownership guarantees exactly one pass emits each group.
func (c *Clusterer) ClusterOwned(signals []domain.Signal, owner string) []domain.Cluster {
	return c.cluster(signals, owner)
}

func (c *Clusterer) cluster(signals []domain.Signal, owner string) []domain.Cluster {
	if len(signals) < c.params.MinPoints {
		return nil
	}

	idx := buildGrid(signals, c.params.EpsilonMeters)
	visited := make([]bool, len(signals))

	var clusters []domain.Cluster
	for seed := range signals {
		if visited[seed] {
			continue
		}
		visited[seed] = true

		members := []int{seed}
		queue := []int{seed}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, n := range idx.neighbors(signals, current, c.params.EpsilonMeters) {
				if visited[n] {
					continue
				}
				visited[n] = true
				members = append(members, n)
				queue = append(queue, n)
			}
		}

		if len(members) < c.params.MinPoints {
			continue
		}
		if owner != "" && PartitionKey(signals[seed].Location) != owner {
			continue
		}
		clusters = append(clusters, c.assemble(signals, members))
	}
	return clusters
}

// assemble builds a scored domain.Cluster from member indices.
func (c *Clusterer) assemble(signals []domain.Signal, members []int) domain.Cluster {
	memberSignals := make([]domain.Signal, 0, len(members))
	points := make([]domain.GeoPoint, 0, len(members))
	ids := make([]string, 0, len(members))
	hazardCounts := make(map[domain.HazardType]int, 4)

	for _, i := range members {
		s := signals[i]
		memberSignals = append(memberSignals, s)
		points = append(points, s.Location)
		ids = append(ids, s.ID)
		hazardCounts[s.Hazard]++
	}
	sort.Strings(ids)

	centroid := geo.Centroid(points)
	stats := scoring.StatsFromSignals(memberSignals, centroid)
	risk := scoring.ScoreCluster(stats)

	return domain.Cluster{
		ID:               uuid.NewString(),
		SignalIDs:        ids,
		Centroid:         centroid,
		Polygon:          geo.BufferedHull(points, stats.RadiusKm*hullBufferFactor),
		Count:            stats.Count,
		RadiusKm:         stats.RadiusKm,
		AvgConfidence:    stats.AvgConfidence,
		VerificationRate: stats.VerificationRate,
		Risk:             risk,
		Level:            risk.Level(),
		Hazard:           dominantHazard(hazardCounts),
		HazardCounts:     hazardCounts,
		PartitionKey:     PartitionKey(centroid),
	}
}

// dominantHazard picks the most frequent hazard type, breaking ties on the
// fixed KnownHazards order.
func dominantHazard(counts map[domain.HazardType]int) domain.HazardType {
	best := domain.HazardOther
	bestCount := 0
	for _, h := range domain.KnownHazards {
		if counts[h] > bestCount {
			best = h
			bestCount = counts[h]
		}
	}
	return best
}

// PartitionCell returns the coordinates of the coarse serialization cell
// containing p.
func PartitionCell(p domain.GeoPoint) (row, col int) {
	return int(math.Floor(p.Lat / partitionCellDeg)), int(math.Floor(p.Lon / partitionCellDeg))
}

// CellKey formats grid coordinates as a partition key.
func CellKey(row, col int) string {
	return fmt.Sprintf("p%d:%d", row, col)
}

// PartitionKey maps a point to its coarse serialization cell. Clustering
// passes for the same key must not run concurrently.
func PartitionKey(p domain.GeoPoint) string {
	row, col := PartitionCell(p)
	return CellKey(row, col)
}

// grid is a spatial hash over signal indices. Cells are epsilon-sized in
// latitude degrees; longitude lookups widen with latitude so candidates are
// never missed near the poles.
type grid struct {
	cellDeg float64
	cells   map[[2]int][]int
}

func buildGrid(signals []domain.Signal, epsilonMeters float64) *grid {
	g := &grid{
		cellDeg: epsilonMeters / metersPerDegree,
		cells:   make(map[[2]int][]int, len(signals)),
	}
	for i, s := range signals {
		key := g.cellOf(s.Location)
		g.cells[key] = append(g.cells[key], i)
	}
	return g
}

func (g *grid) cellOf(p domain.GeoPoint) [2]int {
	return [2]int{
		int(math.Floor(p.Lat / g.cellDeg)),
		int(math.Floor(p.Lon / g.cellDeg)),
	}
}

// neighbors returns indices within epsilon of signals[i], in ascending input
// order so BFS expansion stays deterministic.
func (g *grid) neighbors(signals []domain.Signal, i int, epsilonMeters float64) []int {
	p := signals[i].Location

	// Longitude degrees shrink with latitude; widen the scanned column range
	// accordingly. cos is clamped to keep the range finite near the poles.
	cosLat := math.Cos(p.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonSpanCells := int(math.Ceil(1 / cosLat))

	center := g.cellOf(p)
	var out []int
	for dr := -1; dr <= 1; dr++ {
		for dc := -lonSpanCells; dc <= lonSpanCells; dc++ {
			for _, j := range g.cells[[2]int{center[0] + dr, center[1] + dc}] {
				if j == i {
					continue
				}
				if geo.DistanceMeters(p, signals[j].Location) <= epsilonMeters {
					out = append(out, j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}
