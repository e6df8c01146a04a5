// Command seed generates synthetic raw hazard signals for local development
// and test fixtures. It uses the actual classify and domain packages so the
// printed stats match real engine behavior, and a seeded RNG plus fixed clock
// so fixtures are reproducible.
//
// Usage:
//
//	go run ./cmd/seed -reports 100 -social 200 -out data/mock/signals.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atlas-alert/hazard-engine/internal/classify"
	"github.com/atlas-alert/hazard-engine/internal/domain"
)

var baseTime = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

type hotspot struct {
	name string
	lat  float64
	lon  float64
}

var hotspots = []hotspot{
	{"Marine Drive, Mumbai", 18.9430, 72.8235},
	{"Juhu Beach, Mumbai", 19.0988, 72.8267},
	{"Marina Beach, Chennai", 13.0500, 80.2824},
	{"Kovalam, Kerala", 8.4004, 76.9787},
	{"Puri Beach, Odisha", 19.7983, 85.8249},
	{"Visakhapatnam Coast", 17.7144, 83.3246},
	{"Digha, West Bengal", 21.6222, 87.5066},
	{"Port Blair Harbour", 11.6683, 92.7378},
}

var reportTemplates = map[domain.HazardType][]string{
	domain.HazardTsunami: {
		"Massive wave approaching %s! Water receding rapidly from shore, everyone evacuating to higher ground.",
		"Earthquake felt strongly, now seeing unusual wave patterns at %s. Tsunami warning issued.",
		"URGENT: tsunami wave spotted offshore at %s. Get to high ground now!",
	},
	domain.HazardCyclone: {
		"Cyclone approaching %s, winds already past 150 km/h. Seeking shelter immediately.",
		"Cyclone eye passing over %s. Trees down, flooding everywhere, need emergency assistance.",
		"Preparing for cyclone impact at %s. Winds picking up, heavy rain starting.",
	},
	domain.HazardOilSpill: {
		"Large oil slick spotted near %s, appears to be from a vessel accident. Wildlife already affected.",
		"Oil spill confirmed at %s. Strong petroleum smell, dead fish washing ashore.",
	},
	domain.HazardFlood: {
		"Severe flooding at %s. Water levels rising rapidly, roads impassable, residents stranded.",
		"Flash flood warning for %s. Heavy rainfall causing dangerous conditions, evacuations underway.",
		"Coastal flooding at %s due to storm surge. Properties underwater.",
	},
	domain.HazardStormSurge: {
		"Storm surge hitting %s, sea water crossing the road. Danger to low-lying areas.",
		"Abnormal sea level rise at %s, waves breaching the sea wall.",
	},
	domain.HazardHighWaves: {
		"Huge waves at %s, far bigger than usual. Fishermen advised not to venture out.",
		"Swell waves pounding %s, beach access closed.",
	},
}

var socialTemplates = []string{
	"Something terrible happening at %s! waves everywhere #emergency",
	"Massive waves at %s! this is not normal #tsunami #help",
	"BREAKING: oil slick spreading at %s #oilspill #saveouroceans",
	"Cyclone hitting %s hard, winds are insane #stormwatch #emergency",
	"Water everywhere at %s! flooding is getting worse #floodalert",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	reports := flag.Int("reports", 100, "number of citizen reports to generate")
	social := flag.Int("social", 200, "number of social media signals to generate")
	out := flag.String("out", "", "output path for the JSON fixture")
	seed := flag.Int64("seed", 1, "RNG seed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed clock so deterministic signal IDs derived from timestamps are
	// stable across runs.
	domain.SetClock(clockwork.NewFakeClockAt(baseTime))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))

	signals := make([]domain.RawSignal, 0, *reports+*social)
	for i := 0; i < *reports; i++ {
		signals = append(signals, genReport(rng, i))
	}
	for i := 0; i < *social; i++ {
		signals = append(signals, genSocial(rng, i))
	}

	for _, s := range signals {
		if err := domain.ValidateRawSignal(s); err != nil {
			return fmt.Errorf("generated invalid signal: %w", err)
		}
	}

	if err := writeJSON(*out, signals); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d signals: %s", len(signals), *out)

	printStats(signals)
	return nil
}

func genReport(rng *rand.Rand, i int) domain.RawSignal {
	spot := hotspots[rng.Intn(len(hotspots))]
	hazard := domain.KnownHazards[rng.Intn(len(domain.KnownHazards)-1)] // skip "other"

	var text string
	if templates := reportTemplates[hazard]; len(templates) > 0 {
		text = fmt.Sprintf(templates[rng.Intn(len(templates))], spot.name)
	} else {
		text = fmt.Sprintf("Reporting %s incident at %s, situation developing.", hazard, spot.name)
	}

	sig := domain.RawSignal{
		Source:     domain.SourceReport,
		ReporterID: fmt.Sprintf("seed-reporter-%03d", rng.Intn(40)),
		Text:       text,
		Lat:        spot.lat + rng.Float64()*0.02 - 0.01,
		Lon:        spot.lon + rng.Float64()*0.02 - 0.01,
		HazardHint: hazard,
		OccurredAt: baseTime.Add(-time.Duration(rng.Float64() * float64(3 * time.Hour))),
	}
	if rng.Float64() > 0.7 {
		sig.MediaURL = fmt.Sprintf("https://example.com/media/img_%04d.jpg", i)
	}
	return sig
}

func genSocial(rng *rand.Rand, i int) domain.RawSignal {
	spot := hotspots[rng.Intn(len(hotspots))]
	text := fmt.Sprintf(socialTemplates[rng.Intn(len(socialTemplates))], spot.name)

	sig := domain.RawSignal{
		Source:     domain.SourceSocial,
		ReporterID: fmt.Sprintf("seed-social-%04d", rng.Intn(150)),
		Text:       text,
		Lat:        spot.lat + rng.Float64()*0.1 - 0.05,
		Lon:        spot.lon + rng.Float64()*0.1 - 0.05,
		OccurredAt: baseTime.Add(-time.Duration(rng.Float64() * float64(24 * time.Hour))),
	}
	if rng.Float64() > 0.6 {
		sig.MediaURL = fmt.Sprintf("https://example.com/media/vid_%04d.mp4", i)
	}
	return sig
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the keyword heuristic over the fixture and prints counts
// useful for updating test assertions.
func printStats(signals []domain.RawSignal) {
	classifier := classify.TextHeuristic{}
	ctx := context.Background()

	sourceCounts := map[domain.SourceKind]int{}
	hintCounts := map[domain.HazardType]int{}
	classifiedCounts := map[domain.HazardType]int{}
	var withMedia, confident int

	for _, s := range signals {
		sourceCounts[s.Source]++
		if s.HazardHint != "" {
			hintCounts[s.HazardHint]++
		}
		if s.MediaURL != "" {
			withMedia++
		}

		analysis, err := classifier.ScoreText(ctx, s.Text)
		if err != nil {
			continue
		}
		if analysis.Confidence >= 0.4 {
			confident++
		}
		classified := domain.Signal{HazardProbs: analysis.HazardProbs}
		classifiedCounts[classified.DominantHazard()]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (report=%d, social=%d)\n",
		len(signals), sourceCounts[domain.SourceReport], sourceCounts[domain.SourceSocial])
	fmt.Printf("With media: %d\n", withMedia)
	fmt.Printf("Heuristic confidence >= 0.4: %d\n", confident)

	fmt.Print("Hints: ")
	for _, h := range domain.KnownHazards {
		if hintCounts[h] > 0 {
			fmt.Printf("%s=%d ", h, hintCounts[h])
		}
	}
	fmt.Println()

	fmt.Print("Heuristic classification: ")
	for _, h := range domain.KnownHazards {
		if classifiedCounts[h] > 0 {
			fmt.Printf("%s=%d ", h, classifiedCounts[h])
		}
	}
	fmt.Println()
}
