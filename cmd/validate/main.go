// Command validate checks a seed fixture for integrity before it is loaded
// into a development environment or committed as test data. It verifies
// schema validity, deterministic ID generation, and that the keyword
// heuristic recognizes the hazard vocabulary the fixture was generated from.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/mock/signals.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atlas-alert/hazard-engine/internal/classify"
	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixture := flag.String("fixture", "", "path to the seed fixture JSON")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath string) int {
	// Fixed clock matching cmd/seed so derived IDs are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Seed Fixture Validation ===")
	fmt.Println()

	signals, err := loadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(signals),
		validateIDDeterminism(signals),
		validateClassification(signals),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Signals: %d\n", len(signals))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadFixture(path string) ([]domain.RawSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var signals []domain.RawSignal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("fixture is empty")
	}
	return signals, nil
}

// validateSchema runs every record through the same validation the ingest
// path applies, plus fixture-specific checks.
func validateSchema(signals []domain.RawSignal) *phase {
	p := &phase{name: "Phase 1: Schema (ingest validation)"}

	for i, s := range signals {
		if err := domain.ValidateRawSignal(s); err != nil {
			p.errorf("signal %d: %v", i, err)
			continue
		}
		if s.OccurredAt.IsZero() {
			p.errorf("signal %d: occurred_at is zero", i)
		}
		if s.OccurredAt.After(domain.Now()) {
			p.errorf("signal %d: occurred_at %s is in the future", i, s.OccurredAt.Format(time.RFC3339))
		}
		if s.ReporterID == "" {
			p.errorf("signal %d: reporter_id is empty", i)
		}
	}
	return p
}

// validateIDDeterminism checks that signal IDs derive stably from identity
// fields and that the fixture contains no duplicate identities.
func validateIDDeterminism(signals []domain.RawSignal) *phase {
	p := &phase{name: "Phase 2: ID Determinism"}

	seen := map[string]int{}
	for i, s := range signals {
		first := domain.GenerateSignalID(s.Source, s.ReporterID, s.Lat, s.Lon, s.OccurredAt)
		second := domain.GenerateSignalID(s.Source, s.ReporterID, s.Lat, s.Lon, s.OccurredAt)
		if first != second {
			p.errorf("signal %d: ID generation is not deterministic: %q vs %q", i, first, second)
			continue
		}
		if prev, dup := seen[first]; dup {
			p.errorf("signal %d: duplicate identity with signal %d (ID %s)", i, prev, first)
			continue
		}
		seen[first] = i
	}
	return p
}

// validateClassification confirms the keyword heuristic recognizes the
// fixture's hazard vocabulary. Hinted reports use templated text, so a large
// majority must classify to a known hazard with a matching hint.
func validateClassification(signals []domain.RawSignal) *phase {
	p := &phase{name: "Phase 3: Heuristic Classification"}

	classifier := classify.TextHeuristic{}
	ctx := context.Background()

	var hinted, matched int
	for i, s := range signals {
		analysis, err := classifier.ScoreText(ctx, s.Text)
		if err != nil {
			p.errorf("signal %d: classify: %v", i, err)
			continue
		}
		if s.HazardHint == "" {
			continue
		}
		hinted++
		if analysis.HazardProbs[s.HazardHint] > 0 {
			matched++
		}
	}

	if hinted > 0 {
		rate := float64(matched) / float64(hinted)
		if rate < 0.5 {
			p.errorf("only %d/%d hinted signals (%.0f%%) classify toward their hint", matched, hinted, rate*100)
		}
		fmt.Printf("  hint agreement: %d/%d (%.0f%%)\n", matched, hinted, rate*100)
	}
	return p
}
