// Package classify provides the fallback signal classifiers used when no
// trained model endpoint is configured or reachable. Scoring is keyword
// driven and intentionally conservative: a heuristic score should never
// outrank a trained model's on the same text.
package classify

import (
	"context"
	"path"
	"strings"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// hazardKeywords maps each hazard to its trigger terms and the per-match
// probability increment.
var hazardKeywords = map[domain.HazardType]struct {
	terms  []string
	weight float64
}{
	domain.HazardTsunami:    {[]string{"tsunami", "tidal wave", "sea receding", "water receding"}, 0.3},
	domain.HazardStormSurge: {[]string{"storm surge", "surge", "sea level rising", "coastal flooding"}, 0.25},
	domain.HazardHighWaves:  {[]string{"high waves", "huge waves", "giant waves", "rough sea", "swell"}, 0.2},
	domain.HazardFlood:      {[]string{"flood", "flooding", "inundation", "waterlogging", "submerged"}, 0.25},
	domain.HazardCyclone:    {[]string{"cyclone", "hurricane", "typhoon", "storm", "gale"}, 0.25},
	domain.HazardOilSpill:   {[]string{"oil spill", "oil slick", "petroleum", "crude oil", "fuel leak"}, 0.2},
}

var urgencyKeywords = []string{"emergency", "urgent", "help", "danger", "critical", "immediate", "evacuate", "trapped"}

const urgencyWeight = 0.3

// TextHeuristic is a keyword-matching TextClassifier.
type TextHeuristic struct{}

var _ domain.TextClassifier = TextHeuristic{}

// ScoreText scans the text for hazard and urgency vocabulary. Confidence is
// 0.7 times the strongest hazard probability plus 0.3 times urgency, so text
// with no hazard terms at all stays near zero regardless of tone.
func (TextHeuristic) ScoreText(_ context.Context, text string) (domain.TextAnalysis, error) {
	lower := strings.ToLower(text)

	probs := make(map[domain.HazardType]float64, len(hazardKeywords))
	var keywords []string
	maxProb := 0.0
	for _, h := range domain.KnownHazards {
		kw, ok := hazardKeywords[h]
		if !ok {
			continue
		}
		matches := 0
		for _, term := range kw.terms {
			if strings.Contains(lower, term) {
				matches++
				keywords = append(keywords, term)
			}
		}
		if matches == 0 {
			continue
		}
		p := domain.Clamp01(float64(matches) * kw.weight)
		probs[h] = p
		if p > maxProb {
			maxProb = p
		}
	}

	urgentMatches := 0
	for _, term := range urgencyKeywords {
		if strings.Contains(lower, term) {
			urgentMatches++
		}
	}
	urgency := domain.Clamp01(float64(urgentMatches) * urgencyWeight)

	return domain.TextAnalysis{
		HazardProbs: probs,
		Urgency:     urgency,
		Keywords:    keywords,
		Confidence:  domain.Clamp01(0.7*maxProb + 0.3*urgency),
	}, nil
}

// Media score constants. Without a vision model the heuristic can only say
// "plausible evidence attached", never confirm it.
const (
	mediaImageScore   = 0.4
	mediaUnknownScore = 0.2
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// ImageHeuristic is a no-model ImageClassifier that scores on media presence
// alone.
type ImageHeuristic struct{}

var _ domain.ImageClassifier = ImageHeuristic{}

// ScoreImage returns a flat plausibility score: a recognizable image URL is
// weak supporting evidence, anything else is weaker still, and no media
// scores zero.
func (ImageHeuristic) ScoreImage(_ context.Context, mediaURL string) (domain.ImageAnalysis, error) {
	if mediaURL == "" {
		return domain.ImageAnalysis{}, nil
	}
	ext := strings.ToLower(path.Ext(stripQuery(mediaURL)))
	if imageExtensions[ext] {
		return domain.ImageAnalysis{
			Labels:     map[string]float64{"unreviewed_media": mediaImageScore},
			Confidence: mediaImageScore,
		}, nil
	}
	return domain.ImageAnalysis{
		Labels:     map[string]float64{"unrecognized_media": mediaUnknownScore},
		Confidence: mediaUnknownScore,
	}, nil
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
