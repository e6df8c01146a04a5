// Package openai implements domain.TextClassifier against an OpenAI-style
// chat completion endpoint. It is the trained-model side of the classifier
// pair; deployments without an API key run on the keyword heuristic alone.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	api "github.com/sashabaranov/go-openai"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

const systemPrompt = `You classify citizen reports about coastal and marine hazards.
Respond with only a JSON object:
{"hazard_probs":{"tsunami":0.0,"storm_surge":0.0,"high_waves":0.0,"flood":0.0,"cyclone":0.0,"oil_spill":0.0},"urgency":0.0,"keywords":[],"confidence":0.0}
All numbers are probabilities in [0,1]. Omit hazards with probability 0.
"confidence" is how strongly the text evidences any real hazard, not your certainty about the JSON.`

// Classifier scores text with a chat completion model.
type Classifier struct {
	client *api.Client
	model  string
	logger *slog.Logger
}

var _ domain.TextClassifier = (*Classifier)(nil)

// NewClassifier builds a classifier for the given API key and model. baseURL
// overrides the API endpoint when non-empty, which also covers self-hosted
// OpenAI-compatible servers.
func NewClassifier(apiKey, model, baseURL string, logger *slog.Logger) *Classifier {
	cfg := api.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = api.GPT4oMini
	}
	return &Classifier{
		client: api.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// ScoreText classifies one report text. Model output is clamped and unknown
// hazard labels are dropped, so a confused model can degrade scores but
// never corrupt the taxonomy.
func (c *Classifier) ScoreText(ctx context.Context, text string) (domain.TextAnalysis, error) {
	resp, err := c.client.CreateChatCompletion(ctx, api.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &api.ChatCompletionResponseFormat{
			Type: api.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []api.ChatCompletionMessage{
			{Role: api.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: api.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return domain.TextAnalysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.TextAnalysis{}, fmt.Errorf("chat completion: empty response")
	}

	return parseAnalysis(resp.Choices[0].Message.Content, c.logger)
}

type modelOutput struct {
	HazardProbs map[string]float64 `json:"hazard_probs"`
	Urgency     float64            `json:"urgency"`
	Keywords    []string           `json:"keywords"`
	Confidence  float64            `json:"confidence"`
}

func parseAnalysis(content string, logger *slog.Logger) (domain.TextAnalysis, error) {
	content = strings.TrimSpace(content)
	// Some models still wrap JSON in a code fence despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out modelOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return domain.TextAnalysis{}, fmt.Errorf("parse model output: %w", err)
	}

	probs := make(map[domain.HazardType]float64, len(out.HazardProbs))
	for label, p := range out.HazardProbs {
		h := domain.HazardType(label)
		known := false
		for _, k := range domain.KnownHazards {
			if h == k {
				known = true
				break
			}
		}
		if !known {
			if logger != nil {
				logger.Debug("dropping unknown hazard label from model output", "label", label)
			}
			continue
		}
		if p > 0 {
			probs[h] = domain.Clamp01(p)
		}
	}

	return domain.TextAnalysis{
		HazardProbs: probs,
		Urgency:     domain.Clamp01(out.Urgency),
		Keywords:    out.Keywords,
		Confidence:  domain.Clamp01(out.Confidence),
	}, nil
}
