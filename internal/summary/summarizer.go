package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/model"
)

// tokens granted per batched entry in the completion budget
const tokensPerEntry = 64

// Summarizer produces short AI summaries for freshly ingested entries. It is
// best-effort enrichment: every failure path returns an empty mapping and the
// ingest cycle carries on without summaries.
type Summarizer struct {
	client      *resty.Client
	apiURL      string
	model       string
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewSummarizer(apiURL, aiModel string, temperature float64, timeout time.Duration) *Summarizer {
	return &Summarizer{
		client:      resty.New().SetTimeout(timeout),
		apiURL:      apiURL,
		model:       aiModel,
		temperature: temperature,
	}
}

// Summarize sends one combined request for the whole batch and returns a
// mapping from guid to summary. Disabled feature, missing credential,
// transport failure, non-2xx status, empty body and unparseable responses all
// yield an empty map, never an error.
func (s *Summarizer) Summarize(ctx context.Context, enabled bool, apiKey string, entries []model.Entry) map[string]string {
	log := logger.Get()

	if !enabled || apiKey == "" || len(entries) == 0 {
		return map[string]string{}
	}

	payload, err := batchPayload(entries)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build summarization payload")
		return map[string]string{}
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildPrompt(payload)},
		},
		MaxTokens:   tokensPerEntry * len(entries),
		Temperature: s.temperature,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		Post(s.apiURL)

	if err != nil {
		log.Warn().Err(err).Msg("Summarization request failed")
		return map[string]string{}
	}

	if !httpResp.IsSuccess() {
		log.Warn().Int("status", httpResp.StatusCode()).Msg("Summarization API returned error status")
		return map[string]string{}
	}

	if resp.Error != nil {
		log.Warn().Str("api_error", resp.Error.Message).Msg("Summarization API error")
		return map[string]string{}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn().Msg("Summarization response contained no content")
		return map[string]string{}
	}

	summaries := ExtractSummaries(resp.Choices[0].Message.Content)
	log.Info().
		Int("batch_size", len(entries)).
		Int("summaries", len(summaries)).
		Msg("Summarization batch completed")
	return summaries
}

// batchPayload marshals the {guid, body} pairs embedded in the prompt.
func batchPayload(entries []model.Entry) (string, error) {
	type item struct {
		Guid string `json:"guid"`
		Body string `json:"body"`
	}

	items := make([]item, 0, len(entries))
	for _, e := range entries {
		items = append(items, item{Guid: e.Guid, Body: e.Body})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal batch payload: %w", err)
	}
	return string(data), nil
}
