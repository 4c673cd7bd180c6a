package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"scout/textnorm"
	"scout/types"
)

const (
	// llmMaxChars bounds the excerpt sent per document, roughly 3000 tokens.
	llmMaxChars = 12000

	llmTemperature = 0.1
	llmMaxTokens   = 2000
)

const llmPreamble = "You are an expert at extracting structured information " +
	"from documents. Extract entities accurately and comprehensively."

const llmPromptHeader = `Extract the following entities from the text:

1. People: Names of individuals
2. Organizations: Companies, institutions, government bodies
3. Locations: Countries, cities, regions
4. People with context: For each person, identify their role/title and affiliated organization

Return the results as JSON in this format:
{
    "people": [
        {"name": "John Doe", "context": "surrounding text snippet"}
    ],
    "organizations": [
        {"name": "Ministry of Health", "context": "surrounding text"}
    ],
    "locations": [
        {"name": "Kenya", "type": "country", "context": "surrounding text"}
    ],
    "enriched_people": [
        {
            "name": "Jane Smith",
            "role": "Director",
            "organization": "WHO",
            "country": "Kenya",
            "context": "surrounding text"
        }
    ]
}

Only include entities you find with reasonable confidence. Use null for missing role/organization/country fields.

Text:
`

// LLMTier extracts entities with a Cohere chat model. It is the most
// accurate tier and runs first whenever an API key is configured.
type LLMTier struct {
	client *cohereclient.Client
	model  string
}

// NewLLMTier returns nil when no API key is configured. An empty model
// selects command-r.
func NewLLMTier(apiKey, model string) *LLMTier {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "command-r"
	}
	return &LLMTier{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

func (t *LLMTier) Name() string { return string(types.TierLLM) }

// llmPayload mirrors the JSON shape the prompt requests.
type llmPayload struct {
	People []struct {
		Name    string `json:"name"`
		Context string `json:"context"`
	} `json:"people"`
	Organizations []struct {
		Name    string `json:"name"`
		Context string `json:"context"`
	} `json:"organizations"`
	Locations []struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Context string `json:"context"`
	} `json:"locations"`
	EnrichedPeople []struct {
		Name         string `json:"name"`
		Role         string `json:"role"`
		Organization string `json:"organization"`
		Country      string `json:"country"`
		Context      string `json:"context"`
	} `json:"enriched_people"`
}

// Extract sends a truncated excerpt and parses the structured reply.
// Failures are classified so the coordinator can fall back.
func (t *LLMTier) Extract(ctx context.Context, text string) ([]types.Entity, error) {
	excerpt := textnorm.Truncate(text, llmMaxChars)
	if len(text) > len(excerpt) {
		excerpt += "..."
	}

	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	resp, err := t.client.Chat(ctx, &cohere.ChatRequest{
		Message:     llmPromptHeader + excerpt,
		Model:       cohere.String(t.model),
		Preamble:    cohere.String(llmPreamble),
		Temperature: cohere.Float64(llmTemperature),
		MaxTokens:   cohere.Int(llmMaxTokens),
	})
	if err != nil {
		return nil, t.classify(err)
	}

	payload, err := parseLLMReply(resp.Text)
	if err != nil {
		return nil, &TierError{Tier: t.Name(), Reason: ReasonMalformed, Err: err}
	}
	return payloadEntities(payload), nil
}

// classify maps SDK error types onto tier failure reasons.
func (t *LLMTier) classify(err error) *TierError {
	var unauthorized *cohere.UnauthorizedError
	var forbidden *cohere.ForbiddenError
	var tooMany *cohere.TooManyRequestsError
	switch {
	case errors.As(err, &unauthorized), errors.As(err, &forbidden):
		return &TierError{Tier: t.Name(), Reason: ReasonAuth, Err: err}
	case errors.As(err, &tooMany):
		return &TierError{Tier: t.Name(), Reason: ReasonQuota, Err: err}
	default:
		return &TierError{Tier: t.Name(), Reason: ReasonNetwork, Err: err}
	}
}

var fenceRe = regexp.MustCompile("^```(?:json)?\\s*")

// parseLLMReply strips markdown fencing and decodes the JSON body.
func parseLLMReply(reply string) (*llmPayload, error) {
	content := strings.TrimSpace(reply)
	if strings.HasPrefix(content, "```") {
		content = fenceRe.ReplaceAllString(content, "")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	return &payload, nil
}

// payloadEntities converts the reply into entities. Enriched people replace
// their plain counterparts so each person appears once, with attribution.
func payloadEntities(p *llmPayload) []types.Entity {
	var out []types.Entity

	enriched := make(map[string]struct{}, len(p.EnrichedPeople))
	for _, ep := range p.EnrichedPeople {
		if ep.Name == "" {
			continue
		}
		enriched[strings.ToLower(ep.Name)] = struct{}{}
		out = append(out, types.Entity{
			Name:         ep.Name,
			Kind:         types.KindPerson,
			Confidence:   types.ConfidenceHigh,
			Context:      ep.Context,
			Role:         ep.Role,
			Organization: ep.Organization,
			Country:      ep.Country,
		})
	}
	for _, per := range p.People {
		if per.Name == "" {
			continue
		}
		if _, dup := enriched[strings.ToLower(per.Name)]; dup {
			continue
		}
		out = append(out, types.Entity{
			Name:       per.Name,
			Kind:       types.KindPerson,
			Confidence: types.ConfidenceHigh,
			Context:    per.Context,
		})
	}
	for _, org := range p.Organizations {
		if org.Name == "" {
			continue
		}
		out = append(out, types.Entity{
			Name:       org.Name,
			Kind:       types.KindOrganization,
			Confidence: types.ConfidenceHigh,
			Context:    org.Context,
		})
	}
	for _, loc := range p.Locations {
		if loc.Name == "" {
			continue
		}
		out = append(out, types.Entity{
			Name:       loc.Name,
			Kind:       types.KindLocation,
			Confidence: types.ConfidenceHigh,
			Context:    loc.Context,
		})
	}
	return out
}
