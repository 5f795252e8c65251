// Package assistant is the HTTP client for the OpenRouter inference
// endpoint, used for the pre-consultation symptom chat and specialty
// triage. The dependency sits behind a circuit breaker: when inference is
// down the assistant answers with safe fallbacks instead of erroring.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
)

// Message is one turn in the assistant conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AvailableSpecialties is the closed set the triage prompt may recommend
// from; anything else the model invents is filtered out.
var AvailableSpecialties = []string{
	"Internal Medicine",
	"General Practitioner",
	"Family Medicine",
	"Emergency Medicine",
	"Pediatric Care",
	"Cardiology",
	"Dermatology",
	"Neurology",
	"Gastroenterology",
	"Orthopedics",
	"Psychiatry",
	"Ophthalmology",
	"Pulmonology",
	"Endocrinology",
	"Rheumatology",
}

// fallbackSpecialties is returned whenever triage cannot produce a usable
// answer. Patients are never left without a referral.
var fallbackSpecialties = []string{"General Practitioner", "Family Medicine"}

const systemPrompt = `You are MediBot AI, a helpful medical assistant chatbot. Your role is to:
- Listen to users' symptoms with empathy and care
- Ask relevant follow-up questions to understand their condition better
- Provide general health information and guidance
- Always remind users that you're not a replacement for professional medical advice
- Recommend consulting healthcare professionals for serious concerns
- Be supportive, clear, and professional in your responses

Important: You should never diagnose conditions or prescribe treatments. Always encourage users to seek professional medical help when appropriate.`

// SystemMessage returns the system turn every conversation starts with.
func SystemMessage() Message {
	return Message{Role: RoleSystem, Content: systemPrompt}
}

// Client calls the OpenRouter chat completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
}

// NewClient builds a Client. baseURL is the API root without the
// chat/completions suffix.
func NewClient(baseURL, apiKey, model string) *Client {
	settings := gobreaker.Settings{
		Name:        "openrouter",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Warn(context.Background(), "Assistant circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues("openrouter").Set(float64(to))
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

// Healthy reports whether the breaker currently admits requests.
func (c *Client) Healthy() bool {
	return c.cb.State() != gobreaker.StateOpen
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// Chat sends the conversation history and returns the assistant reply.
// The system message is prepended when the caller did not include one.
func (c *Client) Chat(ctx context.Context, history []Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("assistant API key not configured")
	}

	messages := history
	if len(history) == 0 || history[0].Role != RoleSystem {
		messages = append([]Message{SystemMessage()}, history...)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.complete(ctx, messages)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerFailures.WithLabelValues("openrouter").Inc()
		}
		metrics.AssistantRequests.WithLabelValues("chat", "error").Inc()
		return "", err
	}

	metrics.AssistantRequests.WithLabelValues("chat", "ok").Inc()
	return result.(string), nil
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "MediBot-AI")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("inference endpoint returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// RecommendSpecialties asks the model to pick up to three specialties for
// the conversation so far. It never fails: any error, open breaker, or
// unusable model output falls back to general practice referrals.
func (c *Client) RecommendSpecialties(ctx context.Context, history []Message) []string {
	var sb strings.Builder
	sb.WriteString("Based on our conversation about the patient's symptoms, which medical specialties would be most appropriate to consult?\n\nAvailable specialties:\n")
	for i, s := range AvailableSpecialties {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	sb.WriteString("\nPlease respond with ONLY a JSON array of the top 1-3 most relevant specialties from the list above. ")
	sb.WriteString(`Format: ["Specialty1", "Specialty2"]` + "\n\n")
	sb.WriteString("If the symptoms are general or unclear, recommend \"General Practitioner\", \"Family Medicine\", or \"Internal Medicine\".\n")
	sb.WriteString("If it's an emergency, include \"Emergency Medicine\".\n\nResponse (JSON array only):")

	prompt := Message{Role: RoleUser, Content: sb.String()}

	reply, err := c.Chat(ctx, append(append([]Message{}, history...), prompt))
	if err != nil {
		logging.Warn(ctx, "Specialty triage failed, using fallback", zap.Error(err))
		metrics.AssistantRequests.WithLabelValues("specialties", "fallback").Inc()
		return fallbackSpecialties
	}

	specialties := parseSpecialties(reply)
	if len(specialties) == 0 {
		metrics.AssistantRequests.WithLabelValues("specialties", "fallback").Inc()
		return fallbackSpecialties
	}

	metrics.AssistantRequests.WithLabelValues("specialties", "ok").Inc()
	return specialties
}

// parseSpecialties extracts a validated specialty list from model output.
// Models wrap JSON in markdown fences often enough that stripping them is
// part of the contract.
func parseSpecialties(reply string) []string {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw []string
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil
	}

	var valid []string
	for _, s := range raw {
		for _, known := range AvailableSpecialties {
			if s == known {
				valid = append(valid, s)
				break
			}
		}
	}
	return valid
}
