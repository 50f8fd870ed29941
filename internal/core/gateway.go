package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sage.app/companion/internal/store"
)

const (
	chatWebhookPath  = "/webhook/sage-chat"
	chartWebhookPath = "/webhook/chart/generate"
)

// WorkflowGateway invokes the external workflow engine's webhooks. One
// synchronous JSON call per request, no retries: the workflow has side
// effects (notifications) and exposes no idempotency keys, so a blind
// replay could double them.
type WorkflowGateway struct {
	baseURL string
	client  *http.Client
}

func NewWorkflowGateway(baseURL string, timeout time.Duration) *WorkflowGateway {
	return &WorkflowGateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type ChatWebhookRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	ContextPayload
}

// ChatResult keeps the workflow's response verbatim alongside the two
// fields this service reads from it. A response without ai_response is not
// a gateway error; the empty reply surfaces downstream.
type ChatResult struct {
	Raw        json.RawMessage
	AIResponse string
	Metadata   json.RawMessage
}

func (g *WorkflowGateway) Chat(ctx context.Context, req ChatWebhookRequest) (*ChatResult, error) {
	raw, err := g.post(ctx, chatWebhookPath, req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		AIResponse string          `json:"ai_response"`
		Metadata   json.RawMessage `json:"metadata"`
	}
	// Shape is owned by the workflow; missing fields stay zero-valued.
	_ = json.Unmarshal(raw, &parsed)

	return &ChatResult{Raw: raw, AIResponse: parsed.AIResponse, Metadata: parsed.Metadata}, nil
}

type ChartWebhookRequest struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	Birthtime string `json:"birthtime"`
	Location  string `json:"location"`
}

func (g *WorkflowGateway) GenerateChart(ctx context.Context, req ChartWebhookRequest) (store.ProfileFields, error) {
	var fields store.ProfileFields
	raw, err := g.post(ctx, chartWebhookPath, req)
	if err != nil {
		return fields, err
	}
	// Fields the workflow omits stay empty and are stored as such.
	_ = json.Unmarshal(raw, &fields)
	return fields, nil
}

func (g *WorkflowGateway) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Reason: "failed to read response body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(respBody))}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Reason: "response is not valid JSON: " + err.Error()}
	}
	return raw, nil
}
