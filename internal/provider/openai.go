package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAI talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Retries int
	Debug   DebugFunc
}

func (o *OpenAI) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o *OpenAI) Generate(ctx context.Context, req Request) Result {
	msgs := make([]map[string]any, len(req.Messages))
	for i, m := range req.Messages {
		role := m.Role
		if role == RoleModel {
			role = "assistant"
		}
		msgs[i] = map[string]any{"role": role, "content": openAIContent(m)}
	}

	body := map[string]any{
		"model":    req.Model,
		"messages": msgs,
	}
	g := req.Generation
	if g.Temperature != nil {
		body["temperature"] = *g.Temperature
	}
	if g.TopP != nil {
		body["top_p"] = *g.TopP
	}
	if g.MaxOutputTokens != nil {
		body["max_tokens"] = *g.MaxOutputTokens
	}
	if g.CandidateCount != nil {
		body["n"] = *g.CandidateCount
	}
	if len(g.StopSequences) > 0 {
		body["stop"] = g.StopSequences
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Kind: Invalid, Err: fmt.Errorf("encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Result{Kind: Invalid, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := doWithRetry(ctx, o.client(), httpReq, payload, o.Retries, o.Debug)
	if err != nil {
		return Failure(0, err)
	}
	defer resp.Body.Close()

	b, err := readBody(resp)
	if err != nil {
		return Failure(0, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		if o.Debug != nil {
			o.Debug("API ERROR BODY: %s", string(b))
		}
		return Failure(resp.StatusCode, apiError(b))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return Result{Kind: Unknown, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return Refusal(Feedback{BlockReason: "no choices returned"})
	}
	choice := out.Choices[0]
	fb := Feedback{FinishReason: choice.FinishReason, BlockReason: choice.Message.Refusal}
	if choice.FinishReason == "content_filter" || choice.Message.Content == "" {
		return Refusal(fb)
	}
	res := OK(choice.Message.Content)
	res.Feedback = fb
	return res
}

// openAIContent uses a plain string for text-only messages and the
// multi-part form once an image is attached.
func openAIContent(m Message) any {
	hasImage := false
	for _, p := range m.Parts {
		if p.Image != nil {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return m.Text()
	}
	parts := make([]map[string]any, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Image != nil {
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": "data:" + p.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Image.Data),
				},
			})
			continue
		}
		parts = append(parts, map[string]any{"type": "text", "text": p.Text})
	}
	return parts
}
