package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Gemini talks to the Generative Language REST API (generateContent).
type Gemini struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Retries int
	Debug   DebugFunc
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	SafetySettings   []SafetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content       geminiContent  `json:"content"`
		FinishReason  string         `json:"finishReason"`
		SafetyRatings []SafetyRating `json:"safetyRatings"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason   string         `json:"blockReason"`
		SafetyRatings []SafetyRating `json:"safetyRatings"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

func (g *Gemini) Generate(ctx context.Context, req Request) Result {
	body := geminiRequest{SafetySettings: req.Safety}
	if !isZeroGeneration(req.Generation) {
		gen := req.Generation
		body.GenerationConfig = &gen
	}
	for _, m := range req.Messages {
		c := geminiContent{Role: m.Role}
		for _, p := range m.Parts {
			if p.Image != nil {
				c.Parts = append(c.Parts, geminiPart{InlineData: &geminiInlineData{
					MIMEType: p.Image.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.Image.Data),
				}})
				continue
			}
			c.Parts = append(c.Parts, geminiPart{Text: p.Text})
		}
		body.Contents = append(body.Contents, c)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Kind: Invalid, Err: fmt.Errorf("encode request: %w", err)}
	}
	model := strings.TrimPrefix(req.Model, "models/")
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.BaseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{Kind: Invalid, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.APIKey)

	resp, err := doWithRetry(ctx, g.client(), httpReq, payload, g.Retries, g.Debug)
	if err != nil {
		return Failure(0, err)
	}
	defer resp.Body.Close()

	b, err := readBody(resp)
	if err != nil {
		return Failure(0, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		if g.Debug != nil {
			g.Debug("API ERROR BODY: %s", string(b))
		}
		return Failure(resp.StatusCode, apiError(b))
	}

	var out geminiResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return Result{Kind: Unknown, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	fb := Feedback{
		BlockReason:   out.PromptFeedback.BlockReason,
		SafetyRatings: out.PromptFeedback.SafetyRatings,
	}
	if len(out.Candidates) == 0 {
		return Refusal(fb)
	}
	cand := out.Candidates[0]
	fb.FinishReason = cand.FinishReason
	if len(cand.SafetyRatings) > 0 {
		fb.SafetyRatings = cand.SafetyRatings
	}
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return Refusal(fb)
	}
	res := OK(text.String())
	res.Feedback = fb
	return res
}

func isZeroGeneration(g GenerationConfig) bool {
	return g.Temperature == nil && g.TopP == nil && g.TopK == nil &&
		g.MaxOutputTokens == nil && g.CandidateCount == nil &&
		len(g.StopSequences) == 0 && g.ResponseMIMEType == ""
}

const maxErrorWidth = 300

// apiError extracts the server's message from a Google-style error body,
// falling back to the raw body.
func apiError(b []byte) error {
	var body apiErrorBody
	if err := json.Unmarshal(b, &body); err == nil && body.Error.Message != "" {
		if body.Error.Status != "" {
			return fmt.Errorf("%s: %s", body.Error.Status, body.Error.Message)
		}
		return errors.New(body.Error.Message)
	}
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = "empty error body"
	}
	return errors.New(ansi.Truncate(msg, maxErrorWidth, "..."))
}
