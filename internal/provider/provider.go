package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is either text or an inline image.
type Part struct {
	Text  string `json:"text,omitempty"`
	Image *Image `json:"image,omitempty"`
}

type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates the text parts of m.
func (m Message) Text() string {
	var buf bytes.Buffer
	for _, p := range m.Parts {
		buf.WriteString(p.Text)
	}
	return buf.String()
}

type SafetySetting struct {
	Category  string `json:"category" yaml:"category" toml:"category"`
	Threshold string `json:"threshold" yaml:"threshold" toml:"threshold"`
}

// SafetySettings tolerates both a list of {category, threshold} records and
// a category→threshold mapping.
type SafetySettings []SafetySetting

func (s *SafetySettings) UnmarshalYAML(unmarshal func(any) error) error {
	var list []SafetySetting
	if err := unmarshal(&list); err == nil {
		*s = list
		return nil
	}
	var byCategory map[string]string
	if err := unmarshal(&byCategory); err != nil {
		return fmt.Errorf("safety_settings: want a list or a category map: %w", err)
	}
	*s = fromMap(byCategory)
	return nil
}

func (s *SafetySettings) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case []map[string]any:
		out := make(SafetySettings, 0, len(v))
		for _, m := range v {
			out = append(out, settingFromTable(m))
		}
		*s = out
	case []any:
		out := make(SafetySettings, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("safety_settings[%d]: want a table", i)
			}
			out = append(out, settingFromTable(m))
		}
		*s = out
	case map[string]any:
		byCategory := make(map[string]string, len(v))
		for k, val := range v {
			str, ok := val.(string)
			if !ok {
				return fmt.Errorf("safety_settings.%s: want a string threshold", k)
			}
			byCategory[k] = str
		}
		*s = fromMap(byCategory)
	default:
		return fmt.Errorf("safety_settings: unsupported TOML value %T", v)
	}
	return nil
}

func settingFromTable(m map[string]any) SafetySetting {
	cat, _ := m["category"].(string)
	thr, _ := m["threshold"].(string)
	return SafetySetting{Category: cat, Threshold: thr}
}

func fromMap(m map[string]string) SafetySettings {
	out := make(SafetySettings, 0, len(m))
	for cat, thr := range m {
		out = append(out, SafetySetting{Category: cat, Threshold: thr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// GenerationConfig holds sampling parameters. Nil fields are left to the
// server default.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature" toml:"temperature"`
	TopP             *float64 `json:"topP,omitempty" yaml:"top_p" toml:"top_p"`
	TopK             *int     `json:"topK,omitempty" yaml:"top_k" toml:"top_k"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty" yaml:"max_output_tokens" toml:"max_output_tokens"`
	CandidateCount   *int     `json:"candidateCount,omitempty" yaml:"candidate_count" toml:"candidate_count"`
	StopSequences    []string `json:"stopSequences,omitempty" yaml:"stop_sequences" toml:"stop_sequences"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty" yaml:"response_mime_type" toml:"response_mime_type"`
}

type Request struct {
	Model      string
	Messages   []Message
	Safety     SafetySettings
	Generation GenerationConfig
}

// Provider is a remote conversational model. Generate never returns a Go
// error: every outcome, including transport failures, is a Result.
type Provider interface {
	Generate(ctx context.Context, req Request) Result
}

// DebugFunc is an optional debug logger that providers can use.
type DebugFunc func(format string, args ...any)

const maxResponseSize = 10 * 1024 * 1024

var retryDelay = 2 * time.Second

// doWithRetry sends an HTTP request, retrying up to retries times on 429 or 5xx.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, payload []byte, retries int, dbg DebugFunc) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if dbg != nil {
			dbg("HTTP %s %s (%d bytes, attempt %d)", req.Method, req.URL.Redacted(), len(payload), attempt+1)
		}
		req.Body = io.NopCloser(bytes.NewReader(payload))
		resp, err := client.Do(req)
		if err != nil {
			if dbg != nil {
				dbg("HTTP ERROR: %v", err)
			}
			return nil, err
		}
		if dbg != nil {
			dbg("HTTP RESPONSE: %s", resp.Status)
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= retries {
			return resp, nil
		}
		resp.Body.Close()
		if dbg != nil {
			dbg("HTTP RETRY: waiting %s then retrying...", retryDelay)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}
