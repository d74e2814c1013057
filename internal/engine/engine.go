package engine

import (
	"context"

	"github.com/gemterm/gemterm/internal/provider"
)

// Engine owns one conversation with the remote model. It is not safe for
// concurrent use; the chat loop keeps at most one request in flight.
type Engine struct {
	Provider   provider.Provider
	Model      string
	Safety     provider.SafetySettings
	Generation provider.GenerationConfig
	Messages   []provider.Message
}

func New(p provider.Provider, model string, safety provider.SafetySettings, gen provider.GenerationConfig) *Engine {
	return &Engine{
		Provider:   p,
		Model:      model,
		Safety:     safety,
		Generation: gen,
	}
}

func (e *Engine) request(msgs []provider.Message) provider.Request {
	return provider.Request{
		Model:      e.Model,
		Messages:   msgs,
		Safety:     e.Safety,
		Generation: e.Generation,
	}
}

// Send adds userMsg to the conversation and asks for the next reply. The
// turn is kept in history only when the reply is usable.
func (e *Engine) Send(ctx context.Context, userMsg string) provider.Result {
	msgs := append(e.history(), provider.TextMessage(provider.RoleUser, userMsg))
	res := e.Provider.Generate(ctx, e.request(msgs))
	if res.Kind == provider.Ok {
		e.Messages = append(msgs, provider.TextMessage(provider.RoleModel, res.Text))
	}
	return res
}

// SendImage asks a one-shot question about img. It does not touch history.
func (e *Engine) SendImage(ctx context.Context, prompt string, img *provider.Image) provider.Result {
	msg := provider.Message{Role: provider.RoleUser, Parts: []provider.Part{
		{Text: prompt},
		{Image: img},
	}}
	return e.Provider.Generate(ctx, e.request([]provider.Message{msg}))
}

// history returns a copy so a failed turn never aliases e.Messages.
func (e *Engine) history() []provider.Message {
	out := make([]provider.Message, len(e.Messages), len(e.Messages)+2)
	copy(out, e.Messages)
	return out
}

func (e *Engine) Clear() {
	e.Messages = nil
}

func (e *Engine) SwitchModel(model string) {
	e.Model = model
}
