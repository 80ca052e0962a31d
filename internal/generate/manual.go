package generate

import (
	"context"
	"errors"
)

// ErrNoManualResponse is returned when a ManualGenerator has nothing for a chunk.
var ErrNoManualResponse = errors.New("no manual response for chunk")

// ManualGenerator replays text a person wrote (or pasted from elsewhere)
// instead of calling a model. Responses are looked up by chunk index, then
// Default is used.
type ManualGenerator struct {
	Responses map[int]string
	Default   string
}

func (m *ManualGenerator) Model() string { return "manual" }

func (m *ManualGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text, ok := m.Responses[req.ChunkIndex]; ok && text != "" {
		return text, nil
	}
	if m.Default != "" {
		return m.Default, nil
	}
	return "", ErrNoManualResponse
}
