// Package agent wires the text-generation client to the command controller:
// one user turn in, a batch of applied command results out.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapboard/internal/controller"
	"github.com/leapstack-labs/leapboard/internal/extract"
	"github.com/leapstack-labs/leapboard/internal/llm"
)

// Session holds the per-session state of the interactive agent: the model
// client, the controller, and the schema snapshot advertised to the model.
type Session struct {
	client  llm.Client
	ctrl    *controller.Controller
	columns []string
	logger  *slog.Logger
}

// NewSession creates a session. columns is the same schema snapshot the
// controller validates against; it is embedded in the system prompt so the
// model prefers real columns.
func NewSession(client llm.Client, ctrl *controller.Controller, columns []string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{client: client, ctrl: ctrl, columns: columns, logger: logger}
}

// Turn sends one user message through the model and applies every extracted
// command strictly in order. Commands fail independently: a failure result
// never aborts the rest of the batch, since a single model turn often emits
// several unrelated commands. The raw model text is returned alongside the
// results so callers can show it when no JSON was found.
func (s *Session) Turn(ctx context.Context, userText string) ([]controller.Result, string, error) {
	log := s.logger.With("turn", uuid.NewString())

	raw, err := s.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: s.systemPrompt()},
		{Role: "user", Content: userText},
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate: %w", err)
	}

	cmds := extract.Objects(raw)
	log.Debug("model responded", "chars", len(raw), "commands", len(cmds))

	results := make([]controller.Result, 0, len(cmds))
	for _, cmd := range cmds {
		res := s.ctrl.Apply(ctx, cmd)
		if !res.OK {
			log.Warn("command failed", "error", res.Error)
		}
		results = append(results, res)
	}
	return results, raw, nil
}
