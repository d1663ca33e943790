package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/agent"
	"github.com/leapstack-labs/leapboard/internal/llm"
)

// NewAgentCommand creates the agent command.
func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Interactive natural-language dashboard session",
		Long: `Start an interactive session. Each line is sent to the model, JSON
commands are extracted from its reply, and every command is applied to the
dashboard in order.

The API key is read from the environment variable named by agent.api_key_env
(default OPENAI_API_KEY). Type "tabs" to list tabs without a model round
trip, "exit" or "quit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			apiKey := os.Getenv(cmdCtx.Cfg.Agent.APIKeyEnv)
			if apiKey == "" {
				return fmt.Errorf("API key missing: set %s", cmdCtx.Cfg.Agent.APIKeyEnv)
			}

			ds, err := cmdCtx.OpenDataset(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			client := llm.NewHTTPClient(cmdCtx.Cfg.Agent.Model, apiKey,
				llm.WithBaseURL(cmdCtx.Cfg.Agent.BaseURL))
			session := agent.NewSession(client, cmdCtx.NewController(ds), ds.Columns(), cmdCtx.Logger)

			return runAgentREPL(cmd, cmdCtx, session)
		},
	}

	return cmd
}

func runAgentREPL(cmd *cobra.Command, cmdCtx *CommandContext, session *agent.Session) error {
	historyFile := filepath.Join(cmdCtx.Cfg.ProjectRoot, ".leapboard_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "leapboard> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Leapboard agent (model: %s, dataset: %s)\n",
		cmdCtx.Cfg.Agent.Model, cmdCtx.Cfg.Dataset.Path)
	_, _ = fmt.Fprintln(out, `Describe a dashboard change, or "tabs" to list tabs, "exit" to quit.`)
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		case "tabs":
			// Local shortcut, no model round trip
			doc, err := cmdCtx.Store.Load()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				continue
			}
			renderTabsTable(out, doc)
			continue
		}

		results, raw, err := session.Turn(cmd.Context(), line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if len(results) == 0 {
			_, _ = fmt.Fprintln(out, strings.TrimSpace(raw))
			continue
		}
		for _, res := range results {
			renderResult(out, res)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}
