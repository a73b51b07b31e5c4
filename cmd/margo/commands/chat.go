package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/avelardi/margo/pkg/margo/assistant"
	"github.com/avelardi/margo/pkg/margo/channels"
	"github.com/avelardi/margo/pkg/margo/config"
	"github.com/avelardi/margo/pkg/margo/history"
	"github.com/avelardi/margo/pkg/margo/llm"
	"github.com/avelardi/margo/pkg/margo/tracker"
	"github.com/avelardi/margo/pkg/margo/vault"
)

// newChatCmd creates the `margo chat` command: a local REPL against the
// assistant, no chat channels required.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant from the terminal",
		Long: `Starts an interactive session with the assistant. With a message
argument, handles it once and exits.

Examples:
  margo chat
  margo chat "what's on my schedule today?"`,
		RunE: runChat,
	}
}

// console is a Channel that prints replies to stdout. It never receives.
type console struct {
	incoming chan *channels.Message
}

func newConsole() *console {
	return &console{incoming: make(chan *channels.Message)}
}

func (c *console) Name() string                      { return "console" }
func (c *console) Connect(ctx context.Context) error { return nil }
func (c *console) Disconnect() error                 { return nil }
func (c *console) Receive() <-chan *channels.Message { return c.incoming }
func (c *console) IsConnected() bool                 { return true }

func (c *console) Send(_ context.Context, _ string, text string) error {
	fmt.Printf("\nmargo> %s\n\n", text)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd)
	config.ResolveSecrets(cfg, logger)

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no Gemini API key configured; run `margo setup`")
	}

	ctx := cmd.Context()
	client, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	if err != nil {
		return fmt.Errorf("initialize llm: %w", err)
	}

	hist := history.New(cfg.History.File, logger)

	var vlt *vault.Vault
	if cfg.Vault.Path != "" {
		if vlt, err = vault.New(cfg.Vault.Path, logger); err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
	}
	var trk *tracker.Client
	if cfg.Tracker.APIToken != "" {
		trk = tracker.New(cfg.Tracker.APIToken, logger)
	}

	mgr := channels.NewManager(logger)
	if err := mgr.Register(newConsole()); err != nil {
		return err
	}

	reg := assistant.NewRegistry()
	(&assistant.Toolset{Vault: vlt, Tracker: trk, History: hist, Logger: logger}).RegisterAll(reg)
	asst := assistant.New(client, hist, reg, mgr, cfg.Persona, logger)

	handle := func(text string) {
		asst.HandleMessage(ctx, &channels.Message{
			Channel: "console",
			From:    "local",
			ChatID:  "local",
			Content: text,
		})
	}

	if len(args) > 0 {
		handle(strings.Join(args, " "))
		return nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".margo_chat_history"),
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Interactive session. Type 'exit' or Ctrl+D to quit.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("Bye!")
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return nil
		}
		handle(input)
	}
}
