package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avelardi/margo/pkg/margo/config"
)

// newSetupCmd creates the `margo setup` command.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Walks through creating config.yaml. Secrets go to the OS keyring when
available, falling back to the config file with owner-only permissions.

Examples:
  margo setup`,
		RunE: runSetup,
	}
}

// setupAnswers collects the wizard's responses before they are applied.
type setupAnswers struct {
	VaultPath     string
	GeminiKey     string
	Model         string
	TelegramToken string
	DiscordToken  string
	TodoistToken  string
	Primary       string
	PrimaryChatID string
	UseKeyring    bool
}

func runSetup(cmd *cobra.Command, _ []string) error {
	answers := setupAnswers{
		Model:      "gemini-2.0-flash",
		UseKeyring: config.KeyringAvailable(),
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	var err error
	if interactive {
		err = runSetupForm(&answers)
	} else {
		err = runSetupPlain(&answers)
	}
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Vault.Path = answers.VaultPath
	cfg.LLM.Model = answers.Model
	cfg.Channels.Primary.Channel = answers.Primary
	cfg.Channels.Primary.ChatID = answers.PrimaryChatID

	secrets := map[string]string{
		config.KeyGemini:   answers.GeminiKey,
		config.KeyTelegram: answers.TelegramToken,
		config.KeyDiscord:  answers.DiscordToken,
		config.KeyTodoist:  answers.TodoistToken,
	}
	if answers.UseKeyring {
		for key, value := range secrets {
			if value == "" {
				continue
			}
			if err := config.StoreSecret(key, value); err != nil {
				return fmt.Errorf("store %s in keyring: %w", key, err)
			}
		}
		fmt.Println("Secrets stored in the OS keyring.")
	} else {
		cfg.LLM.APIKey = answers.GeminiKey
		cfg.Channels.Telegram.Token = answers.TelegramToken
		cfg.Channels.Discord.Token = answers.DiscordToken
		cfg.Tracker.APIToken = answers.TodoistToken
		fmt.Println("Keyring unavailable; secrets written to config.yaml (mode 0600).")
	}

	if err := config.Save(cfg, "config.yaml"); err != nil {
		return err
	}
	fmt.Println("Wrote config.yaml. Start the assistant with: margo serve")
	return nil
}

// runSetupForm drives the terminal form.
func runSetupForm(a *setupAnswers) error {
	keyringNote := "Store secrets in the OS keyring?"
	if !config.KeyringAvailable() {
		keyringNote += " (keyring not detected)"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Note vault path").
				Description("Directory with your Markdown notes. Leave empty to disable notes and reminders.").
				Value(&a.VaultPath),
			huh.NewInput().
				Title("Gemini API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.GeminiKey),
			huh.NewInput().
				Title("Gemini model").
				Value(&a.Model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Leave empty to skip Telegram.").
				EchoMode(huh.EchoModePassword).
				Value(&a.TelegramToken),
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to skip Discord.").
				EchoMode(huh.EchoModePassword).
				Value(&a.DiscordToken),
			huh.NewInput().
				Title("Todoist API token").
				Description("Leave empty to skip task tracking.").
				EchoMode(huh.EchoModePassword).
				Value(&a.TodoistToken),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary reminder channel").
				Options(
					huh.NewOption("Telegram", "telegram"),
					huh.NewOption("Discord", "discord"),
				).
				Value(&a.Primary),
			huh.NewInput().
				Title("Primary chat id").
				Description("Where reminders go when you are not actively chatting.").
				Value(&a.PrimaryChatID),
			huh.NewConfirm().
				Title(keyringNote).
				Value(&a.UseKeyring),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}
	if a.GeminiKey == "" {
		return fmt.Errorf("a Gemini API key is required")
	}
	return nil
}

// runSetupPlain is the non-terminal fallback: plain prompts on stdin, with
// term.ReadPassword for secrets when possible.
func runSetupPlain(a *setupAnswers) error {
	reader := bufio.NewReader(os.Stdin)

	prompt := func(label string) string {
		fmt.Printf("%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}
	secret := func(label string) string {
		fmt.Printf("%s: ", label)
		if data, err := term.ReadPassword(int(os.Stdin.Fd())); err == nil {
			fmt.Println()
			return strings.TrimSpace(string(data))
		}
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	a.VaultPath = prompt("Note vault path (empty to disable)")
	a.GeminiKey = secret("Gemini API key")
	if a.GeminiKey == "" {
		return fmt.Errorf("a Gemini API key is required")
	}
	if model := prompt("Gemini model [" + a.Model + "]"); model != "" {
		a.Model = model
	}
	a.TelegramToken = secret("Telegram bot token (empty to skip)")
	a.DiscordToken = secret("Discord bot token (empty to skip)")
	a.TodoistToken = secret("Todoist API token (empty to skip)")
	a.Primary = prompt("Primary reminder channel (telegram/discord)")
	a.PrimaryChatID = prompt("Primary chat id")
	return nil
}
