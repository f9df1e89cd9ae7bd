package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"gyankosh/internal/chat"
	"gyankosh/internal/client"
	"gyankosh/internal/config"
	"gyankosh/internal/export"
	"gyankosh/internal/storage"
	"gyankosh/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "gyankosh:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "gyankosh:", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig) error {
	logFile, err := tea.LogToFile(cfg.LogPath, "gyankosh")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))

	backend, err := storage.Open(cfg.Storage, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open history storage: %w", err)
	}
	defer backend.Close()

	history := storage.NewHistory(backend, cfg.StorageKey, logger.With("component", "storage"))
	conv := chat.New(history,
		chat.WithUserID(cfg.UserID),
		chat.WithTimeout(cfg.Timeout),
		chat.WithLogger(logger.With("component", "chat")),
	)
	defer conv.Close()

	api := client.New(cfg.BaseURL, client.WithLogger(logger.With("component", "client")))
	logger.Info("starting",
		"base_url", api.BaseURL(),
		"storage", cfg.Storage,
		"storage_path", cfg.StoragePath(),
		"messages", conv.Len(),
	)

	switch {
	case cfg.Ask != "":
		return askOnce(conv, api, cfg.Ask, os.Stdout)
	case cfg.Clear:
		return clearHistory(conv, cfg.Yes, os.Stdin, os.Stdout)
	}

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}
	p := tea.NewProgram(ui.NewModel(cfg, conv, api, exp), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// askOnce runs a single turn and prints the answer. The turn is persisted
// like any other, so it shows up in the TUI history.
func askOnce(conv *chat.Conversation, asker chat.Asker, question string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var askErr error
	tracked := chat.AskerFunc(func(ctx context.Context, q, userID string) (string, error) {
		answer, err := asker.Ask(ctx, q, userID)
		askErr = err
		return answer, err
	})

	msg, err := conv.Send(ctx, tracked, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, msg.Content)
	if askErr != nil {
		return errors.New("request failed, see log for details")
	}
	return nil
}

func clearHistory(conv *chat.Conversation, skipPrompt bool, in io.Reader, out io.Writer) error {
	confirm := func() bool {
		if skipPrompt {
			return true
		}
		fmt.Fprint(out, "Are you sure you want to clear all chat history? [y/N] ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}

	if conv.ClearConfirmed(confirm) {
		fmt.Fprintln(out, "Chat history cleared.")
	} else {
		fmt.Fprintln(out, "Cancelled.")
	}
	return nil
}
