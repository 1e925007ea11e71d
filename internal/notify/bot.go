// Package notify sends run notifications to Telegram and answers digest commands.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsdigest/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RunLister reads the run journal.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// ArchiveReader reads the archive index.
type ArchiveReader interface {
	Load() []model.ArchiveEntry
}

// ResultReader reads stored run results.
type ResultReader interface {
	Read(name string) (*model.Result, error)
}

// Trigger starts a pipeline run.
type Trigger func(ctx context.Context) (*model.Result, error)

// Deps are the optional collaborators behind bot commands. Nil fields disable their commands.
type Deps struct {
	Runs    RunLister
	Archive ArchiveReader
	Results ResultReader
	Trigger Trigger
}

// Bot posts digests to one chat and answers commands from it.
type Bot struct {
	api    telegramAPI
	chatID int64
	deps   Deps
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token.
func New(token string, chatID int64, deps Deps, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newBot(api, chatID, deps, log), nil
}

func newBot(api telegramAPI, chatID int64, deps Deps, log *slog.Logger) *Bot {
	return &Bot{api: api, chatID: chatID, deps: deps, log: log}
}

// NotifyResult posts the digest of a successful run.
func (b *Bot) NotifyResult(_ context.Context, r *model.Result) error {
	return b.send(b.chatID, FormatDigest(r))
}

// NotifyFailure posts the reason a run failed.
func (b *Bot) NotifyFailure(_ context.Context, date string, runErr error) error {
	return b.send(b.chatID, FormatFailure(date, runErr))
}

// Run starts the long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if chat := update.Message.Chat; chat == nil || chat.ID != b.chatID {
				b.log.Warn("ignoring command from unknown chat", "from", update.Message.From)
				continue
			}
			b.handleCommand(ctx, update.Message.Command())
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, cmd string) {
	b.log.Debug("command", "cmd", cmd, "chat_id", b.chatID)

	var text string
	switch cmd {
	case "start", "help":
		text = helpText
	case "latest":
		text = b.latest()
	case "archive":
		text = b.archive()
	case "runs":
		text = b.runs(ctx)
	case "run":
		b.trigger(ctx)
		return
	default:
		text = "Unknown command. Use /help for a list of commands."
	}
	b.reply(text)
}

const helpText = `Commands:
/latest - most recent digest
/archive - past digests
/runs - recent runs
/run - build a digest now`

func (b *Bot) latest() string {
	if b.deps.Archive == nil || b.deps.Results == nil {
		return "Digest history is not available."
	}
	entries := b.deps.Archive.Load()
	if len(entries) == 0 {
		return "No digest has been generated yet."
	}
	r, err := b.deps.Results.Read(filepath.Base(entries[0].File))
	if err != nil {
		b.log.Error("read latest result", "file", entries[0].File, "error", err)
		return "Could not read the latest digest."
	}
	return FormatDigest(r)
}

func (b *Bot) archive() string {
	if b.deps.Archive == nil {
		return "Digest history is not available."
	}
	return FormatArchive(b.deps.Archive.Load())
}

func (b *Bot) runs(ctx context.Context) string {
	if b.deps.Runs == nil {
		return "The run journal is disabled."
	}
	runs, err := b.deps.Runs.ListRuns(ctx, 10)
	if err != nil {
		b.log.Error("list runs", "error", err)
		return "Could not read the run journal."
	}
	return FormatRuns(runs)
}

func (b *Bot) trigger(ctx context.Context) {
	if b.deps.Trigger == nil {
		b.reply("Manual runs are disabled.")
		return
	}
	b.reply("Building a digest, this takes a minute or two.")
	// The run notifies the chat itself on completion.
	go func() {
		if _, err := b.deps.Trigger(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Warn("manual run failed", "error", err)
		}
	}()
}

func (b *Bot) reply(text string) {
	if err := b.send(b.chatID, text); err != nil {
		b.log.Error("send message", "chat_id", b.chatID, "error", err)
	}
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
