// Package telegram sends notifications to Telegram chats and lets a chat
// drive the panel remotely with /buttons, /press, /stop and /timers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/runtime/handlers"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

const (
	maxTelegramMessage = 4096
	// maxReplyOutput bounds how much handler output is echoed to the chat.
	maxReplyOutput = 3000
	// Prefix is the delivery target prefix handled by SendTo.
	Prefix = "telegram:"
)

var ErrNoChat = errors.New("telegram: no chat id")

// Buttons lists the configured buttons.
type Buttons interface {
	List() []types.Button
}

// Executor runs and cancels buttons.
type Executor interface {
	Invoke(id types.ButtonID, opts ...executor.InvokeOption) (*executor.Handle, error)
	Cancel(id types.ButtonID) error
}

// Timers reports active timers.
type Timers interface {
	States() []timer.State
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges a Telegram bot to the executor.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	send    sender
	chatID  int64
	buttons Buttons
	exec    Executor
	timers  Timers
}

// New creates a Telegram adapter. A non-zero chatID restricts commands to
// that chat and is the default notification target.
func New(token string, chatID int64, buttons Buttons, exec Executor, timers Timers) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(bot, chatID, buttons, exec, timers)
	a.bot = bot
	return a, nil
}

func newAdapter(send sender, chatID int64, buttons Buttons, exec Executor, timers Timers) *Adapter {
	return &Adapter{send: send, chatID: chatID, buttons: buttons, exec: exec, timers: timers}
}

// Start long-polls for updates until ctx is done.
func (a *Adapter) Start(ctx context.Context) error {
	if a.chatID == 0 {
		slog.Warn("telegram chat id not set; accepting commands from any chat")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil
		}
	}
}

// SendTo delivers text to "telegram:<chat id>". A bare "telegram:" goes to
// the configured chat.
func (a *Adapter) SendTo(target, text string) error {
	chatID := a.chatID
	if rest := strings.TrimPrefix(target, Prefix); rest != "" {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram target %q: %w", target, err)
		}
		chatID = id
	}
	if chatID == 0 {
		return ErrNoChat
	}
	return a.sendResponse(chatID, text)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if a.chatID != 0 && chatID != a.chatID {
		slog.Warn("telegram message from unknown chat ignored", "chat", chatID)
		return
	}
	if !msg.IsCommand() {
		a.reply(chatID, "Send /buttons to see what you can press.")
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		a.reply(chatID, "Commands: /buttons, /press <id> [input], /stop <id>, /timers")
	case "buttons":
		a.reply(chatID, a.listButtons())
	case "press":
		a.press(ctx, chatID, args)
	case "stop":
		a.stop(chatID, args)
	case "timers":
		a.reply(chatID, a.listTimers())
	default:
		a.reply(chatID, "Unknown command. Available: /buttons, /press, /stop, /timers")
	}
}

func (a *Adapter) listButtons() string {
	list := a.buttons.List()
	if len(list) == 0 {
		return "No buttons configured."
	}
	var sb strings.Builder
	for _, b := range list {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", b.ID, b.DisplayName(), b.Type)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Adapter) listTimers() string {
	var sb strings.Builder
	for _, st := range a.timers.States() {
		if st.Phase == timer.Idle {
			continue
		}
		fmt.Fprintf(&sb, "%d: %s\n", st.ButtonID, handlers.Describe(st))
	}
	if sb.Len() == 0 {
		return "No timers running."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Adapter) press(ctx context.Context, chatID int64, args string) {
	idText, input, _ := strings.Cut(args, " ")
	id, err := types.ParseButtonID(idText)
	if err != nil {
		a.reply(chatID, "Usage: /press <id> [input]")
		return
	}

	h, err := a.exec.Invoke(id, executor.WithInput(strings.TrimSpace(input)))
	if errors.Is(err, executor.ErrBusy) {
		a.reply(chatID, fmt.Sprintf("Button %d is already running.", id))
		return
	}
	if err != nil {
		a.reply(chatID, fmt.Sprintf("Cannot run button %d: %v", id, err))
		return
	}
	a.reply(chatID, fmt.Sprintf("Button %d started.", id))

	go func() {
		rec, err := h.Wait(ctx)
		if err != nil {
			return
		}
		a.reply(chatID, formatRecord(rec))
	}()
}

func (a *Adapter) stop(chatID int64, args string) {
	id, err := types.ParseButtonID(args)
	if err != nil {
		a.reply(chatID, "Usage: /stop <id>")
		return
	}
	if err := a.exec.Cancel(id); err != nil {
		a.reply(chatID, fmt.Sprintf("Cannot stop button %d: %v", id, err))
		return
	}
	a.reply(chatID, fmt.Sprintf("Button %d stopped.", id))
}

func formatRecord(rec executor.Record) string {
	text := fmt.Sprintf("%s: %s (%s)", rec.Label, rec.Summary(), rec.Status)
	out := strings.TrimSpace(rec.Result.Output)
	if out == "" {
		return text
	}
	if len(out) > maxReplyOutput {
		out = out[:maxReplyOutput] + "\n..."
	}
	return text + "\n\n" + out
}

func (a *Adapter) reply(chatID int64, text string) {
	if err := a.sendResponse(chatID, text); err != nil {
		slog.Error("telegram send failed", "chat", chatID, "error", err)
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.send.Send(msg); err != nil {
			// Output often contains unbalanced markdown; retry as plain text.
			msg.ParseMode = ""
			if _, err := a.send.Send(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := min(maxTelegramMessage, len(text))
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
