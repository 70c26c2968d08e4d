package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/telecode/internal/command"
	"github.com/user/telecode/internal/repo"
	"github.com/user/telecode/internal/session"
	"github.com/user/telecode/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the session core. It maps chat commands to
// SessionManager and CommandExecutor calls and formats results; all
// invariants live in the core, not here.
type Adapter struct {
	bot       *tgbotapi.BotAPI
	sessions  *session.Manager
	validator *command.Validator
	executor  *command.Executor
	repos     *repo.Manager
	allowed   map[int64]bool
	admins    map[int64]bool
}

// New creates a Telegram adapter. Empty allowed list means no restriction.
func New(token string, sessions *session.Manager, validator *command.Validator, executor *command.Executor, repos *repo.Manager, allowed, admins []int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:       bot,
		sessions:  sessions,
		validator: validator,
		executor:  executor,
		repos:     repos,
		allowed:   toSet(allowed),
		admins:    toSet(admins),
	}, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (a *Adapter) isAllowed(userID int64) bool {
	if len(a.allowed) == 0 {
		return true
	}
	return a.allowed[userID]
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
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
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !a.isAllowed(userID) {
		slog.Warn("rejected message from unauthorized user", "user_id", userID)
		a.send(chatID, "Access denied. You are not authorized to use this bot.")
		return
	}

	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	// Free text runs as a command in the user's session. Each message
	// blocks this handler for up to the execution timeout, so run it off
	// the polling loop.
	go a.runCommand(ctx, types.OwnerID(userID), chatID, msg.Text)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	owner := types.OwnerID(msg.From.ID)
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		a.send(chatID, "Hi! I run coding commands inside your work session.\n"+
			"/start_session [dir] — start a session\n"+
			"/end_session — end it\n"+
			"/cd <dir> — re-scope to another directory\n"+
			"/loadrepo <url> — clone a GitHub repo\n"+
			"/status — session info\n"+
			"Any other message runs as a shell command.")

	case "start_session", "new":
		sess, err := a.sessions.Create(ctx, owner, args)
		if err != nil {
			a.send(chatID, creationError(err))
			return
		}
		a.send(chatID, fmt.Sprintf("Session started.\nID: %s\nWorking directory: %s", sess.ID, sess.WorkingDir))

	case "end_session":
		sess, err := a.sessions.Get(ctx, owner)
		if err != nil {
			a.send(chatID, "No active session.")
			return
		}
		if err := a.sessions.End(ctx, sess.ID); err != nil {
			a.send(chatID, "Failed to end session: "+err.Error())
			return
		}
		a.send(chatID, "Session ended. An in-flight command, if any, will finish on its own.")

	case "cd":
		if args == "" {
			a.send(chatID, "Usage: /cd <absolute directory>")
			return
		}
		// Re-scoping replaces the session; the working directory is
		// immutable after creation.
		sess, err := a.sessions.Create(ctx, owner, args)
		if err != nil {
			a.send(chatID, creationError(err))
			return
		}
		a.send(chatID, "Now working in "+sess.WorkingDir)

	case "loadrepo":
		if args == "" {
			a.send(chatID, "Usage: /loadrepo https://github.com/owner/repo")
			return
		}
		go a.loadRepo(ctx, owner, chatID, args)

	case "status":
		sess, err := a.sessions.Get(ctx, owner)
		if err != nil {
			a.send(chatID, "No active session. Start one with /start_session.")
			return
		}
		a.send(chatID, fmt.Sprintf("Session: %s\nWorking directory: %s\nStarted: %s\nLast activity: %s",
			sess.ID,
			sess.WorkingDir,
			sess.CreatedAt.Format(time.RFC3339),
			sess.LastActiveAt.Format(time.RFC3339),
		))

	case "sessions":
		if !a.admins[msg.From.ID] {
			a.send(chatID, "Admin only.")
			return
		}
		a.send(chatID, formatSessionList(a.sessions.ListActive()))

	default:
		a.send(chatID, "Unknown command. See /start for the command list.")
	}
}

// runCommand resolves the owner's session, validates the text, executes it,
// and reports the result.
func (a *Adapter) runCommand(ctx context.Context, owner types.OwnerID, chatID int64, text string) {
	sess, err := a.sessions.Get(ctx, owner)
	if err != nil {
		a.send(chatID, "No active session. Start one with /start_session.")
		return
	}

	if verdict := a.validator.Validate(text); verdict != nil {
		a.send(chatID, "Command blocked: "+verdict.Reason)
		return
	}

	result, err := a.executor.Execute(ctx, sess, text)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrSessionBusy):
			a.send(chatID, "A command is already running in this session. Wait for it to finish.")
		default:
			a.send(chatID, "Execution failed: "+err.Error())
		}
		return
	}

	a.sessions.Touch(ctx, sess.ID)
	a.send(chatID, FormatResult(result))
}

func (a *Adapter) loadRepo(ctx context.Context, owner types.OwnerID, chatID int64, url string) {
	a.send(chatID, "Fetching repository...")
	checkout, err := a.repos.CloneOrUpdate(ctx, owner, url)
	if err != nil {
		a.send(chatID, "Repository load failed: "+err.Error())
		return
	}

	// Scope the session to the fresh checkout.
	sess, err := a.sessions.Create(ctx, owner, checkout.Dir)
	if err != nil {
		a.send(chatID, creationError(err))
		return
	}
	a.send(chatID, fmt.Sprintf("Repository %s/%s %s.\nSession re-scoped to %s",
		checkout.Owner, checkout.Name, checkout.Action, sess.WorkingDir))
}

func creationError(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidDirectory):
		return "That directory does not exist or is not a directory."
	case errors.Is(err, session.ErrStorage):
		return "Could not persist the session. Try again."
	default:
		return "Failed to start session: " + err.Error()
	}
}

// FormatResult renders a CommandResult for chat display.
func FormatResult(r *types.CommandResult) string {
	var b strings.Builder
	if r.TimedOut {
		b.WriteString(fmt.Sprintf("Timed out after %dms. The process group was killed.\n", r.DurationMs))
	} else if r.ExitCode == 0 {
		b.WriteString(fmt.Sprintf("Done in %dms.\n", r.DurationMs))
	} else {
		b.WriteString(fmt.Sprintf("Exit code %d after %dms.\n", r.ExitCode, r.DurationMs))
	}

	if out := strings.TrimSpace(r.Stdout); out != "" {
		b.WriteString("```\n" + out + "\n```\n")
	}
	if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
		b.WriteString("stderr:\n```\n" + errOut + "\n```\n")
	}
	if strings.TrimSpace(r.Stdout) == "" && strings.TrimSpace(r.Stderr) == "" {
		b.WriteString("(no output)")
	}
	return strings.TrimSpace(b.String())
}

func formatSessionList(sessions []*types.Session) string {
	if len(sessions) == 0 {
		return "No active sessions."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d active session(s):\n", len(sessions)))
	for _, s := range sessions {
		b.WriteString(fmt.Sprintf("- owner %d in %s, last active %s\n",
			s.Owner, s.WorkingDir, s.LastActiveAt.Format("2006-01-02 15:04:05")))
	}
	return strings.TrimSpace(b.String())
}

func (a *Adapter) send(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		end := maxTelegramMessage
		// Back off to a rune boundary; Telegram rejects torn UTF-8
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}
