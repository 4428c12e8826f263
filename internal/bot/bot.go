// Package bot runs the Telegram ingestion loop: it long-polls for updates,
// resolves each message to a durable conversation, and drives the
// conversation through its lifecycle (new → unverified → verified). Verified
// chats get the command surface; everything before that is account linking.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Pudxe/todolist/internal/db"
	"github.com/Pudxe/todolist/internal/goals"
	"github.com/Pudxe/todolist/internal/tg"
)

const (
	defaultPollTimeout = 30 // seconds, long-poll hold
	defaultRetryDelay  = 5 * time.Second
)

type Bot struct {
	client      *tg.Client
	db          *db.DB
	goals       *goals.Service
	pollTimeout int
	retryDelay  time.Duration
}

type Option func(*Bot)

// WithPollTimeout sets the getUpdates long-poll hold in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) { b.pollTimeout = seconds }
}

// WithRetryDelay sets the pause after a failed poll. Tests shorten it.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Bot) { b.retryDelay = d }
}

func New(client *tg.Client, database *db.DB, svc *goals.Service, opts ...Option) *Bot {
	b := &Bot{
		client:      client,
		db:          database,
		goals:       svc,
		pollTimeout: defaultPollTimeout,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls until ctx is cancelled. It returns an error only for conditions
// an operator must fix: a rejected bot token. Transient transport failures
// are retried at the same offset forever.
func (b *Bot) Run(ctx context.Context) error {
	// Probe the credential up front so a bad token stops the process
	// instead of failing every poll.
	for {
		me, err := b.client.GetMe(ctx)
		if err == nil {
			slog.Info("bot started", "username", me.Username)
			break
		}
		if errors.Is(err, tg.ErrUnauthorized) {
			return fmt.Errorf("credential probe: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("getMe failed", "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.retryDelay):
		}
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			slog.Info("bot stopped")
			return nil
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, tg.ErrUnauthorized) {
				return fmt.Errorf("poll: %w", err)
			}
			slog.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
			continue
		}

		offset = b.processBatch(ctx, offset, updates)
	}
}

// processBatch handles updates in order and returns the next offset. The
// offset only moves past an update once it has been handled; a transport
// failure while replying leaves the offset at the failed update so the
// platform redelivers it next round. Storage failures are logged and the
// update is skipped, which keeps one poisoned message from wedging the loop.
func (b *Bot) processBatch(ctx context.Context, offset int64, updates []tg.Update) int64 {
	for _, u := range updates {
		if err := b.handleUpdate(ctx, u); err != nil {
			var te *tg.TransportError
			if errors.As(err, &te) {
				slog.Warn("reply undelivered, retrying update next round",
					"update_id", u.UpdateID, "error", err)
				return offset
			}
			slog.Error("update handling failed", "update_id", u.UpdateID, "error", err)
		}
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
	}
	return offset
}

type conversationState int

const (
	stateNew conversationState = iota
	stateUnverified
	stateVerified
)

// classify derives the lifecycle state. It is a pure function of the
// conversation record so redelivered updates always observe the current
// state, never stale in-memory history.
func classify(conv *db.Conversation, created bool) conversationState {
	switch {
	case created:
		return stateNew
	case conv.AccountID == nil:
		return stateUnverified
	default:
		return stateVerified
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u tg.Update) error {
	if u.Message == nil || u.Message.From == nil {
		return nil
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return nil
	}

	conv, created, err := b.db.GetOrCreateConversation(u.Message.Chat.ID, u.Message.From.ID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	switch classify(conv, created) {
	case stateNew:
		return b.runNew(ctx, conv)
	case stateUnverified:
		return b.runUnverified(ctx, conv, text)
	case stateVerified:
		return b.runVerified(ctx, conv, text)
	}
	return nil
}

const welcomeText = "Hello! I'm the todolist bot.\n" +
	"To link this chat to your account, request a verification code " +
	"from the app and send it to me here."

func (b *Bot) runNew(ctx context.Context, conv *db.Conversation) error {
	slog.Info("new conversation", "chat_id", conv.ChatID)
	return b.client.SendMessage(ctx, conv.ChatID, welcomeText)
}

func (b *Bot) runUnverified(ctx context.Context, conv *db.Conversation, text string) error {
	// Codes are issued from an uppercase alphabet; be forgiving about how
	// the user typed it back.
	code := strings.ToUpper(strings.TrimSpace(text))

	account, err := b.db.LinkConversationAccount(conv.ID, code)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return b.client.SendMessage(ctx, conv.ChatID,
			"That code is not valid or has expired. Request a new one and try again.")
	case errors.Is(err, db.ErrAlreadyLinked):
		return b.client.SendMessage(ctx, conv.ChatID,
			"This chat is already linked to a different account.")
	case err != nil:
		return fmt.Errorf("link conversation: %w", err)
	}

	slog.Info("conversation verified", "chat_id", conv.ChatID, "account_id", account.ID)
	return b.client.SendMessage(ctx, conv.ChatID,
		fmt.Sprintf("Verified! This chat is now linked to %s.\nUse /help to see what I can do.", account.Username))
}

func (b *Bot) runVerified(ctx context.Context, conv *db.Conversation, text string) error {
	if !strings.HasPrefix(text, "/") {
		return b.client.SendMessage(ctx, conv.ChatID,
			"Send me a command, for example /goals. Use /help for the full list.")
	}

	reply, err := b.handleCommand(*conv.AccountID, text)
	if err != nil {
		var ue *userError
		switch {
		case errors.As(err, &ue):
			reply = ue.msg
		case errors.Is(err, goals.ErrPermissionDenied):
			reply = "You don't have permission to do that on this board."
		case errors.Is(err, db.ErrNotFound):
			reply = "Not found. Check the reference and try again."
		default:
			return fmt.Errorf("command %q: %w", text, err)
		}
	}
	return b.client.SendMessage(ctx, conv.ChatID, reply)
}
