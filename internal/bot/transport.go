// Package bot binds the conversation engine to the Telegram runtime:
// transport adapter, command registry and update routes.
package bot

import (
	"context"
	"errors"
	"io"
	"sync"

	tghelpers "github.com/sam17/fxlifesheet/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned when a send is attempted before the bot is running.
var ErrNotBound = errors.New("bot: transport not bound")

// Transport adapts *tele.Bot to the engine's outbound contract. The bot
// instance only exists once the runtime starts, so it is bound late.
type Transport struct {
	mu  sync.RWMutex
	bot *tele.Bot
}

// NewTransport returns an unbound transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Bind attaches the live bot. Called from the runtime's OnStart hook.
func (t *Transport) Bind(bot *tele.Bot) {
	t.mu.Lock()
	t.bot = bot
	t.mu.Unlock()
}

func (t *Transport) get() *tele.Bot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bot
}

// Send delivers a text message, optionally with a reply keyboard. When the
// context carries the live handler context for the same chat, the send goes
// through it so per-update counters stay accurate.
func (t *Transport) Send(ctx context.Context, userID int64, text string, kb *tele.ReplyMarkup) error {
	if tc, ok := tghelpers.TeleContextFrom(ctx); ok {
		if chat := tc.Chat(); chat != nil && chat.ID == userID {
			if kb != nil {
				return tc.Send(text, kb)
			}
			return tc.Send(text)
		}
	}

	bot := t.get()
	if bot == nil {
		return ErrNotBound
	}
	var err error
	if kb != nil {
		_, err = bot.Send(tele.ChatID(userID), text, kb)
	} else {
		_, err = bot.Send(tele.ChatID(userID), text)
	}
	return err
}

// FetchMedia downloads file bytes for a Telegram file reference.
func (t *Transport) FetchMedia(ctx context.Context, ref string) ([]byte, error) {
	bot := t.get()
	if bot == nil {
		return nil, ErrNotBound
	}
	rc, err := bot.File(&tele.File{FileID: ref})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
