package helpers

import (
	"context"

	"github.com/sam17/fxlifesheet/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

type teleCtxKey struct{}

// WithTeleContext stashes the live tele.Context inside a context.Context so
// outbound sends triggered deeper in the stack can reuse the handler context.
func WithTeleContext(ctx context.Context, c tele.Context) context.Context {
	if ctx == nil || c == nil {
		return ctx
	}
	return context.WithValue(ctx, teleCtxKey{}, c)
}

// TeleContextFrom extracts a stashed tele.Context, if any.
func TeleContextFrom(ctx context.Context) (tele.Context, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(teleCtxKey{}).(tele.Context)
	return c, ok
}

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context previously stored by middleware, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	if v := c.Get(contextKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx, true
		}
	}
	return nil, false
}

// BuildContext constructs a context.Context from tele.Context,
// enriching it with RID and update/user/chat metadata for consistent service logging.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	user := c.Sender()
	chat := c.Chat()

	var (
		chatID int64
		userID int64
	)
	if chat != nil {
		chatID = chat.ID
	}
	if user != nil {
		userID = user.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := context.Background()
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	ctx = WithTeleContext(ctx, c)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
