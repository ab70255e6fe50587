package bot

import (
	"strings"

	tg "github.com/sam17/fxlifesheet/core/telegram"
	"github.com/sam17/fxlifesheet/core/telegram/commands"
	tghelpers "github.com/sam17/fxlifesheet/core/telegram/helpers"
	"github.com/sam17/fxlifesheet/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Handlers routes Telegram updates into the flow engine.
type Handlers struct {
	engine *flow.Engine
}

// NewHandlers binds the engine.
func NewHandlers(engine *flow.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Registry builds the command registry: fixed helper commands plus the
// catalog-defined question commands.
func (h *Handlers) Registry(catalogCommands []string) *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.onHelp,
		Description: "Show the available commands",
	})
	reg.RegisterCommand("/skip", commands.Command{
		Handler:     h.onSkip,
		Description: "Skip the current question",
	})
	reg.RegisterCommand("/skipall", commands.Command{
		Handler:     h.onSkipAll,
		Description: "Remove all queued questions",
	})

	for _, cmd := range catalogCommands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if !strings.HasPrefix(cmd, "/") {
			cmd = "/" + cmd
		}
		reg.RegisterCommand(cmd, commands.Command{
			Handler:     h.onCatalogCommand(cmd),
			Description: "Start the " + strings.TrimPrefix(cmd, "/") + " questions",
		})
	}

	reg.SetTextFallback(h.onText)
	return reg
}

// Routes exposes all bot endpoints for the runtime.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	var routes []tg.Route
	for cmd, def := range reg.Commands() {
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: def.Handler})
	}
	routes = append(routes,
		tg.Route{Endpoint: tele.OnText, Handler: reg.TextFallback()},
		tg.Route{Endpoint: tele.OnPhoto, Handler: h.onPhoto},
		tg.Route{Endpoint: tele.OnLocation, Handler: h.onLocation},
		tg.Route{Endpoint: tele.OnCallback, Handler: reg.UnknownCallback()},
	)
	return routes
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID
	}
	return 0
}

func (h *Handlers) onHelp(c tele.Context) error {
	return handleWithSummary(c, "help", func() error {
		return h.engine.Help(tghelpers.BuildContext(c), chatID(c))
	})
}

func (h *Handlers) onSkip(c tele.Context) error {
	return handleWithSummary(c, "skip", func() error {
		return h.engine.Skip(tghelpers.BuildContext(c), chatID(c))
	})
}

func (h *Handlers) onSkipAll(c tele.Context) error {
	return handleWithSummary(c, "skipall", func() error {
		return h.engine.SkipAll(tghelpers.BuildContext(c), chatID(c))
	})
}

func (h *Handlers) onCatalogCommand(cmd string) tele.HandlerFunc {
	name := normalizeHandlerName(cmd)
	return func(c tele.Context) error {
		return handleWithSummary(c, name, func() error {
			return h.engine.HandleCommand(tghelpers.BuildContext(c), chatID(c), cmd)
		})
	}
}

func (h *Handlers) onText(c tele.Context) error {
	return handleWithSummary(c, "message", func() error {
		return h.engine.HandleMessage(tghelpers.BuildContext(c), flow.Update{
			UserID: chatID(c),
			Text:   c.Text(),
		})
	})
}

func (h *Handlers) onPhoto(c tele.Context) error {
	return handleWithSummary(c, "photo", func() error {
		upd := flow.Update{UserID: chatID(c)}
		if msg := c.Message(); msg != nil && msg.Photo != nil {
			upd.PhotoRef = msg.Photo.FileID
		}
		return h.engine.HandleMessage(tghelpers.BuildContext(c), upd)
	})
}

func (h *Handlers) onLocation(c tele.Context) error {
	return handleWithSummary(c, "location", func() error {
		upd := flow.Update{UserID: chatID(c)}
		if msg := c.Message(); msg != nil && msg.Location != nil {
			upd.Location = &flow.Coords{
				Lat: float64(msg.Location.Lat),
				Lon: float64(msg.Location.Lng),
			}
		}
		return h.engine.HandleMessage(tghelpers.BuildContext(c), upd)
	})
}
