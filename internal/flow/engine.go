// Package flow implements the conversation engine: the per-user state machine
// that asks catalog questions, validates answers by type and injects
// conditional follow-ups.
package flow

import (
	"context"
	"strconv"
	"strings"

	"github.com/sam17/fxlifesheet/core/logger"
	"github.com/sam17/fxlifesheet/core/telegram/keyboard"
	"github.com/sam17/fxlifesheet/internal/media"
	"github.com/sam17/fxlifesheet/internal/questions"
	"github.com/sam17/fxlifesheet/internal/records"
	"github.com/sam17/fxlifesheet/internal/session"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

const (
	msgInvalidCommand  = "Invalid command, try the following"
	msgForgotten       = "Sorry, I forgot the question I asked, this usually means it took too long for you to respond, please trigger the question again by running the `/` command"
	msgAnswerPrevious  = "Okay, but answer my previous question first"
	msgInvalidNumber   = "Invalid number, please try again"
	msgInvalidLocation = "Invalid location, please try again"
	msgUnsupportedType = "Sorry, I don't know how to handle this answer type"
	msgNoSkip          = "No question to skip"
	msgSkipping        = "Skipping the question"
	msgQueueCleared    = "All questions removed from the queue"
	msgAllDone         = "All done for now"

	answerSource = "telegram"
)

// Coords is a geographic point from a shared location.
type Coords struct {
	Lat float64
	Lon float64
}

// Update is the transport-agnostic shape of one inbound message.
type Update struct {
	UserID   int64
	Text     string
	PhotoRef string
	Location *Coords
}

// Transport sends outbound messages. Implementations must not be called while
// a session lock is held.
type Transport interface {
	Send(ctx context.Context, userID int64, text string, kb *tele.ReplyMarkup) error
}

// Config wires an Engine.
type Config struct {
	Sessions  *session.Store
	Catalog   questions.Catalog
	Transport Transport
	Sink      records.Sink
	Uploader  *media.Uploader
	// Commands is the catalog command allow-list, with the "/" prefix.
	Commands []string
	// HelpText renders the command overview appended to invalid-command replies.
	HelpText func() string
}

// Engine is the per-user question flow controller. All operations for one
// user run serialized through a per-user gate, so concurrent updates from
// the same chat are handled one at a time.
type Engine struct {
	sessions  *session.Store
	catalog   questions.Catalog
	transport Transport
	sink      records.Sink
	uploader  *media.Uploader
	allowed   map[string]bool
	helpText  func() string
	gate      *userGate
}

// NewEngine builds the engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	allowed := make(map[string]bool, len(cfg.Commands))
	for _, cmd := range cfg.Commands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if !strings.HasPrefix(cmd, "/") {
			cmd = "/" + cmd
		}
		allowed[cmd] = true
	}
	help := cfg.HelpText
	if help == nil {
		help = func() string { return "" }
	}
	return &Engine{
		sessions:  cfg.Sessions,
		catalog:   cfg.Catalog,
		transport: cfg.Transport,
		sink:      cfg.Sink,
		uploader:  cfg.Uploader,
		allowed:   allowed,
		helpText:  help,
		gate:      newUserGate(),
	}
}

// HandleCommand processes a catalog command: validates it against the
// allow-list, enqueues its questions and either presents the first one or
// tells the user to answer the outstanding question first.
func (e *Engine) HandleCommand(ctx context.Context, userID int64, command string) error {
	e.gate.lock(userID)
	defer e.gate.unlock(userID)
	return e.handleCommand(ctx, userID, command)
}

func (e *Engine) handleCommand(ctx context.Context, userID int64, command string) error {
	command = strings.TrimSpace(command)
	if !e.allowed[command] {
		return e.sendInvalidCommand(ctx, userID)
	}

	qs, err := e.catalog.QuestionsForCommand(ctx, command)
	if err != nil {
		return newCatalogError(err)
	}

	var (
		hadCurrent bool
		queueLen   int
	)
	e.sessions.Update(userID, func(sess *session.Session) {
		sess.Enqueue(qs)
		_, hadCurrent = sess.Current()
		queueLen = sess.PendingLen()
	})

	logger.Info(ctx, "flow", "command.enqueued",
		slog.String("command", command),
		slog.Int("count", len(qs)),
		slog.Int("queue_len", queueLen),
	)

	if hadCurrent {
		return e.send(ctx, userID, msgAnswerPrevious, nil)
	}
	return e.advance(ctx, userID, nil)
}

// HandleMessage routes a non-command inbound message through the answer
// dispatcher for the currently awaited question.
func (e *Engine) HandleMessage(ctx context.Context, upd Update) error {
	e.gate.lock(upd.UserID)
	defer e.gate.unlock(upd.UserID)
	return e.handleMessage(ctx, upd)
}

func (e *Engine) handleMessage(ctx context.Context, upd Update) error {
	if strings.HasPrefix(upd.Text, "/") {
		// Known commands are routed before this point; any slash text that
		// lands here is not in the allow-list, even while Awaiting.
		return e.sendInvalidCommand(ctx, upd.UserID)
	}

	current, ok := e.sessions.Current(upd.UserID)
	if !ok {
		return e.send(ctx, upd.UserID, msgForgotten, nil)
	}

	switch current.AnswerType() {
	case questions.AnswerText, questions.AnswerRange, questions.AnswerBoolean:
		if upd.Text == "" {
			return e.send(ctx, upd.UserID, msgUnsupportedType, nil)
		}
		return e.acceptAnswer(ctx, upd.UserID, current, upd.Text)

	case questions.AnswerNumber:
		if _, err := strconv.Atoi(strings.TrimSpace(upd.Text)); err != nil {
			return e.send(ctx, upd.UserID, msgInvalidNumber, nil)
		}
		return e.acceptAnswer(ctx, upd.UserID, current, strings.TrimSpace(upd.Text))

	case questions.AnswerLocation:
		if upd.Location == nil {
			return e.send(ctx, upd.UserID, msgInvalidLocation, nil)
		}
		value := strconv.FormatFloat(upd.Location.Lat, 'f', -1, 64) + "," +
			strconv.FormatFloat(upd.Location.Lon, 'f', -1, 64)
		e.record(ctx, upd.UserID, current.Key, value)
		// Follow-up resolution is not run for location answers.
		return e.advance(ctx, upd.UserID, nil)

	case questions.AnswerImage:
		if upd.PhotoRef != "" && e.uploader != nil {
			e.uploader.Process(ctx, upd.UserID, current.Key, upd.PhotoRef)
		} else {
			logger.Warn(ctx, "flow", "image.skipped",
				slog.String("question_key", current.Key),
				slog.String("cause", "no_photo"),
			)
		}
		// Image answers never block progress; the upload runs detached.
		return e.advance(ctx, upd.UserID, nil)

	default:
		return e.send(ctx, upd.UserID, msgUnsupportedType, nil)
	}
}

// Skip discards the current question without recording an answer and
// presents the next one.
func (e *Engine) Skip(ctx context.Context, userID int64) error {
	e.gate.lock(userID)
	defer e.gate.unlock(userID)

	var skipped bool
	e.sessions.Update(userID, func(sess *session.Session) {
		if _, ok := sess.Current(); ok {
			sess.ClearCurrent()
			skipped = true
		}
	})
	if !skipped {
		return e.send(ctx, userID, msgNoSkip, nil)
	}
	if err := e.send(ctx, userID, msgSkipping, nil); err != nil {
		return err
	}
	return e.advance(ctx, userID, nil)
}

// SkipAll empties the pending queue and clears the current question.
func (e *Engine) SkipAll(ctx context.Context, userID int64) error {
	e.gate.lock(userID)
	defer e.gate.unlock(userID)

	e.sessions.ClearAll(userID)
	logger.Info(ctx, "flow", "queue.cleared", slog.Int64("user_id", userID))
	return e.send(ctx, userID, msgQueueCleared, nil)
}

// Help sends the command overview.
func (e *Engine) Help(ctx context.Context, userID int64) error {
	return e.send(ctx, userID, e.helpText(), nil)
}

// acceptAnswer records a text-shaped answer, resolves follow-up questions and
// advances the queue.
func (e *Engine) acceptAnswer(ctx context.Context, userID int64, current questions.Question, answer string) error {
	e.record(ctx, userID, current.Key, answer)

	var followUps []questions.Question
	if opt, ok := current.OptionByLabel(answer); ok {
		qs, err := e.catalog.FollowUpsFor(ctx, opt.OwnerQuestionKey, opt.ID)
		if err != nil {
			return newCatalogError(err)
		}
		followUps = qs
		if len(followUps) > 0 {
			logger.Info(ctx, "flow", "followup.injected",
				slog.String("question_key", current.Key),
				slog.Int64("option_id", opt.ID),
				slog.Int("count", len(followUps)),
			)
		}
	}

	return e.advance(ctx, userID, followUps)
}

// advance atomically clears the current question, prepends any follow-ups
// and dequeues the next question. The outbound send happens after the
// session lock is released.
func (e *Engine) advance(ctx context.Context, userID int64, followUps []questions.Question) error {
	var (
		next     questions.Question
		has      bool
		queueLen int
	)
	e.sessions.Update(userID, func(sess *session.Session) {
		sess.EnqueueFront(followUps)
		sess.ClearCurrent()
		next, has = sess.DequeueNext()
		queueLen = sess.PendingLen()
	})

	if !has {
		return e.send(ctx, userID, msgAllDone, nil)
	}

	logger.Debug(ctx, "flow", "question.asked",
		slog.String("question_key", next.Key),
		slog.String("answer_type", string(next.AnswerType())),
		slog.Int("queue_len", queueLen),
	)
	return e.present(ctx, userID, next)
}

// present renders the question according to its answer type.
func (e *Engine) present(ctx context.Context, userID int64, q questions.Question) error {
	switch q.AnswerType() {
	case questions.AnswerRange:
		return e.send(ctx, userID, q.Prompt, keyboard.ReplyButtons(q.OptionLabels()))
	case questions.AnswerBoolean:
		return e.send(ctx, userID, q.Prompt, keyboard.YesNo())
	case questions.AnswerLocation:
		return e.send(ctx, userID, q.Prompt, keyboard.LocationRequest())
	default:
		return e.send(ctx, userID, q.Prompt, nil)
	}
}

func (e *Engine) sendInvalidCommand(ctx context.Context, userID int64) error {
	if err := e.send(ctx, userID, msgInvalidCommand, nil); err != nil {
		return err
	}
	return e.send(ctx, userID, e.helpText(), nil)
}

// record persists the answer fire-and-forget: failures are logged, never
// retried, never surfaced.
func (e *Engine) record(ctx context.Context, userID int64, questionKey, value string) {
	if e.sink == nil {
		return
	}
	if err := e.sink.RecordAnswer(ctx, userID, questionKey, value, answerSource); err != nil {
		logger.Warn(ctx, "flow", "record.fail",
			slog.String("question_key", questionKey),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "flow", "answer.recorded",
		slog.String("question_key", questionKey),
	)
}

func (e *Engine) send(ctx context.Context, userID int64, text string, kb *tele.ReplyMarkup) error {
	if err := e.transport.Send(ctx, userID, text, kb); err != nil {
		return newTransportError(err)
	}
	return nil
}
