package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sam17/fxlifesheet/internal/media"
	"github.com/sam17/fxlifesheet/internal/questions"
	"github.com/sam17/fxlifesheet/internal/session"

	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	userID int64
	text   string
	kb     *tele.ReplyMarkup
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMsg
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, userID int64, text string, kb *tele.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMsg{userID: userID, text: text, kb: kb})
	return nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.text
	}
	return out
}

func (f *fakeTransport) last() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMsg{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeCatalog struct {
	byCommand map[string][]questions.Question
	followUps map[string][]questions.Question
	err       error
}

func (f *fakeCatalog) QuestionsForCommand(ctx context.Context, command string) ([]questions.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCommand[command], nil
}

func (f *fakeCatalog) FollowUpsFor(ctx context.Context, parentKey string, optionID int64) ([]questions.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.followUps[fmt.Sprintf("%s/%d", parentKey, optionID)], nil
}

func (f *fakeCatalog) Commands(ctx context.Context) ([]string, error) {
	cmds := make([]string, 0, len(f.byCommand))
	for c := range f.byCommand {
		cmds = append(cmds, c)
	}
	return cmds, nil
}

type recorded struct {
	userID int64
	key    string
	value  string
	source string
}

type fakeSink struct {
	mu      sync.Mutex
	entries []recorded
	err     error
	delay   time.Duration
}

func (f *fakeSink) RecordAnswer(ctx context.Context, userID int64, key, value, source string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, recorded{userID: userID, key: key, value: value, source: source})
	return nil
}

func textQ(key, prompt string) questions.Question {
	return questions.Question{Key: key, Prompt: prompt, RawType: "text"}
}

func rangeQ(key, prompt string, labels ...string) questions.Question {
	q := questions.Question{Key: key, Prompt: prompt, RawType: "range"}
	for i, l := range labels {
		q.Options = append(q.Options, questions.QuestionOption{
			ID:               int64(i + 1),
			Label:            l,
			OwnerQuestionKey: key,
		})
	}
	return q
}

type fixture struct {
	engine    *Engine
	transport *fakeTransport
	catalog   *fakeCatalog
	sink      *fakeSink
	sessions  *session.Store
}

func newFixture(catalog *fakeCatalog) *fixture {
	f := &fixture{
		transport: &fakeTransport{},
		catalog:   catalog,
		sink:      &fakeSink{},
		sessions:  session.NewStore(),
	}
	f.engine = NewEngine(Config{
		Sessions:  f.sessions,
		Catalog:   f.catalog,
		Transport: f.transport,
		Sink:      f.sink,
		Commands:  []string{"/awake"},
		HelpText:  func() string { return "These commands are supported:\n/awake - morning check-in" },
	})
	return f
}

const alice int64 = 100

func TestCommandWalkthrough(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {
				textQ("name", "What is your name?"),
				rangeQ("age", "What is your age?", "0-10", "11-20", "21-30"),
			},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if got := f.transport.last(); got.text != "What is your name?" || got.kb != nil {
		t.Fatalf("expected plain first prompt, got %+v", got)
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "Alice"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	f.sink.mu.Lock()
	if len(f.sink.entries) != 1 || f.sink.entries[0].key != "name" || f.sink.entries[0].value != "Alice" {
		t.Fatalf("expected recorded answer for name, got %+v", f.sink.entries)
	}
	f.sink.mu.Unlock()

	got := f.transport.last()
	if got.text != "What is your age?" {
		t.Fatalf("expected age prompt, got %q", got.text)
	}
	if got.kb == nil || len(got.kb.ReplyKeyboard) != 1 || len(got.kb.ReplyKeyboard[0]) != 3 {
		t.Fatalf("expected one keyboard row with 3 buttons, got %+v", got.kb)
	}
	if !got.kb.OneTimeKeyboard {
		t.Error("range keyboard should be one-time")
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "11-20"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got := f.transport.last(); got.text != msgAllDone {
		t.Fatalf("expected terminal message, got %q", got.text)
	}
	if _, ok := f.sessions.Current(alice); ok {
		t.Fatal("current must be cleared after terminal message")
	}
}

func TestFollowUpPrepended(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {
				rangeQ("mood", "How is your mood?", "Good", "Bad"),
				textQ("notes", "Anything else?"),
			},
		},
		followUps: map[string][]questions.Question{
			"mood/2": {textQ("mood_why", "What went wrong?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	// "Bad" is option 2, which carries a follow-up.
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "Bad"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != "What went wrong?" {
		t.Fatalf("follow-up must come before queued questions, got %q", got.text)
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "weather"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != "Anything else?" {
		t.Fatalf("original queue should resume after follow-up, got %q", got.text)
	}
}

func TestInvalidNumberIsIdempotent(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {{Key: "sleep_hours", Prompt: "Hours slept?", RawType: "number"}},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "not-a-number"}); err != nil {
			t.Fatal(err)
		}
		if got := f.transport.last(); got.text != msgInvalidNumber {
			t.Fatalf("expected rejection, got %q", got.text)
		}
		cur, ok := f.sessions.Current(alice)
		if !ok || cur.Key != "sleep_hours" {
			t.Fatalf("current must stay unchanged, got %v ok=%v", cur.Key, ok)
		}
	}
	f.sink.mu.Lock()
	recorded := len(f.sink.entries)
	f.sink.mu.Unlock()
	if recorded != 0 {
		t.Fatalf("rejected answers must not be recorded, got %d entries", recorded)
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: " 7 "}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgAllDone {
		t.Fatalf("valid number should advance, got %q", got.text)
	}
}

func TestLocationAnswer(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {{Key: "wakeup_spot", Prompt: "Where are you?", RawType: "location"}},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.kb == nil {
		t.Fatal("location question should carry a share keyboard")
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "here"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgInvalidLocation {
		t.Fatalf("text is not a location, got %q", got.text)
	}

	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Location: &Coords{Lat: 12.5, Lon: -3.25}}); err != nil {
		t.Fatal(err)
	}
	f.sink.mu.Lock()
	if len(f.sink.entries) != 1 || f.sink.entries[0].value != "12.5,-3.25" {
		t.Fatalf("expected recorded coordinates, got %+v", f.sink.entries)
	}
	f.sink.mu.Unlock()
	if got := f.transport.last(); got.text != msgAllDone {
		t.Fatalf("location answer should advance, got %q", got.text)
	}
}

type failingStore struct{}

func (failingStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	return "", errors.New("spaces unavailable")
}

type stubFetcher struct{}

func (stubFetcher) FetchMedia(ctx context.Context, ref string) ([]byte, error) {
	return []byte("jpeg"), nil
}

func TestImageUploadFailureStillAdvances(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {
				{Key: "selfie", Prompt: "Take a photo of yourself", RawType: "image"},
				textQ("notes", "Anything else?"),
			},
		},
	})
	uploader := media.NewUploader(stubFetcher{}, failingStore{}, f.sink)
	f.engine.uploader = uploader
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, PhotoRef: "file-9"}); err != nil {
		t.Fatal(err)
	}
	uploader.Wait()

	if got := f.transport.last(); got.text != "Anything else?" {
		t.Fatalf("upload failure must not block the next question, got %q", got.text)
	}
	for _, text := range f.transport.texts() {
		if strings.Contains(strings.ToLower(text), "error") || strings.Contains(strings.ToLower(text), "fail") {
			t.Fatalf("no error message may surface to the user, got %q", text)
		}
	}
}

func TestTerminalMessageExactlyOnce(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "Alice"}); err != nil {
		t.Fatal(err)
	}

	var done int
	for _, text := range f.transport.texts() {
		if text == msgAllDone {
			done++
		}
	}
	if done != 1 {
		t.Fatalf("terminal message should appear exactly once, got %d", done)
	}

	// A later message finds an Idle session, not another terminal message.
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "hello?"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgForgotten {
		t.Fatalf("idle message should ask to re-run a command, got %q", got.text)
	}
}

func TestConcurrentAnswersFromOneUserRecordOnce(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?")},
		},
	})
	// A slow sink keeps the first handler inside record-and-advance long
	// enough for the duplicates to pile up behind the user gate.
	f.sink.delay = 5 * time.Millisecond
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}

	const dupes = 4
	var wg sync.WaitGroup
	for i := 0; i < dupes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "Alice"}); err != nil {
				t.Errorf("HandleMessage: %v", err)
			}
		}()
	}
	wg.Wait()

	f.sink.mu.Lock()
	if len(f.sink.entries) != 1 || f.sink.entries[0].key != "name" {
		t.Fatalf("duplicate deliveries must record exactly once, got %+v", f.sink.entries)
	}
	f.sink.mu.Unlock()

	var done, forgotten int
	for _, text := range f.transport.texts() {
		switch text {
		case msgAllDone:
			done++
		case msgForgotten:
			forgotten++
		}
	}
	if done != 1 {
		t.Fatalf("terminal message should appear exactly once, got %d", done)
	}
	if forgotten != dupes-1 {
		t.Fatalf("late duplicates should find an idle session, got %d forgotten of %d", forgotten, dupes-1)
	}
	if _, ok := f.sessions.Current(alice); ok {
		t.Fatal("current must be cleared after the answer")
	}
}

func TestSkip(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?"), textQ("notes", "Anything else?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.Skip(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgNoSkip {
		t.Fatalf("idle skip, got %q", got.text)
	}

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Skip(ctx, alice); err != nil {
		t.Fatal(err)
	}
	texts := f.transport.texts()
	if texts[len(texts)-2] != msgSkipping || texts[len(texts)-1] != "Anything else?" {
		t.Fatalf("skip should discard and present the next question, got %v", texts)
	}
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.entries) != 0 {
		t.Fatalf("skip must not record an answer, got %+v", f.sink.entries)
	}
}

func TestSkipAll(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?"), textQ("notes", "Anything else?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SkipAll(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgQueueCleared {
		t.Fatalf("got %q", got.text)
	}
	if _, ok := f.sessions.Current(alice); ok {
		t.Fatal("current must be cleared")
	}
	if !f.sessions.PendingEmpty(alice) {
		t.Fatal("pending must be empty")
	}
}

func TestCommandWhileAwaiting(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgAnswerPrevious {
		t.Fatalf("got %q", got.text)
	}
	if f.sessions.PendingEmpty(alice) {
		t.Fatal("new questions must still be enqueued behind the current one")
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(&fakeCatalog{byCommand: map[string][]questions.Question{}})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/unknown"); err != nil {
		t.Fatal(err)
	}
	texts := f.transport.texts()
	if len(texts) != 2 || texts[0] != msgInvalidCommand || !strings.Contains(texts[1], "/awake") {
		t.Fatalf("expected invalid-command reply plus help, got %v", texts)
	}
}

func TestSlashTextWhileAwaiting(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?")},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "/bogus"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); !strings.Contains(got.text, "/awake") {
		t.Fatalf("unknown slash text should get help even while awaiting, got %q", got.text)
	}
	cur, ok := f.sessions.Current(alice)
	if !ok || cur.Key != "name" {
		t.Fatal("current question must survive an invalid command")
	}
}

func TestUnsupportedAnswerType(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {{Key: "odd", Prompt: "?", RawType: "emoji"}},
		},
	})
	ctx := context.Background()

	if err := f.engine.HandleCommand(ctx, alice, "/awake"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.HandleMessage(ctx, Update{UserID: alice, Text: "anything"}); err != nil {
		t.Fatal(err)
	}
	if got := f.transport.last(); got.text != msgUnsupportedType {
		t.Fatalf("got %q", got.text)
	}
	if _, ok := f.sessions.Current(alice); !ok {
		t.Fatal("session state must be unchanged")
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	f := newFixture(&fakeCatalog{
		byCommand: map[string][]questions.Question{
			"/awake": {textQ("name", "What is your name?")},
		},
	})
	f.transport.err = errors.New("telegram down")
	ctx := context.Background()

	err := f.engine.HandleCommand(ctx, alice, "/awake")
	if err == nil {
		t.Fatal("send failure must propagate")
	}
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Code() != "TRANSPORT_ERROR" {
		t.Fatalf("expected TRANSPORT_ERROR, got %v", err)
	}
}

func TestCatalogErrorIsFatalForUpdate(t *testing.T) {
	f := newFixture(&fakeCatalog{err: errors.New("db gone")})
	ctx := context.Background()

	err := f.engine.HandleCommand(ctx, alice, "/awake")
	if err == nil {
		t.Fatal("catalog failure must propagate")
	}
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Code() != "CATALOG_ERROR" {
		t.Fatalf("expected CATALOG_ERROR, got %v", err)
	}
	if !f.sessions.PendingEmpty(alice) {
		t.Fatal("no partial session mutation may be committed")
	}
}
