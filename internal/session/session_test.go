package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxcode/internal/command"
	"voxcode/internal/recognition"
)

type fakeRecognizer struct {
	mu     sync.Mutex
	emit   func(recognition.Result)
	starts int
	stops  int
	err    error
	early  string
}

func (f *fakeRecognizer) Start(_ context.Context, emit func(recognition.Result)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.err != nil {
		return f.err
	}
	f.emit = emit
	if f.early != "" {
		emit(recognition.Result{Text: f.early, Final: true})
	}
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) say(text string, final bool) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	emit(recognition.Result{Text: text, Final: final})
}

type fakeSpeaker struct {
	spoken chan string
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{spoken: make(chan string, 16)}
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.spoken <- text
	return nil
}

func (f *fakeSpeaker) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-f.spoken:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for speech")
		return ""
	}
}

type fakeNotifier struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
	return nil
}

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

type fakeDelegate struct {
	available bool
	reply     string
	probes    atomic.Int32
	responds  atomic.Int32
	resets    atomic.Int32
}

func (f *fakeDelegate) Available(context.Context) bool {
	f.probes.Add(1)
	return f.available
}

func (f *fakeDelegate) Respond(context.Context, string) string {
	f.responds.Add(1)
	return f.reply
}

func (f *fakeDelegate) Reset() { f.resets.Add(1) }

type fakeObserver struct {
	mu        sync.Mutex
	outcomes  []Outcome
	listening bool
	dropped   int
}

func (f *fakeObserver) ObserveDispatch(out Outcome, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, out)
}

func (f *fakeObserver) SetListening(l bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = l
}

func (f *fakeObserver) TranscriptDropped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped++
}

type fakeEditor struct {
	mu       sync.Mutex
	executed []string
	failOn   string
}

func (f *fakeEditor) ExecuteCommand(_ context.Context, id string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failOn {
		return errors.New("editor refused")
	}
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeEditor) ShowInformation(context.Context, string) error { return nil }

type harness struct {
	s     *Session
	rec   *fakeRecognizer
	spk   *fakeSpeaker
	note  *fakeNotifier
	del   *fakeDelegate
	obs   *fakeObserver
	ed    *fakeEditor
	table *command.Table
}

func newHarness(t *testing.T, table *command.Table, cfg Config) *harness {
	t.Helper()

	h := &harness{
		rec:  &fakeRecognizer{},
		spk:  newFakeSpeaker(),
		note: &fakeNotifier{},
		del:  &fakeDelegate{available: true, reply: "Paris."},
		obs:  &fakeObserver{},
		ed:   &fakeEditor{},
	}
	if table == nil {
		table = command.Defaults(h.ed)
	}
	h.table = table

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.s = New(cfg, table, h.del, Ports{
		Recognizer: h.rec,
		Speaker:    h.spk,
		Notifier:   h.note,
		Observer:   h.obs,
	}, logger)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSaveFileEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.run(t)
	require.NoError(t, h.s.Start(context.Background()))

	h.rec.say("save file", true)

	assert.Equal(t, "File saved", h.spk.next(t))
	assert.Equal(t, []string{"workbench.action.files.save"}, h.ed.executed)
	assert.Zero(t, h.del.responds.Load())
	assert.Contains(t, h.note.all(), "You said: save file")
}

func TestGotoLineCapturesNumber(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	out := h.s.Dispatch(context.Background(), "go to line 42")

	assert.Equal(t, OutcomeCommandExecuted, out.Kind)
	assert.Equal(t, "Go to line 42", out.Text)
}

func TestUnmatchedGoesToDelegateOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	out := h.s.Dispatch(context.Background(), "what is the capital of France")

	assert.Equal(t, OutcomeAIResponse, out.Kind)
	assert.Equal(t, "Paris.", out.Text)
	assert.Equal(t, int32(1), h.del.responds.Load())
	assert.Equal(t, "Paris.", h.spk.next(t))
	assert.Contains(t, h.note.all(), "AI: Paris.")
}

func TestUnavailableDelegateNeverQueried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.del.available = false

	out := h.s.Dispatch(context.Background(), "hello")

	assert.Equal(t, OutcomeAIResponse, out.Kind)
	assert.Contains(t, out.Text, "hello")
	assert.Zero(t, h.del.responds.Load())
	assert.Contains(t, h.spk.next(t), "hello")
}

func TestFallbackKeepsQueryVerbatim(t *testing.T) {
	t.Parallel()

	for _, query := range []string{
		`what does "foo" mean`,
		`open C:\src\main.go`,
	} {
		t.Run(query, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil, Config{})
			h.del.available = false

			out := h.s.Dispatch(context.Background(), query)
			assert.Contains(t, out.Text, query)
			assert.Contains(t, h.spk.next(t), query)
		})
	}
}

func TestFailedActionDoesNotFallThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.ed.failOn = "workbench.action.files.save"

	out := h.s.Dispatch(context.Background(), "save file")

	require.True(t, out.Failed())
	assert.Equal(t, OutcomeCommandExecuted, out.Kind)
	assert.Equal(t, "I had trouble executing that command. workbench.action.files.save: editor refused", out.Text)
	assert.Equal(t, out.Text, h.spk.next(t))
	assert.Zero(t, h.del.responds.Load())
	assert.Zero(t, h.del.probes.Load())
}

func TestPanickingActionIsReported(t *testing.T) {
	t.Parallel()

	table := command.NewTable(command.MustCompile("boom", "^boom$", "panics",
		func(context.Context, command.Match) (string, error) { panic("kaboom") }))
	h := newHarness(t, table, Config{})

	out := h.s.Dispatch(context.Background(), "boom")

	require.True(t, out.Failed())
	assert.Contains(t, out.Text, "kaboom")
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	ctx := context.Background()

	require.NoError(t, h.s.Start(ctx))
	require.NoError(t, h.s.Start(ctx))
	assert.Equal(t, StateListening, h.s.State())
	assert.Equal(t, 1, h.rec.starts)
	assert.Equal(t, int32(1), h.del.resets.Load())

	require.NoError(t, h.s.Stop())
	require.NoError(t, h.s.Stop())
	assert.Equal(t, StateIdle, h.s.State())
	assert.Equal(t, 1, h.rec.stops)
	assert.False(t, h.obs.listening)
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	require.NoError(t, h.s.Stop())
	assert.Zero(t, h.rec.stops)
	assert.Empty(t, h.note.all())
}

func TestStartWithoutRecognizer(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{}, command.NewTable(), &fakeDelegate{}, Ports{}, logger)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrRecognitionUnavailable)
	assert.Equal(t, StateIdle, s.State())
}

func TestStartRecognizerUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.rec.err = recognition.ErrUnavailable

	err := h.s.Start(context.Background())
	assert.ErrorIs(t, err, ErrRecognitionUnavailable)
	assert.Equal(t, StateIdle, h.s.State())
	assert.Contains(t, h.note.all(), "Speech recognition is not available.")
}

func TestFailedStartRejectsTranscripts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.rec.err = recognition.ErrUnavailable

	require.Error(t, h.s.Start(context.Background()))
	assert.ErrorIs(t, h.s.Submit("save"), ErrNotListening)
}

func TestTranscriptEmittedDuringStartIsKept(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.rec.early = "save file"
	h.run(t)

	require.NoError(t, h.s.Start(context.Background()))
	assert.Equal(t, "File saved", h.spk.next(t))
}

func TestInterimResultsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.run(t)
	require.NoError(t, h.s.Start(context.Background()))

	h.rec.say("save", false)
	h.rec.say("undo", true)

	assert.Equal(t, "Undoing last action", h.spk.next(t))
	assert.Equal(t, []string{"undo"}, h.ed.executed)
}

func TestSubmitRequiresListening(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	assert.ErrorIs(t, h.s.Submit("save file"), ErrNotListening)
}

func TestSubmitIgnoresBlankTranscripts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{QueueSize: 1})
	require.NoError(t, h.s.Start(context.Background()))

	require.NoError(t, h.s.Submit("   "))
	require.NoError(t, h.s.Submit("undo"))
}

func TestQueueOverflowDrops(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{QueueSize: 1})
	require.NoError(t, h.s.Start(context.Background()))

	require.NoError(t, h.s.Submit("undo"))
	assert.ErrorIs(t, h.s.Submit("redo"), ErrQueueFull)
	assert.Equal(t, 1, h.obs.dropped)
}

func TestDispatchesInArrivalOrder(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan string, 4)

	action := func(reply string, block bool) command.Action {
		return func(context.Context, command.Match) (string, error) {
			started <- reply
			if block {
				<-release
			}
			return reply, nil
		}
	}
	table := command.NewTable(
		command.MustCompile("first", "^first$", "", action("one", true)),
		command.MustCompile("second", "^second$", "", action("two", false)),
	)

	h := newHarness(t, table, Config{})
	h.run(t)
	require.NoError(t, h.s.Start(context.Background()))

	require.NoError(t, h.s.Submit("first"))
	assert.Equal(t, "one", <-started)

	require.NoError(t, h.s.Submit("second"))
	select {
	case got := <-started:
		t.Fatalf("second dispatch %q began before first finished", got)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "one", h.spk.next(t))
	assert.Equal(t, "two", <-started)
	assert.Equal(t, "two", h.spk.next(t))
}

func TestStopDrainsQueued(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	require.NoError(t, h.s.Start(context.Background()))
	require.NoError(t, h.s.Submit("redo"))
	require.NoError(t, h.s.Stop())

	h.run(t)
	assert.Equal(t, "Redoing last action", h.spk.next(t))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "save file", normalize("  save   file\n"))
	assert.Equal(t, "caf\u00e9", normalize("cafe\u0301"))
	assert.Equal(t, "", normalize(" \t "))
}

func TestCommandsListsTable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	assert.Equal(t, h.table.List(), h.s.Commands())
}

func TestObserverSeesOutcomes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, Config{})
	h.s.Dispatch(context.Background(), "undo")
	h.s.Dispatch(context.Background(), "tell me a joke")

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	require.Len(t, h.obs.outcomes, 2)
	assert.Equal(t, OutcomeCommandExecuted, h.obs.outcomes[0].Kind)
	assert.Equal(t, "undo", h.obs.outcomes[0].Command)
	assert.Equal(t, OutcomeAIResponse, h.obs.outcomes[1].Kind)
}
