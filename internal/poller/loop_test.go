package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/notify"
	"hwbot/internal/transport"
	"hwbot/pkg/logx"
)

type step struct {
	body string
	err  error
	pan  any
}

// scriptFetcher replays steps in order and repeats the last one.
type scriptFetcher struct {
	mu      sync.Mutex
	steps   []step
	i       int
	cursors []int64
}

func (f *scriptFetcher) Fetch(ctx context.Context, cursor int64) (homework.RawResponse, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	s := f.steps[f.i]
	if f.i < len(f.steps)-1 {
		f.i++
	}
	f.mu.Unlock()

	if s.pan != nil {
		panic(s.pan)
	}
	if s.err != nil {
		return nil, s.err
	}
	var raw homework.RawResponse
	if err := json.Unmarshal([]byte(s.body), &raw); err != nil {
		panic("bad fixture: " + err.Error())
	}
	return raw, nil
}

type recordSender struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (r *recordSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return transport.MessageRef{}, r.fail
	}
	r.sent = append(r.sent, text)
	return transport.MessageRef{}, nil
}

func (r *recordSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newTestLoop(steps []step, start int64) (*Loop, *scriptFetcher, *recordSender) {
	f := &scriptFetcher{steps: steps}
	s := &recordSender{}
	gate := notify.NewGate(s, transport.ChatTarget{ChatID: 1}, logx.Nop())
	l := New(Config{Schedule: Every(time.Millisecond), StartCursor: start}, f, gate, logx.Nop(), nil)
	return l, f, s
}

func TestScenarioStatusChange(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{body: `{"homeworks": [{"name":"X","status":"reviewing"}], "current_date": 1000}`}}, 1)
	out := l.RunOnce(context.Background())

	want := `Изменился статус проверки работы "X". Работа взята на проверку ревьюером.`
	if out.Kind != homework.KindNone || out.Message != want || !out.Sent {
		t.Fatalf("outcome = %+v", out)
	}
	if got := s.messages(); len(got) != 1 || got[0] != want {
		t.Fatalf("sent = %v, want [%q]", got, want)
	}
	if l.Cursor() != 1000 {
		t.Fatalf("cursor = %d, want 1000", l.Cursor())
	}
}

func TestTrailingJunkRecordDoesNotFailCycle(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"homeworks": [{"name":"X","status":"approved"}, "junk"], "current_date": 2000}`,
		`{"homeworks": [{"name":"X","status":"approved"}, {"name":"Y","status":5}], "current_date": 2000}`,
	}
	want := `Изменился статус проверки работы "X". Работа проверена: ревьюеру всё понравилось. Ура!`
	for _, body := range bodies {
		l, _, s := newTestLoop([]step{{body: body}}, 1)
		out := l.RunOnce(context.Background())
		if out.Kind != homework.KindNone || out.Message != want || !out.Sent {
			t.Fatalf("body %s: outcome = %+v", body, out)
		}
		if got := s.messages(); len(got) != 1 || got[0] != want {
			t.Fatalf("body %s: sent = %v, want [%q]", body, got, want)
		}
		if l.Cursor() != 2000 {
			t.Fatalf("body %s: cursor = %d, want 2000", body, l.Cursor())
		}
	}
}

func TestScenarioNoPending(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{body: `{"homeworks": []}`}}, 5)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		out := l.RunOnce(ctx)
		if out.Kind != homework.KindNoPending {
			t.Fatalf("cycle %d kind = %v, want no_pending", i, out.Kind)
		}
	}
	if got := s.messages(); len(got) != 1 || got[0] != MsgNoPending {
		t.Fatalf("sent = %v, want one %q", got, MsgNoPending)
	}
	if l.Cursor() != 5 {
		t.Fatalf("cursor = %d, want unchanged 5", l.Cursor())
	}
}

func TestScenarioUnknownStatus(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{body: `{"homeworks": [{"name":"X","status":"weird"}], "current_date": 99}`}}, 5)
	out := l.RunOnce(context.Background())
	if out.Kind != homework.KindUnknownStatus {
		t.Fatalf("kind = %v, want unknown_status", out.Kind)
	}
	l.RunOnce(context.Background())
	if got := s.messages(); len(got) != 1 || got[0] != "Недокументированный статус домашней работы: weird" {
		t.Fatalf("sent = %v", got)
	}
	if l.Cursor() != 5 {
		t.Fatalf("cursor = %d, want 5 (no advance on failure)", l.Cursor())
	}
}

func TestScenarioRepeatedStatusSuppressed(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{body: `{"homeworks":[{"name":"X","status":"approved"}]}`}}, 1)
	first := l.RunOnce(context.Background())
	second := l.RunOnce(context.Background())
	if !first.Sent || second.Sent {
		t.Fatalf("sent flags = (%v, %v), want (true, false)", first.Sent, second.Sent)
	}
	if got := s.messages(); len(got) != 1 {
		t.Fatalf("sent = %v, want one message", got)
	}
}

func TestScenarioRepeatedTransportError(t *testing.T) {
	t.Parallel()

	terr := &homework.TransportError{Cause: errors.New("connection refused")}
	l, _, s := newTestLoop([]step{{err: terr}}, 1)
	l.RunOnce(context.Background())
	l.RunOnce(context.Background())
	if got := s.messages(); len(got) != 1 || got[0] != MsgTransport {
		t.Fatalf("sent = %v, want one %q", got, MsgTransport)
	}
}

func TestOutcomeChangesAreReported(t *testing.T) {
	t.Parallel()

	ok := `{"homeworks":[{"name":"X","status":"reviewing"}],"current_date":10}`
	steps := []step{
		{err: &homework.TransportError{Cause: errors.New("dns")}},
		{err: &homework.BadStatusError{Code: 503}},
		{err: &homework.BadStatusError{Code: 503}},
		{body: ok},
		{body: ok},
		{body: `{"foo": 1}`},
		{body: `{"homeworks": []}`},
		{err: errors.New("weird failure")},
		{body: `{"homeworks":[{"name":"X","status":"approved"}],"current_date":20}`},
	}
	l, _, s := newTestLoop(steps, 1)
	for range steps {
		l.RunOnce(context.Background())
	}
	want := []string{
		MsgTransport,
		"Эндпоинт API недоступен. Код ответа: 503",
		`Изменился статус проверки работы "X". Работа взята на проверку ревьюером.`,
		MsgMalformed,
		MsgNoPending,
		"Сбой в работе программы: weird failure",
		`Изменился статус проверки работы "X". Работа проверена: ревьюеру всё понравилось. Ура!`,
	}
	got := s.messages()
	if len(got) != len(want) {
		t.Fatalf("sent %d messages %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
	if l.Cursor() != 20 {
		t.Fatalf("cursor = %d, want 20", l.Cursor())
	}
}

func TestCursorMonotonic(t *testing.T) {
	t.Parallel()

	steps := []step{
		{body: `{"homeworks":[{"name":"X","status":"reviewing"}],"current_date":100}`},
		{body: `{"homeworks":[{"name":"X","status":"reviewing"}],"current_date":50}`},
		{body: `{"homeworks":[{"name":"X","status":"reviewing"}]}`},
		{err: &homework.TransportError{Cause: errors.New("x")}},
		{body: `{"homeworks":[{"name":"X","status":"approved"}],"current_date":300}`},
	}
	l, f, _ := newTestLoop(steps, 10)
	prev := l.Cursor()
	for i := range steps {
		l.RunOnce(context.Background())
		cur := l.Cursor()
		if cur < prev {
			t.Fatalf("cycle %d: cursor went from %d to %d", i, prev, cur)
		}
		prev = cur
	}
	if prev != 300 {
		t.Fatalf("final cursor = %d, want 300", prev)
	}
	wantCursors := []int64{10, 100, 100, 100, 100}
	for i, c := range wantCursors {
		if f.cursors[i] != c {
			t.Fatalf("fetch %d used cursor %d, want %d", i, f.cursors[i], c)
		}
	}
}

func TestPanicInCycleIsRecovered(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{pan: "boom"}}, 1)
	out := l.RunOnce(context.Background())
	if out.Kind != homework.KindUnclassified || out.Err == nil {
		t.Fatalf("outcome = %+v, want unclassified failure", out)
	}
	if got := s.messages(); len(got) != 1 || got[0] != "Сбой в работе программы: panic: boom" {
		t.Fatalf("sent = %v", got)
	}
}

func TestSendFailureRetriedNextCycle(t *testing.T) {
	t.Parallel()

	l, _, s := newTestLoop([]step{{body: `{"homeworks": []}`}}, 1)
	s.fail = errors.New("telegram down")
	if out := l.RunOnce(context.Background()); out.Sent {
		t.Fatal("cycle with failing sender reported Sent")
	}
	s.fail = nil
	if out := l.RunOnce(context.Background()); !out.Sent {
		t.Fatal("same message should be sent once the sender recovers")
	}
	if out := l.RunOnce(context.Background()); out.Sent {
		t.Fatal("third identical cycle should be suppressed")
	}
}

func TestCancelledCycleSendsNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l, _, s := newTestLoop([]step{{err: &homework.TransportError{Cause: context.Canceled}}}, 1)
	l.RunOnce(ctx)
	if got := s.messages(); len(got) != 0 {
		t.Fatalf("sent = %v, want nothing after cancel", got)
	}
}

func TestRunLoopsUntilCancelled(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		beats int
	)
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptFetcher{steps: []step{{body: `{"homeworks": []}`}}}
	s := &recordSender{}
	gate := notify.NewGate(s, transport.ChatTarget{ChatID: 1}, logx.Nop())
	l := New(Config{
		Schedule:    Every(time.Millisecond),
		StartCursor: 1,
		Heartbeat: func(Outcome) {
			mu.Lock()
			beats++
			if beats == 5 {
				cancel()
			}
			mu.Unlock()
		},
	}, f, gate, logx.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Run did not stop after cancel")
	}

	if st := l.Status(); st.Cycles < 5 || st.LastKind != homework.KindNoPending.String() {
		t.Fatalf("status = %+v", st)
	}
	if got := s.messages(); len(got) != 1 {
		t.Fatalf("sent = %v, want exactly one quiet message", got)
	}
}

func TestNewDefaultsCursorToNow(t *testing.T) {
	t.Parallel()

	before := time.Now().Unix()
	l := New(Config{}, &scriptFetcher{}, nil, logx.Nop(), nil)
	if c := l.Cursor(); c < before || c > time.Now().Unix() {
		t.Fatalf("cursor = %d, want wall-clock now", c)
	}
}

// blockingFetcher holds each Fetch until release is closed.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, cursor int64) (homework.RawResponse, error) {
	close(f.entered)
	<-f.release
	return homework.RawResponse{"homeworks": json.RawMessage(`[]`)}, nil
}

func TestStatusReportsCycleInFlight(t *testing.T) {
	t.Parallel()

	f := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	gate := notify.NewGate(&recordSender{}, transport.ChatTarget{ChatID: 1}, logx.Nop())
	l := New(Config{StartCursor: 1}, f, gate, logx.Nop(), nil)

	before := time.Now()
	done := make(chan Outcome, 1)
	go func() { done <- l.RunOnce(context.Background()) }()

	select {
	case <-f.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not start")
	}
	if st := l.Status(); st.CycleStartedAt.Before(before) {
		t.Fatalf("CycleStartedAt = %v during cycle, want >= %v", st.CycleStartedAt, before)
	}

	close(f.release)
	<-done
	if st := l.Status(); !st.CycleStartedAt.IsZero() || st.Cycles != 1 {
		t.Fatalf("status after cycle = %+v, want idle with one cycle", st)
	}
}
