package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"xarajat/internal/ledger"
	applog "xarajat/internal/log"
	"xarajat/internal/middleware/trace"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	sendErr error
	updates chan tgbotapi.Update
	stopped atomic.Bool
}

func newFakeAPI(buffer int) *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, buffer)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() { f.stopped.Store(true) }

func (f *fakeAPI) replies() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type echoHandler struct {
	calls    atomic.Int64
	inFlight sync.Map // user id -> *atomic.Int64
	overlap  atomic.Bool
	delay    time.Duration
	traceIDs sync.Map
}

func (h *echoHandler) Handle(ctx context.Context, userID int64, text string) string {
	h.calls.Add(1)
	h.traceIDs.Store(trace.ID(ctx), true)

	v, _ := h.inFlight.LoadOrStore(userID, new(atomic.Int64))
	n := v.(*atomic.Int64)
	if n.Add(1) > 1 {
		h.overlap.Store(true)
	}
	time.Sleep(h.delay)
	n.Add(-1)

	return "echo: " + text
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func testLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	return applog.New(cfg)
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: text,
		},
	}
}

func TestBot_RunRepliesToEachTextUpdate(t *testing.T) {
	api := newFakeAPI(8)
	h := &echoHandler{}
	b := NewBot(api, h, nil, testLogger(), 4)

	api.updates <- textUpdate(1, 10, "/total")
	api.updates <- textUpdate(2, 20, "/list")
	api.updates <- tgbotapi.Update{UpdateID: 3}
	api.updates <- textUpdate(4, 30, "   ")
	api.updates <- tgbotapi.Update{UpdateID: 5, Message: &tgbotapi.Message{}}
	close(api.updates)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := map[int64]string{}
	for _, m := range api.replies() {
		got[m.ChatID] = m.Text
	}
	if len(got) != 2 || got[10] != "echo: /total" || got[20] != "echo: /list" {
		t.Fatalf("replies = %v", got)
	}
	if h.calls.Load() != 2 {
		t.Fatalf("handler calls = %d, want 2", h.calls.Load())
	}
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	api := newFakeAPI(0)
	b := NewBot(api, &echoHandler{}, nil, testLogger(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !api.stopped.Load() {
		t.Fatal("polling should be stopped on cancel")
	}
}

func TestBot_SerializesPerUser(t *testing.T) {
	api := newFakeAPI(0)
	h := &echoHandler{delay: 5 * time.Millisecond}
	b := NewBot(api, h, nil, testLogger(), 8)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		b.Submit(ctx, textUpdate(i, int64(i%2), "/total"))
	}
	if err := b.Wait(); err != nil {
		t.Fatal(err)
	}

	if h.overlap.Load() {
		t.Fatal("two updates of the same user ran concurrently")
	}
	if len(api.replies()) != 20 {
		t.Fatalf("replies = %d, want 20", len(api.replies()))
	}
	if b.locks.size() != 0 {
		t.Fatalf("user locks leaked: %d", b.locks.size())
	}
}

func TestBot_EachUpdateGetsTraceID(t *testing.T) {
	api := newFakeAPI(0)
	h := &echoHandler{}
	b := NewBot(api, h, nil, testLogger(), 2)

	for i := 0; i < 3; i++ {
		b.Submit(context.Background(), textUpdate(i, 1, "/total"))
	}
	b.Wait()

	n := 0
	h.traceIDs.Range(func(k, _ any) bool {
		if k.(string) == "" {
			t.Error("update handled without trace id")
		}
		n++
		return true
	})
	if n != 3 {
		t.Fatalf("distinct trace ids = %d, want 3", n)
	}
}

func TestBot_RateLimited(t *testing.T) {
	api := newFakeAPI(0)
	h := &echoHandler{}
	b := NewBot(api, h, denyAll{}, testLogger(), 1)

	b.Submit(context.Background(), textUpdate(1, 10, "/add 1 x"))
	b.Wait()

	replies := api.replies()
	if len(replies) != 1 || replies[0].Text != ledger.RateLimitedReply() {
		t.Fatalf("replies = %+v", replies)
	}
	if h.calls.Load() != 0 {
		t.Fatal("throttled update reached the handler")
	}
}

func TestBot_SendFailureIsLogged(t *testing.T) {
	api := newFakeAPI(0)
	api.sendErr = errors.New("Forbidden: bot was blocked by the user")

	var buf bytes.Buffer
	cfg := applog.DefaultConfig()
	cfg.Output = &buf
	b := NewBot(api, &echoHandler{}, nil, applog.New(cfg), 1)

	b.Submit(context.Background(), textUpdate(1, 10, "/total"))
	b.Wait()

	if !strings.Contains(buf.String(), "error_type=transport_error") {
		t.Fatalf("expected transport error log, got %s", buf.String())
	}
}

func TestBot_HandleWebhook(t *testing.T) {
	api := newFakeAPI(0)
	b := NewBot(api, &echoHandler{}, nil, testLogger(), 2)

	body := []byte(`{"update_id": 7, "message": {"message_id": 1, "date": 0, "chat": {"id": 99, "type": "private"}, "text": "/daily"}}`)
	if err := b.HandleWebhook(context.Background(), body); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	// Cancelling right away still handles what was already acknowledged.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.ServeWebhook(ctx); err != nil {
		t.Fatalf("ServeWebhook() error = %v", err)
	}

	replies := api.replies()
	if len(replies) != 1 || replies[0].ChatID != 99 || replies[0].Text != "echo: /daily" {
		t.Fatalf("replies = %+v", replies)
	}

	if err := b.HandleWebhook(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("malformed body should fail")
	}
}

func TestBot_ServeWebhookProcessesWhileRunning(t *testing.T) {
	api := newFakeAPI(0)
	b := NewBot(api, &echoHandler{}, nil, testLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.ServeWebhook(ctx) }()

	for i := 0; i < 5; i++ {
		body := []byte(`{"update_id": 1, "message": {"message_id": 1, "chat": {"id": 5}, "text": "/total"}}`)
		if err := b.HandleWebhook(context.Background(), body); err != nil {
			t.Fatalf("HandleWebhook() error = %v", err)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeWebhook() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWebhook did not return after cancel")
	}
	if n := len(api.replies()); n != 5 {
		t.Fatalf("replies = %d, want 5", n)
	}
}

func TestBot_HandleWebhookDoesNotBlockWhenQueueIsFull(t *testing.T) {
	b := NewBot(newFakeAPI(0), &echoHandler{}, nil, testLogger(), 1)
	b.queue = make(chan tgbotapi.Update, 1)

	body := []byte(`{"update_id": 1, "message": {"message_id": 1, "chat": {"id": 5}, "text": "/total"}}`)
	if err := b.HandleWebhook(context.Background(), body); err != nil {
		t.Fatalf("first update: %v", err)
	}

	returned := make(chan error, 1)
	go func() { returned <- b.HandleWebhook(context.Background(), body) }()
	select {
	case err := <-returned:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("error = %v, want ErrQueueFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("HandleWebhook blocked on a full queue")
	}
}

func TestNewBot_NilLogger(t *testing.T) {
	api := newFakeAPI(0)
	b := NewBot(api, &echoHandler{}, nil, nil, 1)

	b.Submit(context.Background(), textUpdate(1, 3, "/help"))
	if err := b.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(api.replies()) != 1 {
		t.Fatalf("replies = %d, want 1", len(api.replies()))
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short", 10); len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("short text split: %q", parts)
	}

	line := strings.Repeat("ж", 7) + "\n"
	text := strings.Repeat(line, 5)
	parts := splitMessage(text, 20)
	if strings.Join(parts, "") != text {
		t.Fatal("split lost characters")
	}
	for _, p := range parts {
		if utf8.RuneCountInString(p) > 20 {
			t.Fatalf("part too long: %d", utf8.RuneCountInString(p))
		}
		if !strings.HasSuffix(p, "\n") {
			t.Fatalf("part %q should end on a line break", p)
		}
	}

	long := strings.Repeat("x", 45)
	parts = splitMessage(long, 20)
	if len(parts) != 3 || strings.Join(parts, "") != long {
		t.Fatalf("unbroken text split into %d parts", len(parts))
	}
}

type fakeRequester struct {
	endpoint string
	params   tgbotapi.Params
	err      error
}

func (f *fakeRequester) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.endpoint, f.params = endpoint, params
	if f.err != nil {
		return nil, f.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestRegisterWebhook(t *testing.T) {
	r := &fakeRequester{}
	if err := RegisterWebhook(r, "https://bot.example.com/telegram/webhook", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if r.endpoint != "setWebhook" || r.params["url"] != "https://bot.example.com/telegram/webhook" || r.params["secret_token"] != "s3cret" {
		t.Fatalf("request = %s %v", r.endpoint, r.params)
	}

	if err := RegisterWebhook(r, "https://x", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.params["secret_token"]; ok {
		t.Fatal("empty secret should not be sent")
	}

	r.err = errors.New("Bad Request: bad webhook")
	if err := ClearWebhook(r, false); err == nil || r.endpoint != "deleteWebhook" {
		t.Fatalf("ClearWebhook() = %v on %s", err, r.endpoint)
	}
}
