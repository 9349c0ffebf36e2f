// Package bot connects the ledger to Telegram.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"xarajat/internal/ledger"
	applog "xarajat/internal/log"
	"xarajat/internal/middleware/trace"
)

// maxMessageLength is Telegram's limit for one text message, in characters.
const maxMessageLength = 4096

// webhookQueueSize bounds webhook updates that were acknowledged but not yet
// picked up by a worker.
const webhookQueueSize = 256

// ErrQueueFull is returned by HandleWebhook when the update cannot be queued.
// Telegram redelivers updates that are not acknowledged with 2xx.
var ErrQueueFull = errors.New("webhook queue is full")

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler turns one command line into one reply.
type Handler interface {
	Handle(ctx context.Context, userID int64, text string) string
}

type Limiter interface {
	Allow(key string) bool
}

// Bot processes updates on a bounded pool. Updates from the same chat are
// handled one at a time; different chats run in parallel.
type Bot struct {
	api     API
	handler Handler
	limiter Limiter
	logger  *applog.Logger

	group errgroup.Group
	locks userLocks
	queue chan tgbotapi.Update
}

// NewBot returns a Bot using at most workers concurrent handlers. limiter and
// logger may be nil.
func NewBot(api API, handler Handler, limiter Limiter, logger *applog.Logger, workers int) *Bot {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentBot})
	}
	b := &Bot{
		api:     api,
		handler: handler,
		limiter: limiter,
		logger:  logger,
		locks:   userLocks{m: make(map[int64]*userLock)},
		queue:   make(chan tgbotapi.Update, webhookQueueSize),
	}
	b.group.SetLimit(workers)
	return b
}

// Run long-polls for updates until ctx is cancelled or the update channel
// closes, then waits for in-flight updates to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.InfoContext(ctx, "Polling for updates")

loop:
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			break loop
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			b.Submit(ctx, update)
		}
	}

	b.logger.InfoContext(ctx, "Waiting for in-flight updates")
	return b.Wait()
}

// HandleWebhook decodes one webhook body and queues it for ServeWebhook. It
// never blocks; a full queue yields ErrQueueFull.
func (b *Bot) HandleWebhook(_ context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	select {
	case b.queue <- update:
		return nil
	default:
		return ErrQueueFull
	}
}

// ServeWebhook feeds queued webhook updates to the pool until ctx is
// cancelled, then handles what is still queued and waits for in-flight
// updates. Cancel ctx only after the HTTP server has stopped accepting calls.
func (b *Bot) ServeWebhook(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	b.logger.InfoContext(ctx, "Serving webhook updates")

	for {
		select {
		case update := <-b.queue:
			b.Submit(base, update)
		case <-ctx.Done():
			for {
				select {
				case update := <-b.queue:
					b.Submit(base, update)
				default:
					b.logger.InfoContext(base, "Waiting for in-flight updates")
					return b.Wait()
				}
			}
		}
	}
}

// Submit hands update to the pool, blocking while every worker is busy.
func (b *Bot) Submit(ctx context.Context, update tgbotapi.Update) {
	b.group.Go(func() error {
		b.handleUpdate(ctx, update)
		return nil
	})
}

// Wait blocks until every submitted update has been handled.
func (b *Bot) Wait() error {
	return b.group.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	userID := msg.Chat.ID

	ctx = applog.WithLogger(ctx, b.logger.With(applog.FieldUserID, userID, applog.FieldUpdateID, update.UpdateID))
	ctx, _ = trace.Start(ctx, "")
	logger := applog.FromContext(ctx)

	if b.limiter != nil && !b.limiter.Allow(strconv.FormatInt(userID, 10)) {
		logger.WarnContext(ctx, "Rate limit exceeded")
		b.reply(ctx, userID, ledger.RateLimitedReply())
		return
	}

	unlock := b.locks.lock(userID)
	reply := b.handler.Handle(ctx, userID, msg.Text)
	unlock()

	b.reply(ctx, userID, reply)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			applog.FromContext(ctx).LogError(ctx, "Failed to send reply", err, applog.ErrorTypeTransport, nil)
			return
		}
	}
}

// splitMessage cuts text into chunks of at most limit characters, preferring
// to break after a newline.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

type userLocks struct {
	mu sync.Mutex
	m  map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

// lock acquires the user's mutex and returns its release. Entries are dropped
// once no goroutine holds or waits for them.
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.m[userID]
	if !ok {
		ul = &userLock{}
		l.m[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
