// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn owns the conversation state of one chat view.
//
// This file implements the Runner, which performs the Effects returned by
// the Controller: one stream goroutine per turn, an ordered persistence
// worker and a rate limited resync.
package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

// backgroundTimeout bounds fire-and-forget calls.
const backgroundTimeout = 15 * time.Second

// Backend opens streams and relays stop requests.
type Backend interface {
	StreamCompletion(ctx context.Context, req luminous.CompletionRequest) (*sse.Reader, error)
	ResumeEvents(ctx context.Context, chatID string) (*sse.Reader, error)
	StopChat(ctx context.Context, chatID string) error
}

// ChatStore persists chats. It is implemented by the HTTP client and by the
// local sqlite store.
type ChatStore interface {
	ListChats(ctx context.Context) ([]model.ChatMeta, error)
	GetChat(ctx context.Context, id string) (*model.Chat, error)
	SaveChat(ctx context.Context, chat model.Chat) error
	PatchChat(ctx context.Context, id string, patch model.ChatPatch) error
	DeleteChat(ctx context.Context, id string) error
	ClearChats(ctx context.Context) error
}

// =============================================================================
// CANCEL MANAGEMENT
// =============================================================================

// cancelManager holds the cancel func of every running stream.
type cancelManager struct {
	mu      sync.Mutex
	cancels map[TurnID]context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{cancels: make(map[TurnID]context.CancelFunc)}
}

func (cm *cancelManager) set(turn TurnID, fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancels[turn] = fn
}

// cancel is safe to call more than once and after the stream ended.
func (cm *cancelManager) cancel(turn TurnID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if fn, ok := cm.cancels[turn]; ok {
		fn()
		delete(cm.cancels, turn)
	}
}

func (cm *cancelManager) cancelAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for turn, fn := range cm.cancels {
		fn()
		delete(cm.cancels, turn)
	}
}

// =============================================================================
// RUNNER
// =============================================================================

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// PersistTurns saves the whole chat after every turn. Set it when the
	// store is local; the server persists turns on its own.
	PersistTurns bool

	// SyncInterval rate limits OnSync callbacks. Defaults to one second.
	SyncInterval time.Duration

	// OnSync runs after a chat was synced, e.g. to refresh the chat list.
	OnSync func(chat model.Chat)

	Logger *slog.Logger
}

// Runner performs the I/O effects of a Controller.
type Runner struct {
	backend Backend
	store   ChatStore
	send    func(Event)
	opts    RunnerOptions
	logger  *slog.Logger

	cancels *cancelManager
	limiter *rate.Limiter
	jobs    chan func(context.Context)
	once    sync.Once
	wg      sync.WaitGroup
}

// NewRunner creates a runner delivering stream events to send. send is
// called from stream goroutines and must be safe for that.
func NewRunner(backend Backend, store ChatStore, send func(Event), opts RunnerOptions) *Runner {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	return &Runner{
		backend: backend,
		store:   store,
		send:    send,
		opts:    opts,
		logger:  logger.With("component", "turn"),
		cancels: newCancelManager(),
		limiter: rate.NewLimiter(rate.Every(opts.SyncInterval), 1),
		jobs:    make(chan func(context.Context), 64),
	}
}

// Perform executes I/O effects and returns the ones meant for the UI
// (Notice, RestoreInput).
func (r *Runner) Perform(ctx context.Context, effects []Effect) []Effect {
	var ui []Effect
	for _, eff := range effects {
		switch e := eff.(type) {
		case StartStream:
			r.startStream(ctx, e)
		case CancelStream:
			r.cancels.cancel(e.Turn)
		case NotifyStop:
			r.background(func(ctx context.Context) {
				if err := r.backend.StopChat(ctx, e.ChatID); err != nil {
					r.logger.Warn("stop notification failed", "chat_id", e.ChatID, "error", err)
				}
			})
		case SyncChat:
			r.sync(e)
		default:
			ui = append(ui, eff)
		}
	}
	return ui
}

func (r *Runner) startStream(ctx context.Context, e StartStream) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancels.set(e.Turn, cancel)
	log := r.logger.With("turn", uint64(e.Turn))
	ctx = logging.NewContext(ctx, log)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.cancels.cancel(e.Turn)

		started := time.Now()
		err := r.stream(ctx, e)
		switch {
		case err == nil:
			log.Debug("stream finished", "duration", time.Since(started))
		case luminous.IsCanceled(err):
			log.Debug("stream cancelled")
		default:
			log.Warn("stream failed", "error", err)
		}
		r.send(StreamEnded{Turn: e.Turn, Err: err})
	}()
}

func (r *Runner) stream(ctx context.Context, e StartStream) error {
	log := logging.FromContext(ctx)
	if e.Prior != nil && r.store != nil {
		if err := r.store.SaveChat(ctx, *e.Prior); err != nil {
			log.Warn("saving chat before retry failed", "chat_id", e.Prior.ID, "error", err)
		}
	}

	var (
		reader *sse.Reader
		err    error
	)
	if e.Request != nil {
		log.Info("stream started", "model", e.Request.Model, "deep_research", e.Request.DeepResearchMode,
			"messages", len(e.Request.Messages))
		reader, err = r.backend.StreamCompletion(ctx, *e.Request)
	} else {
		log.Info("resuming stream", "chat_id", e.ResumeChatID)
		reader, err = r.backend.ResumeEvents(ctx, e.ResumeChatID)
	}
	if err != nil {
		return err
	}
	defer reader.Close()

	err = reader.Each(func(f sse.Frame) error {
		r.send(FrameReceived{Turn: e.Turn, Frame: f})
		return nil
	})
	if frames, dropped := reader.Stats(); dropped > 0 {
		log.Debug("malformed frames dropped", "frames", frames, "dropped", dropped)
	}
	return err
}

func (r *Runner) sync(e SyncChat) {
	save := (e.Save || r.opts.PersistTurns) && r.store != nil
	r.background(func(ctx context.Context) {
		if save {
			if err := r.store.SaveChat(ctx, e.Chat); err != nil {
				r.logger.Warn("chat sync failed", "chat_id", e.Chat.ID, "error", err)
				return
			}
		}
		if r.opts.OnSync == nil {
			return
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		r.opts.OnSync(e.Chat)
	})
}

// background queues fn on the single persistence worker so that saves and
// stop notifications reach the server in order.
func (r *Runner) background(fn func(context.Context)) {
	r.once.Do(func() { go r.worker() })
	r.wg.Add(1)
	r.jobs <- fn
}

func (r *Runner) worker() {
	for fn := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		fn(ctx)
		cancel()
		r.wg.Done()
	}
}

// Wait blocks until running streams and queued background calls finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running streams and waits for background calls.
func (r *Runner) Close() {
	r.cancels.cancelAll()
	r.Wait()
}
