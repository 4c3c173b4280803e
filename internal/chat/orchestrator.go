// ABOUTME: Handles one REQUEST_CHAT end to end: decode, resolve, call provider, reply
// ABOUTME: Every request ends in exactly one text event followed by one end event

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/spark-gateway/internal/provider"
	"github.com/2389/spark-gateway/internal/render"
	"github.com/2389/spark-gateway/internal/settings"
	"github.com/2389/spark-gateway/internal/store"
	"github.com/2389/spark-gateway/internal/transcript"
	"github.com/2389/spark-gateway/internal/watch"
)

// Reply texts sent to the watch.
const (
	ReplyNoAPIKey     = "No API key configured. Please configure in settings."
	ReplyParseError   = "Error parsing response"
	ReplyNetworkError = "Network error occurred"
	ReplyTimeout      = "Request timed out. Try again later."
	replyEmptyPrefix  = "No response from "
)

const (
	// DefaultTimeout bounds a whole request: waiting for earlier requests
	// plus the provider call.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxResponseBytes caps how much of a provider body is read.
	DefaultMaxResponseBytes = 1 << 20
)

// Config configures an Orchestrator.
type Config struct {
	Settings store.SettingsStore
	// Exchanges is optional; when set, every request is recorded.
	Exchanges store.ExchangeStore
	Registry  *provider.Registry
	// Client defaults to a plain http.Client; the deadline comes from Timeout.
	Client           *http.Client
	Timeout          time.Duration
	MaxResponseBytes int64
	// StripMarkdown renders replies as plain text before sending.
	StripMarkdown bool
	Logger        *slog.Logger
}

// Orchestrator turns chat requests into provider calls and watch replies.
// Requests are handled one at a time in arrival order.
type Orchestrator struct {
	settings      store.SettingsStore
	exchanges     store.ExchangeStore
	registry      *provider.Registry
	client        *http.Client
	timeout       time.Duration
	maxBody       int64
	stripMarkdown bool
	lock          *requestLock
	logger        *slog.Logger
}

// NewOrchestrator creates an Orchestrator, filling unset fields with defaults.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Registry == nil {
		cfg.Registry = provider.NewRegistry(provider.Options{})
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		settings:      cfg.Settings,
		exchanges:     cfg.Exchanges,
		registry:      cfg.Registry,
		client:        cfg.Client,
		timeout:       cfg.Timeout,
		maxBody:       cfg.MaxResponseBytes,
		stripMarkdown: cfg.StripMarkdown,
		lock:          newRequestLock(),
		logger:        cfg.Logger.With("component", "chat"),
	}
}

// Timeout returns the per-request deadline.
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// result is the outcome of one request before delivery.
type result struct {
	text     string
	outcome  store.Outcome
	status   int
	provider provider.Kind
	model    string
}

// Handle answers one encoded transcript through out. The returned error
// only reports delivery failures; provider problems become reply text.
func (o *Orchestrator) Handle(ctx context.Context, encoded string, out watch.Sender) error {
	start := time.Now()
	msgs := transcript.Decode(encoded)

	o.logger.Debug("chat request received", "messages", len(msgs))

	// One deadline covers queueing behind earlier requests and the provider
	// call, so no reply arrives later than the configured timeout.
	deadlineCtx, cancel := context.WithTimeout(ctx, o.timeout)
	var res result
	if o.lock.lock(deadlineCtx) {
		res = o.respond(deadlineCtx, msgs)
		o.lock.unlock()
	} else {
		o.logger.Warn("gave up waiting for previous chat request")
		res = result{text: ReplyTimeout, outcome: store.OutcomeTimeout}
	}
	cancel()

	err := watch.Deliver(ctx, out, watch.Reply{Text: res.text})
	if err != nil {
		o.logger.Warn("failed to deliver reply", "error", err)
	}

	o.record(ctx, msgs, res, time.Since(start))
	return err
}

// respond produces the reply for msgs. It never fails.
func (o *Orchestrator) respond(ctx context.Context, msgs []transcript.Message) result {
	persisted, err := o.settings.GetSettings(ctx)
	if err != nil {
		o.logger.Error("failed to read settings", "error", err)
		persisted = map[string]string{}
	}

	kind, known := settings.SelectedKind(persisted)
	if !known {
		o.logger.Warn("unknown provider, using custom endpoint", "provider", persisted[settings.KeyProvider])
	}
	cfg := settings.Resolve(persisted, kind)
	res := result{provider: kind, model: cfg.Model}

	if !cfg.HasAPIKey() {
		o.logger.Info("no API key configured")
		res.text, res.outcome = ReplyNoAPIKey, store.OutcomeNoAPIKey
		return res
	}

	o.logger.Info("sending request to provider", "config", cfg, "messages", len(msgs))

	adapter := o.registry.For(kind)
	status, body, err := o.call(ctx, adapter, msgs, cfg)
	res.status = status
	if err != nil {
		if isTimeout(err) {
			o.logger.Warn("provider request timed out", "provider", kind, "timeout", o.timeout)
			res.text, res.outcome = ReplyTimeout, store.OutcomeTimeout
		} else {
			o.logger.Warn("provider request failed", "provider", kind, "error", err)
			res.text, res.outcome = ReplyNetworkError, store.OutcomeNetworkError
		}
		return res
	}

	text, err := adapter.ParseResponse(status, body)
	var apiErr *provider.APIError
	switch {
	case errors.As(err, &apiErr):
		o.logger.Warn("provider returned error", "provider", kind, "status", apiErr.Status, "message", apiErr.Message)
		res.text, res.outcome = apiErr.Error(), store.OutcomeHTTPError
		return res
	case err != nil:
		o.logger.Warn("failed to parse provider response", "provider", kind, "error", err)
		res.text, res.outcome = ReplyParseError, store.OutcomeParseError
		return res
	}

	text = strings.TrimSpace(text)
	if o.stripMarkdown && text != "" {
		text = render.PlainText(text)
	}
	if text == "" {
		o.logger.Info("provider returned no text", "provider", kind)
		res.text, res.outcome = replyEmptyPrefix+cfg.ProviderName, store.OutcomeEmpty
		return res
	}

	res.text, res.outcome = text, store.OutcomeOK
	return res
}

// call performs the HTTP exchange under ctx, which carries the request
// deadline. A response arriving after the deadline is never observed.
func (o *Orchestrator) call(ctx context.Context, adapter provider.Adapter, msgs []transcript.Message, cfg provider.Config) (int, []byte, error) {
	req, err := adapter.BuildRequest(msgs, cfg)
	if err != nil {
		return 0, nil, err
	}

	httpReq, err := req.NewHTTPRequest(ctx)
	if err != nil {
		return 0, nil, err
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (o *Orchestrator) record(ctx context.Context, msgs []transcript.Message, res result, elapsed time.Duration) {
	if o.exchanges == nil {
		return
	}

	ex := &store.Exchange{
		ID:           uuid.New().String(),
		Provider:     string(res.provider),
		Model:        res.model,
		MessageCount: len(msgs),
		Outcome:      res.outcome,
		StatusCode:   res.status,
		ReplyChars:   len([]rune(res.text)),
		DurationMS:   elapsed.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := o.exchanges.SaveExchange(context.WithoutCancel(ctx), ex); err != nil {
		o.logger.Error("failed to record exchange", "error", err)
	}
}
