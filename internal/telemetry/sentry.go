// Package telemetry wraps Sentry tracing behind a small span API so services
// never touch the SDK directly.
package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "convoflow"

// Config holds the Sentry initialization settings.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init enables Sentry tracing and returns a shutdown function that flushes
// pending events. An empty DSN or a failed init yields a no-op shutdown;
// tracing is never a startup blocker.
func Init(cfg Config) (func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry init failed, continuing without tracing: %v", err)
		return noop, nil
	}

	log.Printf("sentry tracing enabled (env=%s sample_rate=%.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops health-check noise and makes child spans inherit the
// parent's sampling decision.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" || ctx.Span.Op == "http.server GET /health" {
			return 0.0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1.0
			}
			return 0.0
		}
		return rate
	}
}

// SpanAttributes carries the retrieval-domain tags services attach to spans.
type SpanAttributes struct {
	BotID      int64
	DocumentID int64
	Operation  string
}

// Span is the service-facing handle for an in-flight trace span.
type Span struct {
	sp *sentry.Span
}

// StartSpan opens a span named name, as a child of the span already in ctx
// or as a fresh transaction. The returned context carries the new span and
// must be used for downstream calls.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var sp *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		sp = parent.StartChild(name)
	} else {
		sp = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.BotID > 0 {
		sp.SetTag("bot_id", strconv.FormatInt(attrs.BotID, 10))
	}
	if attrs.DocumentID > 0 {
		sp.SetTag("document_id", strconv.FormatInt(attrs.DocumentID, 10))
	}
	if attrs.Operation != "" {
		sp.SetData("operation", attrs.Operation)
	}

	return sp.Context(), &Span{sp: sp}
}

// End finishes the span.
func (s *Span) End() {
	if s.sp != nil {
		s.sp.Finish()
	}
}

// SetError marks the span failed and reports the error.
func (s *Span) SetError(err error) {
	if s.sp == nil {
		return
	}
	s.sp.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.sp.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// Context returns the context carrying this span.
func (s *Span) Context() context.Context {
	if s.sp != nil {
		return s.sp.Context()
	}
	return context.Background()
}

// CaptureError reports err through the hub bound to ctx, falling back to the
// global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
