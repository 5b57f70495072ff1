package diagnostics

import (
	"context"
	"log/slog"
)

const (
	StageCacheHit             = "cache_hit"
	StageProviderAttemptStart = "provider_attempt_start"
	StageProviderAttemptEnd   = "provider_attempt_end"
	StageProviderSkipped      = "provider_skipped"
	StageFallback             = "fallback"
	StageHardFail             = "hard_fail"
	StageCompleted            = "completed"
)

type Event struct {
	Stage      string `json:"stage"`
	Attempt    int    `json:"attempt,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Status     int    `json:"status,omitempty"`
	OK         *bool  `json:"ok,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Sink принимает диагностические события. Реализации не должны блокировать.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

type SinkFunc func(ctx context.Context, event Event)

// Emit вызывает функцию-обработчик.
func (f SinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

type multiSink []Sink

func (m multiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Emit(ctx, event)
	}
}

// Multi объединяет несколько приемников в один, пропуская nil.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if nested, ok := sink.(multiSink); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, sink)
	}
	return out
}

// Emit безопасно отправляет событие в приемник, который может быть nil.
func Emit(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	sink.Emit(ctx, event)
}

// Bool возвращает указатель на значение для поля OK.
func Bool(value bool) *bool {
	return &value
}

type LogSink struct {
	logger *slog.Logger
}

// NewLogSink создает приемник, пишущий события в slog.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit пишет событие; неуспешные попытки и fallback пишутся с уровнем warn.
func (s *LogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelDebug
	switch {
	case event.Stage == StageFallback, event.Stage == StageHardFail:
		level = slog.LevelWarn
	case event.OK != nil && !*event.OK:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{slog.String("stage", event.Stage)}
	if event.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", event.DurationMs))
	}
	if event.Status > 0 {
		attrs = append(attrs, slog.Int("status", event.Status))
	}
	if event.OK != nil {
		attrs = append(attrs, slog.Bool("ok", *event.OK))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	s.logger.LogAttrs(ctx, level, "advisor diagnostic", attrs...)
}
