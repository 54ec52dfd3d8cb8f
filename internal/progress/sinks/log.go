package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seapigy/procuro-site-sub000/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event. Failed adapter lookups are logged at warn level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("stage", string(evt.Stage)),
			zap.String("retailer", evt.Retailer),
			zap.Duration("dur", evt.Dur),
		}
		if evt.QueryID != [16]byte{} {
			fields = append(fields, zap.Stringer("query_id", evt.QueryUUID()))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Outcome != "" {
			fields = append(fields, zap.String("outcome", evt.Outcome))
		}
		if evt.Price != "" {
			fields = append(fields, zap.String("price", evt.Price))
		}
		if evt.Stage == progress.StageAggregateDone {
			fields = append(fields, zap.Int("valid", evt.Valid))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		level := zapcore.DebugLevel
		if evt.Stage == progress.StageAdapterDone && evt.Outcome != "ok" {
			level = zapcore.WarnLevel
		}
		if ce := s.logger.Check(level, "progress event"); ce != nil {
			ce.Write(fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
