package alerts

import (
	"context"
	"route-validation-service/internal/domain"

	"github.com/rs/zerolog"
)

// LogSink writes alerts and results to the structured log. Used when no
// Redis instance is configured.
type LogSink struct {
	Log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{Log: log.With().Str("component", "alerts").Logger()}
}

func (s *LogSink) Publish(_ context.Context, a domain.Alert) error {
	s.Log.Warn().
		Str("alert_id", a.ID).
		Str("alert_type", string(a.Type)).
		Str("vehicle_id", a.VehicleID).
		Str("run_id", a.DeliveryRunID).
		Float64("lat", a.Location.Lat).
		Float64("lon", a.Location.Lon).
		Time("raised_at", a.RaisedAt).
		Msg(a.Message)
	return nil
}

func (s *LogSink) PublishResult(_ context.Context, res *domain.ValidationResult) error {
	if res == nil {
		return nil
	}
	s.Log.Info().
		Str("run_id", res.DeliveryRunID).
		Bool("valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Float64("km_beyond_equalisation", res.KmBeyondEqualisation).
		Strs("evidence", res.EvidenceFileRefs).
		Msg("validation result")
	return nil
}
