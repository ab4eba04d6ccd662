package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Port: fire-and-forget delivery of real-time alerts to the notification subsystem.
// At-least-once delivery is acceptable.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// Port: hands completed validation results to the claims/settlement subsystem.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result *domain.ValidationResult) error
}
