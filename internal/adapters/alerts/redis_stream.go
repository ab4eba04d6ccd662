package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Streams are trimmed approximately to this many entries.
const defaultStreamMaxLen = 10000

// RedisAlertSink appends alerts to a Redis stream consumed by the
// notification subsystem.
type RedisAlertSink struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

func NewRedisAlertSink(client *redis.Client, prefix string) *RedisAlertSink {
	return &RedisAlertSink{Client: client, Stream: prefix + ":alerts", MaxLen: defaultStreamMaxLen}
}

func (s *RedisAlertSink) Publish(ctx context.Context, a domain.Alert) error {
	if s.Client == nil {
		return errors.New("redis alert sink: client is nil")
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("publish alert: encode: %w", err)
	}

	err = s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.Stream,
		MaxLen: s.MaxLen,
		Approx: true,
		Values: map[string]any{
			"id":         a.ID,
			"type":       string(a.Type),
			"vehicle_id": a.VehicleID,
			"run_id":     a.DeliveryRunID,
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish alert %s to %s: %w", a.ID, s.Stream, err)
	}
	return nil
}

// RedisResultPublisher appends final validation results to the stream read
// by the claims subsystem. Consumers must tolerate duplicates.
type RedisResultPublisher struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

func NewRedisResultPublisher(client *redis.Client, prefix string) *RedisResultPublisher {
	return &RedisResultPublisher{Client: client, Stream: prefix + ":results", MaxLen: defaultStreamMaxLen}
}

func (p *RedisResultPublisher) PublishResult(ctx context.Context, res *domain.ValidationResult) error {
	if p.Client == nil {
		return errors.New("redis result publisher: client is nil")
	}
	if res == nil {
		return errors.New("publish result: result is nil")
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("publish result: encode: %w", err)
	}

	err = p.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream,
		MaxLen: p.MaxLen,
		Approx: true,
		Values: map[string]any{
			"run_id":     res.DeliveryRunID,
			"valid":      strconv.FormatBool(res.IsValid),
			"confidence": strconv.FormatFloat(res.Confidence, 'f', 2, 64),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish result for %s to %s: %w", res.DeliveryRunID, p.Stream, err)
	}
	return nil
}
