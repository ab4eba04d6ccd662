package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedReferenceData is a read-through Redis cache in front of a
// ReferenceDataProvider. Planned routes and equalisation points are
// planning data that rarely change, so they are cached for TTL. Run status
// and geofence lookups always go to the underlying provider.
//
// Cache failures are logged and never fail the lookup.
type CachedReferenceData struct {
	ports.ReferenceDataProvider

	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Log    zerolog.Logger
}

func NewCachedReferenceData(
	next ports.ReferenceDataProvider,
	client *redis.Client,
	prefix string,
	ttl time.Duration,
	log zerolog.Logger,
) *CachedReferenceData {
	return &CachedReferenceData{
		ReferenceDataProvider: next,
		Client:                client,
		Prefix:                prefix,
		TTL:                   ttl,
		Log:                   log.With().Str("component", "reference_cache").Logger(),
	}
}

func (c *CachedReferenceData) GetPlannedRoute(ctx context.Context, routeID string) (_ domain.PlannedRoute, err error) {
	defer obs.Time(ctx, c.Log, "reference.cache.GetPlannedRoute")(&err)

	key := c.key("route", routeID)

	var route domain.PlannedRoute
	if c.get(ctx, key, &route) {
		return route, nil
	}

	route, err = c.ReferenceDataProvider.GetPlannedRoute(ctx, routeID)
	if err != nil {
		return domain.PlannedRoute{}, err
	}

	c.put(ctx, key, route)
	return route, nil
}

func (c *CachedReferenceData) GetEqualisationPoint(ctx context.Context, routeID string) (domain.EqualisationPoint, error) {
	key := c.key("equalisation", routeID)

	var eq domain.EqualisationPoint
	if c.get(ctx, key, &eq) {
		return eq, nil
	}

	eq, err := c.ReferenceDataProvider.GetEqualisationPoint(ctx, routeID)
	if err != nil {
		return domain.EqualisationPoint{}, err
	}

	c.put(ctx, key, eq)
	return eq, nil
}

// Invalidate drops the cached planning data of a route.
func (c *CachedReferenceData) Invalidate(ctx context.Context, routeID string) error {
	if c.Client == nil {
		return nil
	}
	if err := c.Client.Del(ctx, c.key("route", routeID), c.key("equalisation", routeID)).Err(); err != nil {
		return fmt.Errorf("invalidate reference cache for %q: %w", routeID, err)
	}
	return nil
}

func (c *CachedReferenceData) key(kind, id string) string {
	return c.Prefix + ":" + kind + ":" + id
}

func (c *CachedReferenceData) get(ctx context.Context, key string, dst any) bool {
	if c.Client == nil {
		return false
	}

	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("reference cache read failed")
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("reference cache entry corrupt")
		return false
	}
	return true
}

func (c *CachedReferenceData) put(ctx context.Context, key string, v any) {
	if c.Client == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("reference cache encode failed")
		return
	}
	if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("reference cache write failed")
	}
}
