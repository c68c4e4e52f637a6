package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

const sessionTTL = time.Hour

// Tracker keeps rolling per session counters in Redis, keyed by the SDK's
// session uuid.
type Tracker struct {
	redis *redis.Client
}

func NewTracker(redisCfg config.RedisConfig) *Tracker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	return &Tracker{redis: rdb}
}

// Key is the Redis hash holding one session.
func Key(sessionID string) string {
	return "session:" + sessionID
}

// Counters lists the hash fields a report increments besides events_count.
func Counters(t event.Type, status event.Status) []string {
	var out []string
	switch t {
	case event.History, event.Hashchange:
		out = append(out, "route_changes")
	case event.Click:
		out = append(out, "click_count")
	case event.Error, event.UnhandledRejection, event.Resource, event.Vue, event.React:
		out = append(out, "errors_count")
	case event.XHR, event.Fetch:
		if status == event.StatusError {
			out = append(out, "http_errors_count")
		}
	case event.WhiteScreen:
		if status == event.StatusError {
			out = append(out, "white_screen_count")
		}
	case event.RecordScreen:
		out = append(out, "recordings_count")
	}
	return out
}

// Produce updates the session hash. Reports without a session are ignored.
func (t *Tracker) Produce(ctx context.Context, r *enricher.EnrichedReport) error {
	if t.redis == nil || r.UUID == "" {
		return nil
	}
	key := Key(r.UUID)
	ts := r.ServerTimestamp

	pipe := t.redis.Pipeline()
	pipe.HSet(ctx, key, "ended_at", ts, "exit_page", r.PageURL)
	pipe.HIncrBy(ctx, key, "events_count", 1)
	for _, field := range Counters(r.Type, r.Status) {
		pipe.HIncrBy(ctx, key, field, 1)
	}

	pipe.HSetNX(ctx, key, "project_id", r.ProjectID)
	pipe.HSetNX(ctx, key, "user_id", r.UserID)
	pipe.HSetNX(ctx, key, "started_at", ts)
	pipe.HSetNX(ctx, key, "entry_page", r.PageURL)
	pipe.HSetNX(ctx, key, "browser", r.Browser)
	pipe.HSetNX(ctx, key, "os", r.OS)
	pipe.HSetNX(ctx, key, "device_type", r.DeviceType)
	pipe.HSetNX(ctx, key, "country", r.Country)

	pipe.Expire(ctx, key, sessionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		// session stats are best effort
		log.Warn().Err(err).Str("session_id", r.UUID).Msg("Failed to update session in Redis")
	}
	return nil
}

func (t *Tracker) Close() error {
	return t.redis.Close()
}
