package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/collector/config"
)

var (
	ErrKeyFormat  = errors.New("invalid API key format")
	ErrUnknownKey = errors.New("invalid API key")
)

const (
	keyPrefixLen = 12
	keyCacheTTL  = 5 * time.Minute
)

// Validator resolves API keys to projects and enforces per project rate
// limits.
type Validator struct {
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
}

func NewValidator(cfg *config.Config) (*Validator, error) {
	// Connect to PostgreSQL
	db, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &Validator{
		db:    db,
		redis: rdb,
		cfg:   cfg,
	}, nil
}

// ValidateAPIKey returns the project owning apiKey. Lookups are cached in
// redis by key prefix.
func (v *Validator) ValidateAPIKey(ctx context.Context, apiKey string) (string, error) {
	if len(apiKey) < keyPrefixLen {
		return "", ErrKeyFormat
	}

	cacheKey := "apikey:" + apiKey[:keyPrefixLen]
	projectID, err := v.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		return projectID, nil
	}

	keyHash := HashKey(apiKey)

	var id string
	err = v.db.QueryRow(ctx, `
		SELECT project_id::text FROM api_keys
		WHERE key_hash = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > NOW())
	`, keyHash).Scan(&id)
	if err != nil {
		return "", ErrUnknownKey
	}

	v.redis.Set(ctx, cacheKey, id, keyCacheTTL)

	go func() {
		_, err := v.db.Exec(context.Background(), `
			UPDATE api_keys
			SET last_used_at = NOW(), request_count = request_count + 1
			WHERE key_hash = $1
		`, keyHash)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to update api key usage")
		}
	}()

	return id, nil
}

// CheckRateLimit counts a request against the project's one second window.
// Redis failures allow the request.
func (v *Validator) CheckRateLimit(ctx context.Context, projectID string) bool {
	limit := v.cfg.RateLimit.RequestsPerSecond
	if limit <= 0 {
		return true
	}
	key := "ratelimit:" + projectID

	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		v.redis.Expire(ctx, key, time.Second)
	}

	return count <= int64(limit+v.cfg.RateLimit.Burst)
}

// HashKey is the digest stored in api_keys.key_hash.
func HashKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

func (v *Validator) Close() {
	if v.db != nil {
		v.db.Close()
	}
	if v.redis != nil {
		v.redis.Close()
	}
}
