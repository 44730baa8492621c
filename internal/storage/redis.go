package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reina/internal/log"
	"reina/internal/session"
)

// DefaultRedisSessionKey is used when no key is configured.
const DefaultRedisSessionKey = "reina:session"

type redisRecord struct {
	session.Session
	Sealed bool `json:"sealed"`
}

// RedisSessionRepository shares one session between hosts through Redis.
type RedisSessionRepository struct {
	client *redis.Client
	key    string
	sealer *Sealer
	logger *log.Logger
}

var _ session.Persister = (*RedisSessionRepository)(nil)

// NewRedisSessionRepository connects to addr (host:port or a redis:// URL)
// and checks the connection.
func NewRedisSessionRepository(ctx context.Context, addr, key string, sealer *Sealer, logger *log.Logger) (*RedisSessionRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSessionRepositoryWithClient(client, key, sealer, logger), nil
}

// NewRedisSessionRepositoryWithClient wraps an existing client.
func NewRedisSessionRepositoryWithClient(client *redis.Client, key string, sealer *Sealer, logger *log.Logger) *RedisSessionRepository {
	if logger == nil {
		logger = log.Discard()
	}
	if key == "" {
		key = DefaultRedisSessionKey
	}
	return &RedisSessionRepository{
		client: client,
		key:    key,
		sealer: sealer,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

func (r *RedisSessionRepository) Close() error {
	return r.client.Close()
}

func (r *RedisSessionRepository) Load(ctx context.Context) (session.Session, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return session.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if rec.Sealed != r.sealer.Enabled() {
		r.logger.Warn("Stored session sealed with a different key setting, ignoring it")
		return session.Session{}, nil
	}
	s, err := r.sealer.openSession(rec.Session)
	if err != nil {
		r.logger.Warn("Stored session cannot be decrypted, ignoring it", log.FieldError, err)
		return session.Session{}, nil
	}
	return s, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, s session.Session) error {
	if s.IsZero() {
		if err := r.client.Del(ctx, r.key).Err(); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}

	stored, err := r.sealer.sealSession(s)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	data, err := json.Marshal(redisRecord{Session: stored, Sealed: r.sealer.Enabled()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
