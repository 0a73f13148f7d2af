package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/autobuy/order"
)

// takeInFlightScript consumes the slot only when its origin matches.
// KEYS[1] = in-flight hash, ARGV[1] = origin.
var takeInFlightScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "origin") == ARGV[1] then
    local payload = redis.call("HGET", KEYS[1], "payload")
    redis.call("DEL", KEYS[1])
    return payload
end
return false
`)

// consumeRetryScript increments a counter unless it reached the limit.
// KEYS[1] = counters hash, ARGV[1] = order id, ARGV[2] = max.
var consumeRetryScript = redis.NewScript(`
local n = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if n >= tonumber(ARGV[2]) then
    return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string // key prefix, default "autobuy"
	HistoryLimit int
}

// Redis is the shared Store backend.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("statestore: redis ping: %w", err)
	}
	return NewRedis(client, cfg.Prefix, cfg.HistoryLimit), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, historyLimit int) *Redis {
	if prefix == "" {
		prefix = "autobuy"
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Redis{client: client, prefix: prefix, limit: historyLimit}
}

func (r *Redis) inflightKey() string { return r.prefix + ":inflight" }
func (r *Redis) historyKey() string  { return r.prefix + ":history" }
func (r *Redis) retriesKey() string  { return r.prefix + ":retries" }

// Close closes the client.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) PutInFlight(ctx context.Context, f order.InFlight) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("statestore: marshal in-flight: %w", err)
	}
	if err := r.client.HSet(ctx, r.inflightKey(), "origin", f.Origin, "payload", string(payload)).Err(); err != nil {
		return fmt.Errorf("statestore: put in-flight: %w", err)
	}
	return nil
}

func (r *Redis) PeekInFlight(ctx context.Context) (*order.InFlight, error) {
	payload, err := r.client.HGet(ctx, r.inflightKey(), "payload").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: peek in-flight: %w", err)
	}
	return decodeInFlight(payload)
}

func (r *Redis) TakeInFlight(ctx context.Context, origin string) (*order.InFlight, error) {
	payload, err := takeInFlightScript.Run(ctx, r.client, []string{r.inflightKey()}, origin).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: take in-flight: %w", err)
	}
	return decodeInFlight(payload)
}

func (r *Redis) ClearInFlight(ctx context.Context) error {
	if err := r.client.Del(ctx, r.inflightKey()).Err(); err != nil {
		return fmt.Errorf("statestore: clear in-flight: %w", err)
	}
	return nil
}

// AppendHistory pushes e and trims the list inside one MULTI/EXEC. The list
// is newest-first by insertion, which matches processedAt order because the
// orchestrator stamps entries at write time.
func (r *Redis) AppendHistory(ctx context.Context, e order.HistoryEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("statestore: marshal history: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.historyKey(), string(payload))
		pipe.LTrim(ctx, r.historyKey(), 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("statestore: append history: %w", err)
	}
	return nil
}

func (r *Redis) History(ctx context.Context) ([]order.HistoryEntry, error) {
	raw, err := r.client.LRange(ctx, r.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("statestore: list history: %w", err)
	}
	entries := make([]order.HistoryEntry, 0, len(raw))
	for _, payload := range raw {
		var e order.HistoryEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("statestore: decode history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Redis) LatestForOrder(ctx context.Context, orderID string) (*order.HistoryEntry, error) {
	entries, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].OrderID == orderID {
			return &entries[i], nil
		}
	}
	return nil, nil
}

func (r *Redis) RetryCount(ctx context.Context, orderID string) (int, error) {
	v, err := r.client.HGet(ctx, r.retriesKey(), orderID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("statestore: retry count: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("statestore: retry count %q: %w", v, err)
	}
	return n, nil
}

func (r *Redis) ConsumeRetry(ctx context.Context, orderID string, max int) (int, error) {
	if max <= 0 {
		return 0, ErrRetryLimit
	}
	n, err := consumeRetryScript.Run(ctx, r.client, []string{r.retriesKey()}, orderID, max).Int()
	if err != nil {
		return 0, fmt.Errorf("statestore: consume retry: %w", err)
	}
	if n < 0 {
		return 0, ErrRetryLimit
	}
	return n, nil
}
