package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"ms-admission/internal/models"
)

// Class is the direction a scan outcome moves the session counters.
type Class string

const (
	ClassValid   Class = "valid"
	ClassInvalid Class = "invalid"
)

const (
	fieldValid   = "valid_count"
	fieldInvalid = "invalid_count"
	fieldTotal   = "total_count"
)

// Redis keeps per-gate session counters in a redis hash, written through on
// every scan. The class counter and the total are incremented inside one
// MULTI/EXEC so total_count == valid_count + invalid_count holds at all
// times, including after a crash mid-session.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func sessionKey(eventID, gateID string) string {
	return fmt.Sprintf("session_stats:%s:%s", eventID, gateID)
}

func (r *Redis) Increment(ctx context.Context, eventID, gateID string, class Class) error {
	field := fieldValid
	if class == ClassInvalid {
		field = fieldInvalid
	}

	key := sessionKey(eventID, gateID)
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, field, 1)
		pipe.HIncrBy(ctx, key, fieldTotal, 1)
		return nil
	})
	return err
}

// Snapshot loads the persisted counters for a gate session. A session with
// no scans yet reads as all zeroes.
func (r *Redis) Snapshot(ctx context.Context, eventID, gateID string) (models.SessionStats, error) {
	stats := models.SessionStats{EventID: eventID, GateID: gateID}

	vals, err := r.Client.HGetAll(ctx, sessionKey(eventID, gateID)).Result()
	if err != nil {
		return stats, err
	}

	stats.ValidCount = parseCount(vals[fieldValid])
	stats.InvalidCount = parseCount(vals[fieldInvalid])
	stats.TotalCount = parseCount(vals[fieldTotal])
	return stats, nil
}

// Reset clears the counters for a gate session. Called only on the explicit
// operator "end session" action, never automatically.
func (r *Redis) Reset(ctx context.Context, eventID, gateID string) error {
	return r.Client.Del(ctx, sessionKey(eventID, gateID)).Err()
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
