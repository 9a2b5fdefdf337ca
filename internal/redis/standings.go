package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
)

// Standings mirrors user point totals in a Redis sorted set. PostgreSQL stays
// authoritative. Members are scored with negated points so an ascending range
// yields points descending with ties by user ID ascending. A companion hash
// records the revision each member was written at.
type Standings struct {
	client    *redis.Client
	keyPrefix string
	logger    *slog.Logger
}

// setPointsScript writes (member, points, revision) triples, skipping any
// member whose mirrored revision is newer. Returns the number written.
var setPointsScript = redis.NewScript(`
local written = 0
for i = 1, #ARGV, 3 do
	local current = tonumber(redis.call('HGET', KEYS[2], ARGV[i]) or '-1')
	local revision = tonumber(ARGV[i + 2])
	if revision >= current then
		redis.call('ZADD', KEYS[1], -tonumber(ARGV[i + 1]), ARGV[i])
		redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 2])
		written = written + 1
	end
end
return written
`)

// NewClient creates a Redis client and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewStandings creates a standings mirror on client
func NewStandings(client *redis.Client, cfg *config.RedisConfig, logger *slog.Logger) *Standings {
	return &Standings{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}
}

// standingsKey returns the Redis key for the points sorted set
func (s *Standings) standingsKey() string {
	return fmt.Sprintf("%s:standings:points", s.keyPrefix)
}

// revisionsKey returns the Redis key for the member revision hash
func (s *Standings) revisionsKey() string {
	return fmt.Sprintf("%s:standings:revisions", s.keyPrefix)
}

// SetPoints mirrors the user's total as of revision
func (s *Standings) SetPoints(ctx context.Context, userID string, total, revision int64) error {
	_, err := s.write(ctx, []interface{}{userID, total, revision})
	if err != nil {
		return fmt.Errorf("setting points: %w", err)
	}
	return nil
}

func (s *Standings) write(ctx context.Context, args []interface{}) (int64, error) {
	keys := []string{s.standingsKey(), s.revisionsKey()}
	return setPointsScript.Run(ctx, s.client, keys, args...).Int64()
}

// TopN returns the n users with the most points
func (s *Standings) TopN(ctx context.Context, n int) ([]domain.StandingEntry, error) {
	results, err := s.client.ZRangeWithScores(ctx, s.standingsKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.StandingEntry, len(results))
	for i, result := range results {
		entries[i] = domain.StandingEntry{
			Rank:   int64(i + 1),
			UserID: result.Member.(string),
			Points: int64(-result.Score),
		}
	}
	return entries, nil
}

// Count returns the number of users in the mirror
func (s *Standings) Count(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, s.standingsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Reconcile merges snapshot into the mirror in batches of batchSize. Members
// already written at a newer revision keep their value, so updates that land
// while the snapshot is applied are not rolled back.
func (s *Standings) Reconcile(ctx context.Context, snapshot []domain.PointsSnapshot, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var written int64
	args := make([]interface{}, 0, batchSize*3)
	flush := func() error {
		if len(args) == 0 {
			return nil
		}
		n, err := s.write(ctx, args)
		if err != nil {
			return fmt.Errorf("batch setting points: %w", err)
		}
		written += n
		args = args[:0]
		return nil
	}

	for _, p := range snapshot {
		args = append(args, p.UserID, p.Points, p.Revision)
		if len(args) >= batchSize*3 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	s.logger.Debug("reconciled standings mirror",
		"users", len(snapshot),
		"written", written,
		"kept_newer", int64(len(snapshot))-written,
	)
	return nil
}
