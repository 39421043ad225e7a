package store

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

//go:embed attempt.lua
var pruneCountScript string

var pruneCount = redis.NewScript(pruneCountScript)

// Redis key layout:
//
//	nightwatch:last_ip:<user>        hash{address, timestamp}
//	nightwatch:last_loc:<user>       hash{timestamp, lat, lon}
//	nightwatch:attempts:u:<user>     sorted set, score = ts, member = unique id
//	nightwatch:attempts:a:<addr>     sorted set, score = ts, member = unique id
//	nightwatch:reports               sorted set, score = ts, member = JSON report
const keyPrefix = "nightwatch:"

// RedisStore is the optional StateStore backend for multi-process or
// multi-host deployments (spec.md §4.F "may share a Redis instance"),
// grounded on the teacher's go-redis client and go:embed Lua pattern.
type RedisStore struct {
	rdb *redis.Client
}

// OpenRedis builds a RedisStore over an already-configured client.
func OpenRedis(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) GetLastIP(ctx context.Context, user string) (LastIP, bool, error) {
	m, err := s.rdb.HGetAll(ctx, keyPrefix+"last_ip:"+user).Result()
	if err != nil {
		return LastIP{}, false, err
	}
	if len(m) == 0 {
		return LastIP{}, false, nil
	}
	ts, _ := strconv.ParseInt(m["timestamp"], 10, 64)
	return LastIP{Address: m["address"], Timestamp: ts}, true, nil
}

func (s *RedisStore) SetLastIP(ctx context.Context, user, addr string, ts int64) error {
	return s.rdb.HSet(ctx, keyPrefix+"last_ip:"+user, map[string]interface{}{
		"address":   addr,
		"timestamp": ts,
	}).Err()
}

func (s *RedisStore) GetLastLocation(ctx context.Context, user string) (LastLocation, bool, error) {
	m, err := s.rdb.HGetAll(ctx, keyPrefix+"last_loc:"+user).Result()
	if err != nil {
		return LastLocation{}, false, err
	}
	if len(m) == 0 {
		return LastLocation{}, false, nil
	}
	ts, _ := strconv.ParseInt(m["timestamp"], 10, 64)
	lat, _ := strconv.ParseFloat(m["lat"], 64)
	lon, _ := strconv.ParseFloat(m["lon"], 64)
	return LastLocation{Timestamp: ts, Location: geo.Location{Latitude: lat, Longitude: lon}}, true, nil
}

func (s *RedisStore) AppendLocation(ctx context.Context, user string, ts int64, loc geo.Location, _ string) error {
	return s.rdb.HSet(ctx, keyPrefix+"last_loc:"+user, map[string]interface{}{
		"timestamp": ts,
		"lat":       strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		"lon":       strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
	}).Err()
}

func (s *RedisStore) AppendAttempt(ctx context.Context, user, addr string, ts int64) error {
	member := fmt.Sprintf("%d:%s", ts, uuid.NewString())
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, keyPrefix+"attempts:u:"+user, redis.Z{Score: float64(ts), Member: member})
	pipe.ZAdd(ctx, keyPrefix+"attempts:a:"+addr, redis.Z{Score: float64(ts), Member: member})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) countAttempts(ctx context.Context, key string, windowStart int64) (int, error) {
	res, err := pruneCount.Run(ctx, s.rdb, []string{key}, windowStart).Result()
	if err != nil {
		return 0, fmt.Errorf("store: redis prune-count: %w", err)
	}
	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("store: unexpected script return type %T", res)
	}
	return int(n), nil
}

func (s *RedisStore) CountUserAttempts(ctx context.Context, user string, windowStart int64) (int, error) {
	return s.countAttempts(ctx, keyPrefix+"attempts:u:"+user, windowStart)
}

func (s *RedisStore) CountAddressAttempts(ctx context.Context, addr string, windowStart int64) (int, error) {
	return s.countAttempts(ctx, keyPrefix+"attempts:a:"+addr, windowStart)
}

func (s *RedisStore) AppendReport(ctx context.Context, r report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, keyPrefix+"reports", redis.Z{
		Score:  float64(r.Timestamp),
		Member: string(data),
	}).Err()
}

func (s *RedisStore) RecentReports(ctx context.Context, limit int) ([]report.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	vals, err := s.rdb.ZRevRange(ctx, keyPrefix+"reports", 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]report.Report, 0, len(vals))
	for _, v := range vals {
		var r report.Report
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// PruneBefore is best-effort for Redis: attempt sets carry their own TTL via
// ZREMRANGEBYSCORE at count time, so only the reports sorted set needs an
// explicit sweep here.
func (s *RedisStore) PruneBefore(ctx context.Context, cutoff int64) (int, error) {
	reportCutoff := cutoff - int64(ReportRetention.Seconds())
	// "(" makes the upper bound exclusive: spec.md's prune_before(cutoff)
	// drops ts < cutoff and retains ts >= cutoff.
	n, err := s.rdb.ZRemRangeByScore(ctx, keyPrefix+"reports", "-inf", "("+strconv.FormatInt(reportCutoff, 10)).Result()
	return int(n), err
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// NewClient builds a go-redis client from connection parameters, matching
// the teacher's Redis config shape (pkg/config.Redis).
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
