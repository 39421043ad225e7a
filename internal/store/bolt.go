package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/skywalker-88/nightwatch/internal/geo"
	"github.com/skywalker-88/nightwatch/internal/report"
)

// Bucket layout (grounded on the octoreflex embedded-store pattern):
//
//	/last_ip          key: user                 value: JSON(LastIP)
//	/last_location    key: user                 value: JSON(LastLocation)
//	/login_attempts   key: "u:"+user or "a:"+addr + "\x00" + 8-byte big-endian ts
//	                  value: empty (the key alone carries the record)
//	/anomaly_reports  key: 8-byte big-endian ts + 8-byte big-endian seq
//	                  value: JSON(report.Report)
const (
	bucketLastIP         = "last_ip"
	bucketLastLocation   = "last_location"
	bucketLoginAttempts  = "login_attempts"
	bucketAnomalyReports = "anomaly_reports"
)

// BoltStore is the default, embedded StateStore implementation: no external
// service dependency, single file on disk (spec.md §4.F).
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path and
// ensures every required bucket exists.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketLastIP, bucketLastLocation, bucketLoginAttempts, bucketAnomalyReports} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) GetLastIP(_ context.Context, user string) (LastIP, bool, error) {
	var out LastIP
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketLastIP)).Get([]byte(user))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

func (s *BoltStore) SetLastIP(_ context.Context, user, addr string, ts int64) error {
	data, err := json.Marshal(LastIP{Address: addr, Timestamp: ts})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketLastIP)).Put([]byte(user), data)
	})
}

func (s *BoltStore) GetLastLocation(_ context.Context, user string) (LastLocation, bool, error) {
	var out LastLocation
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketLastLocation)).Get([]byte(user))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

func (s *BoltStore) AppendLocation(_ context.Context, user string, ts int64, loc geo.Location, _ string) error {
	data, err := json.Marshal(LastLocation{Timestamp: ts, Location: loc})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketLastLocation)).Put([]byte(user), data)
	})
}

// attemptKey encodes "subject\x00ts" so that a prefix scan over "subject\x00"
// yields every attempt for that subject in chronological order.
func attemptKey(subject string, ts int64) []byte {
	key := make([]byte, len(subject)+1+8)
	copy(key, subject)
	key[len(subject)] = 0
	binary.BigEndian.PutUint64(key[len(subject)+1:], uint64(ts))
	return key
}

func (s *BoltStore) AppendAttempt(_ context.Context, user, addr string, ts int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLoginAttempts))
		if err := b.Put(attemptKey("u:"+user, ts), nil); err != nil {
			return err
		}
		return b.Put(attemptKey("a:"+addr, ts), nil)
	})
}

func (s *BoltStore) countAttempts(subject string, windowStart int64) (int, error) {
	prefix := append([]byte(subject), 0)
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketLoginAttempts)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			ts := int64(binary.BigEndian.Uint64(k[len(prefix):]))
			if ts > windowStart {
				count++
			}
		}
		return nil
	})
	return count, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *BoltStore) CountUserAttempts(_ context.Context, user string, windowStart int64) (int, error) {
	return s.countAttempts("u:"+user, windowStart)
}

func (s *BoltStore) CountAddressAttempts(_ context.Context, addr string, windowStart int64) (int, error) {
	return s.countAttempts("a:"+addr, windowStart)
}

// reportKey encodes ts followed by seq, the bucket's persisted sequence
// number, as a tiebreaker for reports sharing a timestamp that stays unique
// across restarts.
func reportKey(ts int64, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(ts))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

func (s *BoltStore) AppendReport(_ context.Context, r report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAnomalyReports))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(reportKey(r.Timestamp, seq), data)
	})
}

func (s *BoltStore) RecentReports(_ context.Context, limit int) ([]report.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []report.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketAnomalyReports)).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var r report.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) PruneBefore(_ context.Context, cutoff int64) (int, error) {
	reportCutoff := cutoff - int64(ReportRetention.Seconds())
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		attempts := tx.Bucket([]byte(bucketLoginAttempts))
		if err := pruneAttempts(attempts, cutoff, &deleted); err != nil {
			return err
		}
		reports := tx.Bucket([]byte(bucketAnomalyReports))
		return pruneReports(reports, reportCutoff, &deleted)
	})
	return deleted, err
}

// pruneAttempts deletes entries with ts < cutoff, matching spec.md's
// prune_before(cutoff): an attempt logged in the same second as the cutoff
// is retained. Each attempt is stored under a user key and an address key;
// it is counted once, by its user key.
func pruneAttempts(b *bolt.Bucket, cutoff int64, deleted *int) error {
	c := b.Cursor()
	var toDelete [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		sep := len(k) - 8
		if sep < 0 {
			continue
		}
		ts := int64(binary.BigEndian.Uint64(k[sep:]))
		if ts < cutoff {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
		if hasPrefix(k, []byte("u:")) {
			*deleted++
		}
	}
	return nil
}

// pruneReports deletes entries with ts < cutoff, matching spec.md's
// prune_before(cutoff): a report logged in the same second as the cutoff is
// retained.
func pruneReports(b *bolt.Bucket, cutoff int64, deleted *int) error {
	c := b.Cursor()
	var toDelete [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if len(k) < 8 {
			continue
		}
		ts := int64(binary.BigEndian.Uint64(k[:8]))
		if ts >= cutoff {
			break // keys are sorted by ts; nothing older remains
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
		*deleted++
	}
	return nil
}

func (s *BoltStore) ClearAll(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketLastIP, bucketLastLocation, bucketLoginAttempts, bucketAnomalyReports} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}
