package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pgvault/internal/types"
	"pgvault/logger"
)

const (
	fileName   = ".pgvault.lock"
	defaultTTL = 2 * time.Hour
)

type (
	// Lease is a cooperative lock on the backup directory. It keeps two
	// runs from interleaving dump, restore and prune bookkeeping; nothing
	// enforces it beyond convention. A lease past its TTL is treated as
	// left behind by a crashed run and replaced.
	Lease struct {
		dir string
		ttl time.Duration
		now func() time.Time
	}

	leaseRecord struct {
		PID       int       `json:"pid"`
		Acquired  time.Time `json:"acquired_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}
)

type Option func(*Lease)

func WithTTL(ttl time.Duration) Option {
	return func(l *Lease) { l.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(l *Lease) { l.now = now }
}

func New(dir string, opts ...Option) *Lease {
	l := &Lease{dir: dir, ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lease) path() string {
	return filepath.Join(l.dir, fileName)
}

// Acquire takes the lease or fails with ErrLockHeld when a live lease from
// another run exists. The returned release func removes the lease.
func (l *Lease) Acquire() (func(), error) {
	if existing, err := l.read(); err == nil {
		if l.now().Before(existing.ExpiresAt) {
			return nil, errors.Wrapf(types.ErrLockHeld, "held by pid %d until %s",
				existing.PID, existing.ExpiresAt.Format(time.RFC3339))
		}
		logger.Warn("replacing stale backup directory lease",
			zap.Int("pid", existing.PID),
			zap.Time("expired_at", existing.ExpiresAt))
		_ = os.Remove(l.path())
	}

	record := leaseRecord{
		PID:       os.Getpid(),
		Acquired:  l.now(),
		ExpiresAt: l.now().Add(l.ttl),
	}
	body, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	fi, err := os.OpenFile(l.path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrap(types.ErrLockHeld, "lease appeared while acquiring")
		}
		return nil, errors.Wrap(err, "failed to create lease file")
	}
	if _, err := fi.Write(body); err != nil {
		_ = fi.Close()
		_ = os.Remove(l.path())
		return nil, err
	}
	if err := fi.Close(); err != nil {
		return nil, err
	}

	release := func() {
		if err := os.Remove(l.path()); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to release backup directory lease", zap.Error(err))
		}
	}
	return release, nil
}

func (l *Lease) read() (leaseRecord, error) {
	body, err := os.ReadFile(l.path())
	if err != nil {
		return leaseRecord{}, err
	}
	var record leaseRecord
	if err := json.Unmarshal(body, &record); err != nil {
		// unreadable lease counts as stale
		return leaseRecord{ExpiresAt: time.Time{}}, nil
	}
	return record, nil
}
