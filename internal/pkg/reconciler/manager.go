package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursepass/coursepass/internal/pkg/cache"
)

const sweepLockKey = "sweep:lock"

// ErrSweepRunning is returned when another sweep currently holds the lock.
var ErrSweepRunning = errors.New("a reconciliation sweep is already running")

// Manager drives recurring sweeps: one on start and one per interval.
// Webhook processing is never blocked by a running sweep; the only shared
// state is per-record row serialization in the ledger.
type Manager struct {
	reconciler *Reconciler
	interval   time.Duration
	ticker     *time.Ticker
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewManager creates a sweep manager.
func NewManager(r *Reconciler, interval time.Duration) *Manager {
	return &Manager{reconciler: r, interval: interval}
}

// Start launches the background sweep loop. The first sweep runs
// immediately so a restart picks up anything that expired while the
// process was down.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.ticker = time.NewTicker(m.interval)

	log.Infof("[Reconciler] Manager starting (interval=%s)", m.interval)
	m.wg.Add(1)
	go m.loop()
}

// Stop halts the loop. A sweep in flight finishes its committed status
// changes; the next sweep simply resumes from ListExpired.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	close(m.stopCh)
	m.wg.Wait()
	log.Info("[Reconciler] Manager stopped")
}

func (m *Manager) loop() {
	defer m.wg.Done()

	m.sweep()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	if _, err := m.RunLocked(context.Background(), time.Now()); err != nil && !errors.Is(err, ErrSweepRunning) {
		log.Errorf("[Reconciler] Sweep failed: %v", err)
	}
}

// RunLocked runs one sweep under the Redis lock so interval-driven and
// operator-triggered sweeps never overlap. The lock is best effort: if
// Redis is down the sweep still runs, since per-record guards keep a
// double run harmless.
func (m *Manager) RunLocked(ctx context.Context, now time.Time) (Summary, error) {
	acquired, err := cache.SetNX(sweepLockKey, now.Unix(), lockTTL(m.interval))
	if err != nil {
		log.Warnf("[Reconciler] Sweep lock unavailable, continuing without it: %v", err)
	} else if !acquired {
		return Summary{}, ErrSweepRunning
	}
	locked := err == nil && acquired
	defer func() {
		if locked {
			_ = cache.Delete(sweepLockKey)
		}
	}()

	return m.reconciler.RunSweep(ctx, now)
}

// lockTTL pads the lock expiry beyond the sweep interval so a sweep that
// outlives one interval keeps its mutual exclusion. The TTL still bounds
// how long a crashed holder can block new sweeps.
func lockTTL(interval time.Duration) time.Duration {
	ttl := 2 * interval
	if ttl < 10*time.Minute {
		return 10 * time.Minute
	}
	return ttl
}
