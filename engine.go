package binarystore

import (
	"context"
	"sync"
	"time"

	internalaudit "github.com/E8A281E6ACA2/BinaryStore/internal/audit"
	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/rate"
	"github.com/E8A281E6ACA2/BinaryStore/password"
	"github.com/E8A281E6ACA2/BinaryStore/permission"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Engine runs every authentication operation of the admin portal.
//
// Engine is safe for concurrent use. Build one with [New] and release it
// with [Engine.Close].
type Engine struct {
	config        Config
	roleManager   *permission.RoleManager
	userProvider  UserProvider
	sessionStore  session.Store
	sessionLister session.Lister
	resetStore    ResetStore
	rateLimiter   rate.Limiter
	memoryLimiter *rate.Memory
	notifier      Notifier
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	passwordHash  *password.Scrypt
	dummyHash     string
	hashSlots     chan struct{}
	flows         internalflows.Service

	now func() time.Time

	background    sync.WaitGroup
	touches       sync.WaitGroup
	notifications sync.WaitGroup
	stop          chan struct{}

	// closing guards closed and every WaitGroup.Add so Close never waits
	// while a new goroutine is being registered.
	closing   sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Close stops background work, waits for pending session touches and
// reset notifications, and flushes the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closing.Lock()
		e.closed = true
		e.closing.Unlock()

		close(e.stop)
		e.touches.Wait()
		e.notifications.Wait()
		e.background.Wait()
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(ctx context.Context, err error, msg string) {
	log.Warn(ctx).Err(err).Msg(msg)
}

// datastoreContext bounds a single user, session or reset store call.
func (e *Engine) datastoreContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Datastore.OperationTimeout)
}

// acquireHashSlot blocks until a key derivation slot is free or ctx ends.
func (e *Engine) acquireHashSlot(ctx context.Context) error {
	select {
	case e.hashSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseHashSlot() {
	<-e.hashSlots
}

func (e *Engine) hashPassword(ctx context.Context, pw string) (string, error) {
	if e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	if err := e.acquireHashSlot(ctx); err != nil {
		return "", err
	}
	defer e.releaseHashSlot()
	return e.passwordHash.Hash(pw)
}

func (e *Engine) verifyPassword(ctx context.Context, pw, hash string) (bool, error) {
	if e.passwordHash == nil {
		return false, ErrEngineNotReady
	}
	if err := e.acquireHashSlot(ctx); err != nil {
		return false, err
	}
	defer e.releaseHashSlot()
	return e.passwordHash.Verify(pw, hash), nil
}

// goBackground runs fn on wg unless the engine is closing. Close waits
// for both groups.
func (e *Engine) goBackground(wg *sync.WaitGroup, fn func()) bool {
	e.closing.RLock()
	if e.closed {
		e.closing.RUnlock()
		return false
	}
	wg.Add(1)
	e.closing.RUnlock()

	go func() {
		defer wg.Done()
		fn()
	}()
	return true
}

func (e *Engine) startLimiterSweep(window time.Duration) {
	interval := window / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	e.goBackground(&e.background, func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				if n := e.memoryLimiter.Sweep(); n > 0 {
					log.Debug(context.Background()).Int("entries", n).Msg("swept expired limiter entries")
				}
			}
		}
	})
}

// Allowed reports whether role grants perm.
func (e *Engine) Allowed(role Role, perm string) bool {
	if e == nil || e.roleManager == nil {
		return false
	}
	return e.roleManager.Allowed(string(role), perm)
}

func (e *Engine) flowDeps() internalflows.Deps {
	return internalflows.Deps{
		Login:         e.loginFlowDeps(),
		Validate:      e.validateFlowDeps(),
		Logout:        e.logoutFlowDeps(),
		PasswordReset: e.passwordResetFlowDeps(),
		Account:       e.accountFlowDeps(),
	}
}
