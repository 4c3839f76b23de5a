package secrets

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/watchparty/backend/internal/metrics"
)

// Registration binds a rotation cache key to its Secrets Manager secret name.
type Registration struct {
	Key         string
	SecretName  string
	Description string
}

// Well-known rotation cache keys.
const (
	KeyRDS         = "rds"
	KeyValkey      = "valkey"
	KeySESSMTP     = "ses_smtp"
	KeyStripe      = "stripe"
	KeyGoogleOAuth = "google_oauth"
)

// Status describes the rotation service for introspection. It carries no
// references into the live cache.
type Status struct {
	Running         bool
	Interval        time.Duration
	CachedKeys      []string
	LastRotation    map[string]time.Time
	NextRotationETA time.Duration
}

type entry struct {
	payload   map[string]string
	fetchedAt time.Time
}

// RotatorOptions tune the rotation service.
type RotatorOptions struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	StopTimeout  time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Rotator keeps a live, best-effort-fresh copy of registered platform secrets.
// Reads are concurrent; the refresh loop fetches outside the lock and only
// locks to commit, so a slow secret store never blocks Get callers.
type Rotator struct {
	store        Store
	registry     []Registration
	interval     time.Duration
	fetchTimeout time.Duration
	stopTimeout  time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRotator constructs the rotation service. It does not start the background
// loop; the composition root owns the Start/Stop lifecycle.
func NewRotator(store Store, registry []Registration, opts RotatorOptions) *Rotator {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Rotator{
		store:        store,
		registry:     registry,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		stopTimeout:  opts.StopTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          time.Now,
		entries:      make(map[string]entry),
	}
}

// Start launches the background refresh loop. Calling Start on a running
// rotator is a no-op; exactly one loop exists at a time.
func (r *Rotator) Start() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.running {
		r.logger.Warn("credential rotation already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done

	go r.loop(ctx, done)

	r.logger.Info("credential rotation started", "interval", r.interval, "keys", len(r.registry))
}

// Stop signals the loop to exit and waits up to the configured stop timeout.
// Safe to call on a rotator that was never started.
func (r *Rotator) Stop() {
	r.stateMu.Lock()
	if !r.running {
		r.stateMu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	done := r.done
	r.stateMu.Unlock()

	select {
	case <-done:
		r.logger.Info("credential rotation stopped")
	case <-time.After(r.stopTimeout):
		r.logger.Warn("credential rotation did not stop in time", "timeout", r.stopTimeout)
	}
}

// Get returns the most recent successful payload for a key. It reports
// found=false only when the key has never been fetched successfully. The
// returned map is a copy; callers may mutate it freely.
func (r *Rotator) Get(key string) (map[string]string, bool) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return maps.Clone(e.payload), true
}

// ForceRotate synchronously runs one full refresh cycle on the calling
// goroutine. Intended for the admin surface and process startup.
func (r *Rotator) ForceRotate(ctx context.Context) {
	r.rotateAll(ctx)
}

// Status reports the rotation service state without side effects.
func (r *Rotator) Status() Status {
	r.stateMu.Lock()
	running := r.running
	r.stateMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		Running:      running,
		Interval:     r.interval,
		CachedKeys:   make([]string, 0, len(r.entries)),
		LastRotation: make(map[string]time.Time, len(r.entries)),
	}

	var oldest time.Time
	for key, e := range r.entries {
		st.CachedKeys = append(st.CachedKeys, key)
		st.LastRotation[key] = e.fetchedAt
		if oldest.IsZero() || e.fetchedAt.Before(oldest) {
			oldest = e.fetchedAt
		}
	}
	sort.Strings(st.CachedKeys)

	if !oldest.IsZero() {
		if eta := r.interval - r.now().Sub(oldest); eta > 0 {
			st.NextRotationETA = eta
		}
	}

	return st
}

func (r *Rotator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// The composition root warms the cache with a synchronous ForceRotate
	// before Start; don't fetch everything a second time in that case.
	if !r.warm() {
		r.rotateAll(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.rotateAll(ctx)
		}
	}
}

func (r *Rotator) warm() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) > 0
}

// rotateAll refreshes every registered secret sequentially. Fetching one key
// at a time avoids bursting the secret store, and a failure on one key never
// aborts the rest of the cycle.
func (r *Rotator) rotateAll(ctx context.Context) {
	for _, reg := range r.registry {
		if ctx.Err() != nil {
			return
		}
		r.rotateOne(ctx, reg)
	}
}

func (r *Rotator) rotateOne(ctx context.Context, reg Registration) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	payload, err := r.store.GetSecret(fetchCtx, reg.SecretName)
	now := r.now()

	if err != nil {
		r.metrics.RotationFetch(reg.Key, false, 0)

		r.mu.RLock()
		cached, ok := r.entries[reg.Key]
		r.mu.RUnlock()
		if ok {
			r.logger.Warn("secret fetch failed, serving cached value",
				"key", reg.Key, "secret", reg.SecretName, "cachedAt", cached.fetchedAt, "error", err)
		} else {
			r.logger.Warn("secret fetch failed, no cached value available",
				"key", reg.Key, "secret", reg.SecretName, "error", err)
		}
		return
	}

	r.mu.Lock()
	r.entries[reg.Key] = entry{payload: maps.Clone(payload), fetchedAt: now}
	r.mu.Unlock()

	r.metrics.RotationFetch(reg.Key, true, float64(now.Unix()))
	r.logger.Info("rotated credential", "key", reg.Key, "description", reg.Description)
}
