package dashboard

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-admin-auth"
)

// Loader serializes fetches so only the latest request publishes.
type Loader struct {
	fetcher Fetcher
	logger  auth.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	latest *Overview
}

func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher, logger: auth.NopLogger()}
}

func (l *Loader) WithLogger(logger auth.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Load cancels any fetch in flight and fetches r. When a newer Load starts
// before this one finishes, the result is discarded and ErrCancelled is
// returned.
func (l *Loader) Load(ctx context.Context, r Range) (*Overview, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	overview, err := l.fetcher.Fetch(ctx, r)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		l.logger.Debug("dashboard fetch superseded", "range", r.String())
		return nil, cancelled(r, err)
	}
	l.cancel = nil

	if err != nil {
		if ctx.Err() != nil && IsCancelled(err) {
			return nil, cancelled(r, err)
		}
		return nil, err
	}
	if overview == nil {
		overview = &Overview{Range: r}
	}

	l.latest = overview
	return overview, nil
}

// Latest returns the last published overview.
func (l *Loader) Latest() (*Overview, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.latest != nil
}

// Cancel aborts the fetch in flight, if any.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
