package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// ErrNoFixture reports a range without fixture data.
var ErrNoFixture = goerrors.New("no dashboard data for range", goerrors.CategoryNotFound).
	WithTextCode("NO_FIXTURE").
	WithCode(goerrors.CodeNotFound)

// FixtureFetcher serves overviews decoded from YAML.
type FixtureFetcher struct {
	overviews map[Range]Overview
	latency   time.Duration
	now       func() time.Time
}

var _ Fetcher = (*FixtureFetcher)(nil)

type fixtureFile struct {
	Overviews map[Range]Overview `yaml:"overviews"`
}

// NewFixtureFetcher returns a fetcher for the given overviews.
func NewFixtureFetcher(overviews map[Range]Overview) *FixtureFetcher {
	if overviews == nil {
		overviews = map[Range]Overview{}
	}
	return &FixtureFetcher{overviews: overviews, now: time.Now}
}

// LoadFixtures decodes a YAML document with an `overviews` map keyed by range.
func LoadFixtures(r io.Reader) (*FixtureFetcher, error) {
	var doc fixtureFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dashboard: decode fixtures: %w", err)
	}
	for key := range doc.Overviews {
		if _, err := ParseRange(string(key)); err != nil {
			return nil, fmt.Errorf("dashboard: fixture range %q: %w", key, err)
		}
	}
	return NewFixtureFetcher(doc.Overviews), nil
}

// LoadFixturesFile reads fixtures from a YAML file.
func LoadFixturesFile(path string) (*FixtureFetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dashboard: open fixtures: %w", err)
	}
	defer f.Close()
	return LoadFixtures(f)
}

// WithLatency delays every fetch by d, or until ctx is done.
func (f *FixtureFetcher) WithLatency(d time.Duration) *FixtureFetcher {
	f.latency = d
	return f
}

func (f *FixtureFetcher) WithClock(now func() time.Time) *FixtureFetcher {
	if now != nil {
		f.now = now
	}
	return f
}

func (f *FixtureFetcher) Fetch(ctx context.Context, r Range) (*Overview, error) {
	if f.latency > 0 {
		timer := time.NewTimer(f.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	overview, ok := f.overviews[r]
	if !ok {
		clone := ErrNoFixture.Clone()
		if clone == nil {
			return nil, ErrNoFixture
		}
		return nil, clone.WithMetadata(map[string]any{"range": r.String()})
	}

	overview.Range = r
	overview.Summary = append([]Metric(nil), overview.Summary...)
	overview.Trend = append([]TrendPoint(nil), overview.Trend...)
	overview.Listing = append([]ListingItem(nil), overview.Listing...)
	overview.GeneratedAt = f.now().UTC()
	return &overview, nil
}
