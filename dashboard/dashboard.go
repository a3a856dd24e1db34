package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	goerrors "github.com/goliatone/go-errors"
)

// Range is the time window of an Overview.
type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

// DefaultRange is used when a request names no range.
const DefaultRange = Range7d

// Ranges returns the supported ranges.
func Ranges() []Range {
	return []Range{Range7d, Range30d}
}

// ParseRange parses "7d" or "30d". An empty value yields DefaultRange.
func ParseRange(raw string) (Range, error) {
	switch r := Range(strings.TrimSpace(raw)); r {
	case "":
		return DefaultRange, nil
	case Range7d, Range30d:
		return r, nil
	default:
		return "", auth.NewValidationError("unsupported range", map[string]string{
			"range": "must be one of 7d, 30d",
		})
	}
}

// Days is the number of days covered by the range.
func (r Range) Days() int {
	switch r {
	case Range30d:
		return 30
	case Range7d:
		return 7
	default:
		return 0
	}
}

func (r Range) String() string {
	return string(r)
}

// Metric is one summary figure.
type Metric struct {
	Key   string  `json:"key" yaml:"key"`
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
	// Delta is the change against the previous window, as a fraction.
	Delta float64 `json:"delta" yaml:"delta"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// TrendPoint is one sample of the trend series.
type TrendPoint struct {
	Date  time.Time `json:"date" yaml:"date"`
	Value float64   `json:"value" yaml:"value"`
}

// ListingItem is one row of the overview listing.
type ListingItem struct {
	ID       string  `json:"id" yaml:"id"`
	Title    string  `json:"title" yaml:"title"`
	Subtitle string  `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Value    float64 `json:"value" yaml:"value"`
}

// Overview is the result of a fetch.
type Overview struct {
	Range       Range         `json:"range" yaml:"range"`
	Summary     []Metric      `json:"summary" yaml:"summary"`
	Trend       []TrendPoint  `json:"trend" yaml:"trend"`
	Listing     []ListingItem `json:"listing" yaml:"listing"`
	GeneratedAt time.Time     `json:"generatedAt" yaml:"generated_at"`
}

// Fetcher reads an Overview. Implementations must return promptly once ctx
// is done.
type Fetcher interface {
	Fetch(ctx context.Context, r Range) (*Overview, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, r Range) (*Overview, error)

func (f FetcherFunc) Fetch(ctx context.Context, r Range) (*Overview, error) {
	return f(ctx, r)
}

const TextCodeCancelled = "fetch_cancelled"

// ErrCancelled reports a fetch that was cancelled or superseded. It is never
// a user visible failure.
var ErrCancelled = goerrors.New("fetch cancelled", goerrors.CategoryOperation).
	WithTextCode(TextCodeCancelled).
	WithCode(499)

// IsCancelled reports whether err is ErrCancelled or a context cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.TextCode == TextCodeCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func cancelled(r Range, cause error) error {
	clone := ErrCancelled.Clone()
	if clone == nil {
		return ErrCancelled
	}
	if cause != nil {
		clone.Source = cause
	}
	return clone.WithMetadata(map[string]any{"range": r.String()})
}
