// Package dashboard holds the data fetch contract used by the admin console
// dashboard views: a time range goes in, an Overview of summary metrics, a
// trend series and a listing comes out.
//
// Loader wraps a Fetcher so that a new request cancels the one in flight and
// a superseded result is never published. Callers recognise the superseded
// case with IsCancelled and drop it silently.
package dashboard
