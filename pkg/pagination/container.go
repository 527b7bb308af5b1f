package pagination

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"time"

	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pagination.
var (
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_pages_fetched_total",
		Help: "Total list pages fetched by page iterators",
	})

	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_pagination_passes_total",
		Help: "Total pagination passes by outcome (complete, error, abandoned)",
	}, []string{"outcome"})
)

// PageFetcher fetches list pages. It is implemented by *session.Session.
type PageFetcher interface {
	// GetItems fetches the first page of a list endpoint.
	GetItems(ctx context.Context, path string, params url.Values) (*session.Page, error)

	// GetPage fetches a page by the exact URL of a next link.
	GetPage(ctx context.Context, pageURL string) (*session.Page, error)
}

// timeouter is implemented by fetchers that carry an overall operation
// timeout (see session.Session.Timeout).
type timeouter interface {
	Timeout() time.Duration
}

// Decoder converts one raw list item into T.
type Decoder[T any] func(json.RawMessage) (T, error)

// Options configures a Container.
type Options struct {
	// Timeout bounds one full pass over every page, rate-limit waits
	// included. The deadline starts at the first Next call. Zero uses the
	// fetcher's overall timeout when it has one; otherwise a pass is
	// unbounded.
	Timeout time.Duration
}

// Container is an immutable description of a paginated listing. It owns no
// cursor and is safe to share and to iterate many times.
type Container[T any] struct {
	fetcher PageFetcher
	path    string
	params  url.Values
	decode  Decoder[T]
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a Container for the list endpoint at path. params is copied,
// so later changes by the caller do not affect the Container.
func New[T any](fetcher PageFetcher, path string, params url.Values, decode Decoder[T]) Container[T] {
	c := Container[T]{
		fetcher: fetcher,
		path:    path,
		params:  cloneValues(params),
		decode:  decode,
		logger:  logging.NewLogger("pagination"),
	}
	if t, ok := fetcher.(timeouter); ok {
		c.timeout = t.Timeout()
	}
	return c
}

// WithOptions returns a copy of c with opts applied.
func (c Container[T]) WithOptions(opts Options) Container[T] {
	if opts.Timeout > 0 {
		c.timeout = opts.Timeout
	}
	return c
}

// Path returns the list endpoint path.
func (c Container[T]) Path() string {
	return c.path
}

// Params returns a copy of the captured first-page parameters.
func (c Container[T]) Params() url.Values {
	return cloneValues(c.params)
}

// Iterator starts a new pass at page 1. Nothing is fetched until the first
// call to Next.
func (c Container[T]) Iterator(ctx context.Context) *PageIterator[T] {
	return &PageIterator[T]{
		container: c,
		parent:    ctx,
	}
}

// All returns the items of a new pass as a range-over-func sequence. A
// failure is yielded once as a zero item with a non-nil error, and ends the
// sequence. Breaking out of the loop abandons the remaining pages.
func (c Container[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := c.Iterator(ctx)
		defer it.Close()

		for {
			item, ok, err := it.Next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect runs a full pass and returns every item. On failure it returns
// the items read before the error along with the error.
func (c Container[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range c.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
