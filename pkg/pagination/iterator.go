package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Futuramistic/Bot/pkg/session"
)

// PageIterator is the cursor of one pass over a Container. It is not safe
// for concurrent use.
type PageIterator[T any] struct {
	container Container[T]
	parent    context.Context

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	finished bool

	next   string
	buffer []json.RawMessage
	done   bool
	err    error

	pages   int
	yielded int
}

// Next returns the next item. ok is false once the listing is exhausted or
// the iterator is closed. A non-nil error ends the pass and is returned by
// every later call.
func (it *PageIterator[T]) Next() (item T, ok bool, err error) {
	if it.err != nil {
		return item, false, it.err
	}

	for len(it.buffer) == 0 {
		if it.done {
			it.finish("complete")
			return item, false, nil
		}
		if err := it.fetch(); err != nil {
			return item, false, it.fail(err)
		}
	}

	raw := it.buffer[0]
	it.buffer = it.buffer[1:]

	item, err = it.container.decode(raw)
	if err != nil {
		return item, false, it.fail(fmt.Errorf("decode %s item %d: %w", it.container.path, it.yielded, err))
	}

	it.yielded++
	return item, true, nil
}

// Close abandons the rest of the pass and releases its deadline. Next
// returns ok == false afterwards, unless the pass had already failed.
func (it *PageIterator[T]) Close() {
	it.finish("abandoned")
	it.done = true
	it.buffer = nil
	it.next = ""
}

// Pages returns the number of pages fetched so far.
func (it *PageIterator[T]) Pages() int {
	return it.pages
}

// fetch loads the next page into the buffer.
func (it *PageIterator[T]) fetch() error {
	c := it.container

	var (
		page *session.Page
		err  error
	)
	if !it.started {
		it.start()
		page, err = c.fetcher.GetItems(it.ctx, c.path, c.params)
	} else {
		page, err = c.fetcher.GetPage(it.ctx, it.next)
	}
	if err != nil {
		return err
	}

	it.pages++
	pagesFetched.Inc()

	c.logger.Debug().
		Str("path", c.path).
		Int("page", it.pages).
		Int("items", len(page.Items)).
		Bool("has_next", page.Next != "").
		Msg("Fetched page")

	it.buffer = page.Items
	it.next = page.Next
	if page.Next == "" || len(page.Items) == 0 {
		it.done = true
	}
	return nil
}

// start begins the pass deadline, if any.
func (it *PageIterator[T]) start() {
	it.started = true

	parent := it.parent
	if parent == nil {
		parent = context.Background()
	}
	if it.container.timeout > 0 {
		it.ctx, it.cancel = context.WithTimeout(parent, it.container.timeout)
		return
	}
	it.ctx = parent
}

func (it *PageIterator[T]) fail(err error) error {
	it.err = err
	it.done = true
	it.buffer = nil

	it.container.logger.Warn().
		Err(err).
		Str("path", it.container.path).
		Int("pages", it.pages).
		Int("items", it.yielded).
		Msg("Pagination pass failed")

	it.finish("error")
	return err
}

// finish records the outcome of a started pass once and releases its
// deadline.
func (it *PageIterator[T]) finish(outcome string) {
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
	if !it.started || it.finished {
		return
	}
	it.finished = true
	passesTotal.WithLabelValues(outcome).Inc()
}
