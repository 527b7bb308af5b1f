package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tomnomnom/linkheader"
)

// Page is one page of a list response.
type Page struct {
	// Items are the page's JSON objects in server order.
	Items []json.RawMessage

	// Next is the absolute URL of the rel="next" link, or empty on the
	// final page.
	Next string

	StatusCode int
}

// GetItems performs a GET against a list endpoint and returns the first page
// without following the pagination link. Walking the remaining pages is the
// caller's job (see package pagination).
func (s *Session) GetItems(ctx context.Context, path string, params url.Values) (*Page, error) {
	resp, err := s.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: params})
	if err != nil {
		return nil, err
	}
	return toPage(resp, path)
}

// GetPage fetches a page by the exact URL of a previous page's next link.
// The link already encodes the original query parameters.
func (s *Session) GetPage(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := s.Do(ctx, Request{Method: http.MethodGet, Path: pageURL})
	if err != nil {
		return nil, err
	}
	return toPage(resp, pageURL)
}

func toPage(resp *Response, path string) (*Page, error) {
	items, err := extractItems(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	return &Page{
		Items:      items,
		Next:       nextLink(resp.Header, resp.URL),
		StatusCode: resp.StatusCode,
	}, nil
}

// extractItems accepts either {"items": [...]} or a bare array.
func extractItems(body json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Items *[]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if envelope.Items == nil {
		return nil, ErrMissingItems
	}
	return *envelope.Items, nil
}

// nextLink extracts the rel="next" target from RFC 5988 Link headers,
// resolved against the URL of the request that produced them.
func nextLink(header http.Header, requestURL *url.URL) string {
	values := header.Values("Link")
	if len(values) == 0 {
		return ""
	}

	next := linkheader.ParseMultiple(values).FilterByRel("next")
	if len(next) == 0 || next[0].URL == "" {
		return ""
	}

	if requestURL == nil {
		return next[0].URL
	}
	resolved, err := requestURL.Parse(next[0].URL)
	if err != nil {
		return next[0].URL
	}
	return resolved.String()
}
