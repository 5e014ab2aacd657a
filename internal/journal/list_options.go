package journal

import (
	"strings"
	"time"
)

// SortOrder defines how records should be ordered when listing the journal.
type SortOrder int

const (
	// SortBySequenceDesc orders records by sequence descending (newest first).
	SortBySequenceDesc SortOrder = iota
	// SortBySequenceAsc orders records by sequence ascending (chain order).
	SortBySequenceAsc
)

// ListOptions controls how records are selected when querying a store.
type ListOptions struct {
	Limit       int
	Offset      int
	Kinds       []string
	Asset       string
	Actor       string
	OccurredGTE int64
	OccurredLTE int64
	Order       SortOrder
}

// applyDefaults sanitizes the options and fills in default values.
func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Kinds != nil {
		opts.Kinds = normalizeKinds(opts.Kinds)
	}
	if opts.Order != SortBySequenceAsc {
		opts.Order = SortBySequenceDesc
	}
	opts.Asset = strings.TrimSpace(opts.Asset)
	opts.Actor = strings.TrimSpace(opts.Actor)
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of records returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first n matching records before returning results.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithKinds filters records by the provided event kinds.
func WithKinds(kinds ...string) ListOption {
	return func(opts *ListOptions) {
		opts.Kinds = append(opts.Kinds[:0], kinds...)
	}
}

// WithAsset filters records by the asset label they concern.
func WithAsset(asset string) ListOption {
	return func(opts *ListOptions) {
		opts.Asset = asset
	}
}

// WithActor filters records by the acting identity (hex form).
func WithActor(actor string) ListOption {
	return func(opts *ListOptions) {
		opts.Actor = actor
	}
}

// WithOccurredSince filters records that occurred after the provided instant
// (inclusive).
func WithOccurredSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.OccurredGTE = 0
			return
		}
		opts.OccurredGTE = ts.Unix()
	}
}

// WithOccurredUntil filters records that occurred before the provided instant
// (inclusive).
func WithOccurredUntil(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		if ts.IsZero() {
			opts.OccurredLTE = 0
			return
		}
		opts.OccurredLTE = ts.Unix()
	}
}

// WithSortOrder changes the returned order of records.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

// buildListOptions applies option functions on top of defaults.
func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeKinds(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, kind := range input {
		kind = strings.TrimSpace(kind)
		if kind == "" {
			continue
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		result = append(result, kind)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
