// Package realtime carries row-change events from the durable store to
// subscribed sessions. Subscriptions are scoped by table, an optional
// equality filter and the event kinds of interest.
package realtime

import (
	"context"
	"fmt"
	"strings"

	"concept-review-be/pkg/events"
)

// Filter is an equality filter on one column, e.g. "item_key=eq.B0C123".
type Filter struct {
	Column string
	Value  string
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s=eq.%s", f.Column, f.Value)
}

// ParseFilter accepts the "column=eq.value" form; an empty string is no filter.
func ParseFilter(s string) (Filter, error) {
	if strings.TrimSpace(s) == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || !strings.HasPrefix(rest, "eq.") || column == "" {
		return Filter{}, fmt.Errorf("unsupported filter %q", s)
	}
	return Filter{Column: column, Value: strings.TrimPrefix(rest, "eq.")}, nil
}

type Subscription struct {
	Table  events.Table
	Filter Filter
	// Kinds limits delivery to these event kinds; empty means all.
	Kinds []events.Kind
}

// Matches reports whether a change belongs to this subscription.
func (s Subscription) Matches(c events.Change) bool {
	if c == nil || c.Table() != s.Table {
		return false
	}
	if len(s.Kinds) > 0 {
		found := false
		for _, k := range s.Kinds {
			if k == c.Kind() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.Filter.IsZero() {
		return true
	}
	v, ok := c.Field(s.Filter.Column)
	return ok && v == s.Filter.Value
}

type Handler func(c events.Change)

// Unsubscribe stops delivery; it is safe to call more than once.
type Unsubscribe func()

type Publisher interface {
	Publish(ctx context.Context, c events.Change) error
}

type Bus interface {
	Publisher
	Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error)
	Close() error
}

func topicFor(prefix string, table events.Table) string {
	return prefix + "." + string(table)
}
