package radiobrowser

import (
	"strings"

	"github.com/wavehop/wavehop/internal/domain/station"
)

// Filter inspects a station and either passes it through (possibly
// rewritten) or drops it.
type Filter interface {
	// Name returns the filter name (used in logs).
	Name() string
	// Apply returns the (possibly modified) station and whether to keep it.
	Apply(s station.Station) (station.Station, bool)
}

// Chain applies filters in sequence. A station is dropped as soon as
// any filter rejects it.
type Chain struct {
	filters []Filter
}

// NewChain creates a filter chain from the given filters.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// DefaultChain returns the chain applied to every directory response:
// required-field check, https upgrade, and UUID dedup.
// The dedup filter is stateful, so a fresh chain is needed per call.
func DefaultChain() *Chain {
	return NewChain(
		&requiredFieldsFilter{},
		&secureStreamFilter{},
		newDedupeFilter(),
	)
}

// Apply runs all stations through the chain and returns the survivors.
func (c *Chain) Apply(in []station.Station) []station.Station {
	out := make([]station.Station, 0, len(in))
	for _, s := range in {
		keep := true
		for _, f := range c.filters {
			s, keep = f.Apply(s)
			if !keep {
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

// requiredFieldsFilter drops stations the player cannot address:
// missing identifier, name, or stream URL.
type requiredFieldsFilter struct{}

func (f *requiredFieldsFilter) Name() string { return "required_fields" }

func (f *requiredFieldsFilter) Apply(s station.Station) (station.Station, bool) {
	if s.ID == "" || s.Name == "" || s.StreamURL() == "" {
		return s, false
	}
	return s, true
}

// secureStreamFilter upgrades plain-http stream URLs to https and drops
// stations whose URLs use any other scheme. Browser clients cannot play
// mixed-content streams, so an http URL is only useful via its https
// equivalent.
type secureStreamFilter struct{}

func (f *secureStreamFilter) Name() string { return "secure_stream" }

func (f *secureStreamFilter) Apply(s station.Station) (station.Station, bool) {
	url := s.StreamURL()
	switch {
	case strings.HasPrefix(url, "https://"):
		return s, true
	case strings.HasPrefix(url, "http://"):
		s.ResolvedURL = "https://" + strings.TrimPrefix(url, "http://")
		return s, true
	default:
		return s, false
	}
}

// dedupeFilter drops stations whose UUID was already seen in this chain run.
type dedupeFilter struct {
	seen map[string]bool
}

func newDedupeFilter() *dedupeFilter {
	return &dedupeFilter{seen: make(map[string]bool)}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Apply(s station.Station) (station.Station, bool) {
	if f.seen[s.ID] {
		return s, false
	}
	f.seen[s.ID] = true
	return s, true
}
