package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Address is a structured facility address.
type Address struct {
	Street string
	City   string
	County string
	State  string
	Zip    string
}

// cardinalSuffixes are street suffixes that trip up the geocoder on some TRI
// addresses; the relaxation chain retries without them.
var cardinalSuffixes = []string{"NE", "SE", "NW", "SW"}

// GeocodeAddress resolves a structured address, relaxing the query step by
// step when the geocoder finds nothing: the full address first, then without
// the county, then — if the street ends in a cardinal-direction suffix — with
// the suffix dropped and the county restored. Each relaxation runs at most
// once and the first match short-circuits. When every variant misses, the
// result is unmatched, not an error.
func (c *Client) GeocodeAddress(ctx context.Context, addr Address) (*Result, error) {
	for _, query := range addr.variants() {
		result, err := c.Geocode(ctx, query)
		if err != nil {
			return nil, err
		}
		if result.Matched {
			return result, nil
		}
		zap.L().Debug("geocode variant not found", zap.String("query", query))
	}
	return &Result{Matched: false}, nil
}

// variants returns the relaxation chain for the address, deduplicated in
// order.
func (a Address) variants() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(q string) {
		if q == "" {
			return
		}
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	add(a.query(true))
	add(a.query(false))

	if suffix := cardinalSuffix(a.Street); suffix != "" {
		relaxed := a
		relaxed.Street = strings.TrimSpace(strings.TrimSuffix(a.Street, suffix))
		add(relaxed.query(true))
	}

	return out
}

// query joins the non-empty address components into a single free-text query.
func (a Address) query(withCounty bool) string {
	parts := []string{a.Street, a.City}
	if withCounty {
		parts = []string{a.Street, a.City, a.County}
	}
	parts = append(parts, a.State, a.Zip)

	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// cardinalSuffix returns the trailing cardinal-direction token of the street,
// or "" when there is none.
func cardinalSuffix(street string) string {
	street = strings.TrimSpace(street)
	for _, suffix := range cardinalSuffixes {
		if strings.HasSuffix(street, " "+suffix) {
			return suffix
		}
	}
	return ""
}
