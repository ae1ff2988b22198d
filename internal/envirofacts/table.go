package envirofacts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tri-cli/internal/tabular"
)

// Table is a handle on a remote Envirofacts table. The row count and window
// plan are computed once at open and never refreshed; if the remote table
// mutates afterwards, fetches over the stale plan may miss or duplicate rows.
type Table struct {
	client    *Client
	name      string
	tableURL  string
	totalRows int
	windows   []Window
}

// Filters selects rows from a table. Equals entries are applied server-side as
// request path segments; Within entries are applied client-side as membership
// tests after the server-side result is complete. A row survives only if it
// satisfies every entry.
type Filters struct {
	Equals map[string]string
	Within map[string][]string
}

var columnNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenTable resolves the table's total row count and precomputes its window
// plan. The returned handle is immutable; reopen to observe remote changes.
func (c *Client) OpenTable(ctx context.Context, name string) (*Table, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !columnNamePattern.MatchString(name) {
		return nil, eris.Errorf("envirofacts: invalid table name %q", name)
	}

	t := &Table{
		client:   c,
		name:     name,
		tableURL: c.baseURL + "/" + name,
	}

	total, err := t.fetchRowCount(ctx)
	if err != nil {
		return nil, err
	}
	t.totalRows = total
	t.windows = PlanWindows(total, PageCap)

	zap.L().Debug("opened table",
		zap.String("table", name),
		zap.Int("rows", total),
		zap.Int("windows", len(t.windows)),
	)

	return t, nil
}

// Name returns the upper-cased table name.
func (t *Table) Name() string { return t.name }

// RowCount returns the total row count observed when the table was opened.
func (t *Table) RowCount() int { return t.totalRows }

// Windows returns the precomputed window plan covering the whole table.
func (t *Table) Windows() []Window { return t.windows }

// countResponse is the first record of a COUNT/JSON reply.
type countResponse struct {
	TotalQueryResults int `json:"TOTALQUERYRESULTS"`
}

func (t *Table) fetchRowCount(ctx context.Context) (int, error) {
	body, err := t.client.get(ctx, t.tableURL+"/COUNT/JSON")
	if err != nil {
		return 0, eris.Wrap(err, "envirofacts: count query")
	}

	var records []countResponse
	if err := json.Unmarshal(body, &records); err != nil {
		return 0, eris.Wrap(err, "envirofacts: parse count response")
	}
	if len(records) == 0 {
		return 0, eris.Errorf("envirofacts: empty count response for %s", t.name)
	}
	return records[0].TotalQueryResults, nil
}

// FetchRange fetches one window of rows as CSV from target, or from the
// canonical table URL when target is empty. Any trailing format segment on
// target is replaced by the rows segment.
func (t *Table) FetchRange(ctx context.Context, w Window, target string) (*tabular.Frame, error) {
	if target == "" {
		target = t.tableURL
	}

	body, err := t.client.get(ctx, rangeURL(target, w))
	if err != nil {
		return nil, eris.Wrapf(err, "envirofacts: fetch rows %s", w)
	}

	frame, err := tabular.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "envirofacts: decode rows %s", w)
	}
	return frame, nil
}

// FetchAll fetches the complete table. Tables that fit in a single page are
// fetched with one request; larger tables fan out across the window plan in
// parallel, bounded by the client's pool size, and are concatenated in window
// order regardless of completion order.
func (t *Table) FetchAll(ctx context.Context) (*tabular.Frame, error) {
	return t.fetchAllFrom(ctx, t.tableURL)
}

func (t *Table) fetchAllFrom(ctx context.Context, target string) (*tabular.Frame, error) {
	if t.totalRows < overflowCount {
		return t.FetchRange(ctx, Window{First: 0, Last: t.totalRows}, target)
	}

	results := make([]*tabular.Frame, len(t.windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.client.poolSize)

	for i, w := range t.windows {
		i, w := i, w
		g.Go(func() error {
			frame, err := t.FetchRange(gctx, w, target)
			if err != nil {
				return err
			}
			results[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &tabular.Frame{}
	for _, frame := range results {
		if err := merged.Append(frame); err != nil {
			return nil, eris.Wrap(err, "envirofacts: merge windows")
		}
	}
	return merged, nil
}

// Filter fetches the rows matching the filter spec. Equality filters are
// pushed to the server as path segments. A server-side result of exactly
// overflowCount rows (the padded truncation signal) or exactly zero rows
// (either no matches or truncation before any matching row) escalates to a
// full scan over the filtered URL to guarantee completeness. Membership
// filters are then applied client-side, intersecting.
func (t *Table) Filter(ctx context.Context, filters Filters) (*tabular.Frame, error) {
	if err := validateFilterColumns(filters); err != nil {
		return nil, err
	}

	target := t.filteredURL(filters.Equals)

	var frame *tabular.Frame
	var err error
	if len(filters.Equals) == 0 {
		frame, err = t.fetchAllFrom(ctx, target)
		if err != nil {
			return nil, err
		}
	} else {
		body, getErr := t.client.get(ctx, target+"/CSV")
		if getErr != nil {
			return nil, eris.Wrap(getErr, "envirofacts: filtered fetch")
		}
		frame, err = tabular.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "envirofacts: decode filtered rows")
		}

		if frame.Len() == overflowCount || frame.Len() == 0 {
			zap.L().Debug("ambiguous filtered result, escalating to full scan",
				zap.String("table", t.name),
				zap.Int("rows", frame.Len()),
			)
			frame, err = t.fetchAllFrom(ctx, target)
			if err != nil {
				return nil, err
			}
		}
	}

	for _, col := range sortedKeys(filters.Within) {
		frame, err = frame.FilterIn(col, filters.Within[col])
		if err != nil {
			return nil, eris.Wrap(err, "envirofacts: membership filter")
		}
	}

	return frame, nil
}

func validateFilterColumns(filters Filters) error {
	for col := range filters.Equals {
		if !columnNamePattern.MatchString(col) {
			return eris.Errorf("envirofacts: invalid filter column %q", col)
		}
	}
	for col := range filters.Within {
		if !columnNamePattern.MatchString(col) {
			return eris.Errorf("envirofacts: invalid filter column %q", col)
		}
	}
	return nil
}

// filteredURL appends each equality filter as /COL/VALUE path segments in
// deterministic column order.
func (t *Table) filteredURL(equals map[string]string) string {
	segments := []string{t.tableURL}
	for _, col := range sortedKeys(equals) {
		segments = append(segments, strings.ToUpper(col), escapeFilterValue(equals[col]))
	}
	return strings.Join(segments, "/")
}

// escapeFilterValue path-escapes a filter value. Hyphens are escaped too; the
// service treats a bare hyphen in a value segment as a syntax character.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), "-", "%2D")
}

// rangeURL appends the window as a rows segment, replacing any trailing
// format segment on the target.
func rangeURL(target string, w Window) string {
	target = strings.TrimSuffix(target, "/")
	target = strings.TrimSuffix(target, "/CSV")
	return target + "/rows/" + w.String() + "/CSV/"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
