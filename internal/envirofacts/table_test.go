package envirofacts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestLog records every request URI the mock server sees.
type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, uri)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

func (l *requestLog) matching(substr string) []string {
	var out []string
	for _, uri := range l.all() {
		if strings.Contains(uri, substr) {
			out = append(out, uri)
		}
	}
	return out
}

// newTableServer wraps handler with request logging and serves COUNT/JSON for
// the named table.
func newTableServer(t *testing.T, table string, rowCount int, handler http.HandlerFunc) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.RequestURI)
		if r.URL.Path == "/"+table+"/COUNT/JSON" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `[{"TOTALQUERYRESULTS": %d}]`, rowCount)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func newTestClient(baseURL string) *Client {
	return NewClient(WithBaseURL(baseURL), WithRateLimit(10000), WithPoolSize(4))
}

// rowsCSV builds a single-column CSV body of n rows labelled from offset.
func rowsCSV(n, offset int) string {
	var b strings.Builder
	b.WriteString("ROW_ID\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "r%d\n", offset+i)
	}
	return b.String()
}

func TestOpenTable_CountAndWindowPlan(t *testing.T) {
	srv, log := newTableServer(t, "TRI_FACILITY", 25000, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "tri_facility")
	require.NoError(t, err)

	assert.Equal(t, "TRI_FACILITY", table.Name())
	assert.Equal(t, 25000, table.RowCount())
	require.Len(t, table.Windows(), 3)
	assert.Equal(t, Window{First: 20000, Last: 25000}, table.Windows()[2])
	assert.Len(t, log.matching("/COUNT/JSON"), 1)
}

func TestOpenTable_InvalidName(t *testing.T) {
	_, err := newTestClient("http://unused").OpenTable(context.Background(), "no/slashes allowed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestFetchAll_SinglePageIssuesOneFetch(t *testing.T) {
	srv, log := newTableServer(t, "TRI_CHEM_INFO", 3, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/TRI_CHEM_INFO/rows/0:3/CSV/", r.URL.Path)
		fmt.Fprint(w, rowsCSV(4, 0))
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_CHEM_INFO")
	require.NoError(t, err)

	frame, err := table.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, frame.Len())
	assert.Len(t, log.matching("/rows/"), 1)
}

func TestFetchAll_ParallelWindowsMergeInOrder(t *testing.T) {
	sizes := map[string]int{
		"/TRI_FACILITY/rows/0:9999/CSV/":      10000,
		"/TRI_FACILITY/rows/10000:19999/CSV/": 10000,
		"/TRI_FACILITY/rows/20000:25000/CSV/": 5001,
	}
	offsets := map[string]int{
		"/TRI_FACILITY/rows/0:9999/CSV/":      0,
		"/TRI_FACILITY/rows/10000:19999/CSV/": 10000,
		"/TRI_FACILITY/rows/20000:25000/CSV/": 20000,
	}
	srv, log := newTableServer(t, "TRI_FACILITY", 25000, func(w http.ResponseWriter, r *http.Request) {
		n, ok := sizes[r.URL.Path]
		require.True(t, ok, "unexpected path %s", r.URL.Path)
		fmt.Fprint(w, rowsCSV(n, offsets[r.URL.Path]))
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, log.matching("/rows/"), 3)
	require.Equal(t, 25001, frame.Len())
	// Window order, not completion order.
	assert.Equal(t, "r0", frame.Rows[0][0])
	assert.Equal(t, "r9999", frame.Rows[9999][0])
	assert.Equal(t, "r10000", frame.Rows[10000][0])
	assert.Equal(t, "r20000", frame.Rows[20000][0])
	assert.Equal(t, "r25000", frame.Rows[25000][0])
}

func TestFetchRange_ReplacesFormatSegment(t *testing.T) {
	srv, _ := newTableServer(t, "TRI_FACILITY", 10, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/TRI_FACILITY/STATE_ABBR/SC/rows/0:5/CSV/", r.URL.Path)
		fmt.Fprint(w, rowsCSV(6, 0))
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	target := srv.URL + "/TRI_FACILITY/STATE_ABBR/SC/CSV"
	frame, err := table.FetchRange(context.Background(), Window{First: 0, Last: 5}, target)
	require.NoError(t, err)
	assert.Equal(t, 6, frame.Len())
}

func TestFilter_SingleValueEscapedAndNotEscalated(t *testing.T) {
	fixture := "TRI_CHEM_ID,CHEM_NAME\n" +
		"N150,Dioxin and dioxin-like compounds\n" +
		"N151,Dioxin and dioxin-like compounds\n"

	srv, log := newTableServer(t, "TRI_CHEM_INFO", 800, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixture)
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_CHEM_INFO")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Equals: map[string]string{"CHEM_NAME": "Dioxin and dioxin-like compounds"},
	})
	require.NoError(t, err)

	// Exact-match against the captured row set.
	require.Equal(t, 2, frame.Len())
	assert.Equal(t, []string{"TRI_CHEM_ID", "CHEM_NAME"}, frame.Columns)
	assert.Equal(t, []string{"N150", "Dioxin and dioxin-like compounds"}, frame.Rows[0])
	assert.Equal(t, []string{"N151", "Dioxin and dioxin-like compounds"}, frame.Rows[1])

	filtered := log.matching("/CHEM_NAME/")
	require.Len(t, filtered, 1)
	assert.Equal(t, "/TRI_CHEM_INFO/CHEM_NAME/Dioxin%20and%20dioxin%2Dlike%20compounds/CSV", filtered[0])
	assert.Empty(t, log.matching("/rows/"), "an unambiguous result must not escalate")
}

func TestFilter_MultipleEqualsDeterministicOrder(t *testing.T) {
	srv, log := newTableServer(t, "TRI_REPORTING_FORM", 500, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "TRI_CHEM_ID,REPORTING_YEAR\nN150,2021\n")
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_REPORTING_FORM")
	require.NoError(t, err)

	_, err = table.Filter(context.Background(), Filters{
		Equals: map[string]string{"TRI_CHEM_ID": "N150", "REPORTING_YEAR": "2021"},
	})
	require.NoError(t, err)

	filtered := log.matching("REPORTING_YEAR")
	require.Len(t, filtered, 1)
	assert.Equal(t, "/TRI_REPORTING_FORM/REPORTING_YEAR/2021/TRI_CHEM_ID/N150/CSV", filtered[0])
}

func TestFilter_FullPageDoesNotEscalate(t *testing.T) {
	srv, log := newTableServer(t, "TRI_FACILITY", 30000, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rowsCSV(PageCap, 0)) // exactly the page cap: legitimate
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Equals: map[string]string{"STATE_ABBR": "TX"},
	})
	require.NoError(t, err)
	assert.Equal(t, PageCap, frame.Len())
	assert.Empty(t, log.matching("/rows/"))
}

func TestFilter_OverflowEscalatesToFullScan(t *testing.T) {
	srv, log := newTableServer(t, "TRI_FACILITY", 15000, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/TRI_FACILITY/STATE_ABBR/TX/CSV":
			fmt.Fprint(w, rowsCSV(overflowCount, 0)) // padded truncation signal
		case "/TRI_FACILITY/STATE_ABBR/TX/rows/0:9999/CSV/":
			fmt.Fprint(w, rowsCSV(10000, 0))
		case "/TRI_FACILITY/STATE_ABBR/TX/rows/10000:15000/CSV/":
			fmt.Fprint(w, rowsCSV(2000, 10000))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Equals: map[string]string{"STATE_ABBR": "TX"},
	})
	require.NoError(t, err)

	assert.Equal(t, 12000, frame.Len())
	assert.Equal(t, "r0", frame.Rows[0][0])
	assert.Equal(t, "r11999", frame.Rows[11999][0])
	assert.Len(t, log.matching("/rows/"), 2, "escalation fetches every window of the filtered URL")
}

func TestFilter_EmptyResultEscalates(t *testing.T) {
	srv, log := newTableServer(t, "TRI_FACILITY", 5, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/TRI_FACILITY/STATE_ABBR/ND/CSV":
			fmt.Fprint(w, "ROW_ID\n") // ambiguous: no matches, or truncated away
		case "/TRI_FACILITY/STATE_ABBR/ND/rows/0:5/CSV/":
			fmt.Fprint(w, rowsCSV(2, 0))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Equals: map[string]string{"STATE_ABBR": "ND"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Len())
	assert.Len(t, log.matching("/rows/"), 1)
}

func TestFilter_MembershipOnlyScansTable(t *testing.T) {
	csv := "TRI_FACILITY_ID,NAME\nF1,one\nF2,two\nF3,three\n"
	srv, log := newTableServer(t, "TRI_FACILITY", 2, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/TRI_FACILITY/rows/0:2/CSV/", r.URL.Path)
		fmt.Fprint(w, csv)
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Within: map[string][]string{"TRI_FACILITY_ID": {"F1", "F3"}},
	})
	require.NoError(t, err)

	require.Equal(t, 2, frame.Len())
	assert.Equal(t, "F1", frame.Rows[0][0])
	assert.Equal(t, "F3", frame.Rows[1][0])
	assert.Len(t, log.matching("/rows/"), 1)
}

func TestFilter_EqualsAndMembershipIntersect(t *testing.T) {
	csv := "FACILITY_ID,STATE_ABBR,YEAR\n" +
		"F1,SC,2020\n" +
		"F2,SC,2021\n" +
		"F3,SC,2021\n"
	srv, _ := newTableServer(t, "TRI_FACILITY", 100, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, csv)
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)

	frame, err := table.Filter(context.Background(), Filters{
		Equals: map[string]string{"STATE_ABBR": "SC"},
		Within: map[string][]string{
			"YEAR":        {"2021"},
			"FACILITY_ID": {"F1", "F2"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, 1, frame.Len())
	assert.Equal(t, "F2", frame.Rows[0][0])
}

func TestFilter_InvalidColumnFailsFast(t *testing.T) {
	srv, log := newTableServer(t, "TRI_FACILITY", 10, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no fetch expected, got %s", r.URL.Path)
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_FACILITY")
	require.NoError(t, err)
	before := len(log.all())

	_, err = table.Filter(context.Background(), Filters{
		Equals: map[string]string{"BAD COLUMN": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter column")

	_, err = table.Filter(context.Background(), Filters{
		Within: map[string][]string{"ALSO/BAD": {"x"}},
	})
	require.Error(t, err)
	assert.Len(t, log.all(), before, "validation must not issue requests")
}

func TestFilter_LowercaseColumnUppercasedInURL(t *testing.T) {
	srv, log := newTableServer(t, "TRI_CHEM_INFO", 10, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "CHEM_NAME\nAmmonia\n")
	})

	table, err := newTestClient(srv.URL).OpenTable(context.Background(), "TRI_CHEM_INFO")
	require.NoError(t, err)

	_, err = table.Filter(context.Background(), Filters{
		Equals: map[string]string{"chem_name": "Ammonia"},
	})
	require.NoError(t, err)

	filtered := log.matching("CHEM_NAME")
	require.Len(t, filtered, 1)
	assert.Equal(t, "/TRI_CHEM_INFO/CHEM_NAME/Ammonia/CSV", filtered[0])
}
