package envirofacts

import "fmt"

// PageCap is the maximum row count the service returns per request.
const PageCap = 10000

// overflowCount is the row count of a padded, truncated response. A full page
// of exactly PageCap rows is legitimate; the server pads truncated responses
// to one more. Protocol constant, not a tunable.
const overflowCount = PageCap + 1

// Window is an inclusive, contiguous range of table row indices.
type Window struct {
	First int
	Last  int
}

func (w Window) String() string {
	return fmt.Sprintf("%d:%d", w.First, w.Last)
}

// PlanWindows splits [0, totalRows] into ordered, non-overlapping inclusive
// windows of at most maxWidth rows. The last window may be narrower. A
// totalRows of 0 yields the single degenerate window {0, 0}. maxWidth values
// below 1 fall back to PageCap.
func PlanWindows(totalRows, maxWidth int) []Window {
	if maxWidth < 1 {
		maxWidth = PageCap
	}
	if totalRows < 0 {
		totalRows = 0
	}

	var windows []Window
	for first := 0; first <= totalRows; first += maxWidth {
		last := first + maxWidth - 1
		if last > totalRows {
			last = totalRows
		}
		windows = append(windows, Window{First: first, Last: last})
	}
	return windows
}
