package geography

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tri-cli/internal/tabular"
)

// FacilityPoint ties a frame row to its point geometry.
type FacilityPoint struct {
	Row   int // index into the source frame
	Point *geom.Point
}

// Points extracts lat/lon point geometries from the named frame columns.
// Rows whose coordinates are missing or unparseable are dropped, with an
// advisory log carrying the drop count — the same silent-loss contract the
// table decoder has.
func Points(frame *tabular.Frame, latCol, lonCol string) ([]FacilityPoint, error) {
	latIdx, ok := frame.ColumnIndex(latCol)
	if !ok {
		return nil, eris.Errorf("geography: no column %q", latCol)
	}
	lonIdx, ok := frame.ColumnIndex(lonCol)
	if !ok {
		return nil, eris.Errorf("geography: no column %q", lonCol)
	}

	var points []FacilityPoint
	dropped := 0
	for i, row := range frame.Rows {
		lat, latErr := strconv.ParseFloat(row[latIdx], 64)
		lon, lonErr := strconv.ParseFloat(row[lonIdx], 64)
		if latErr != nil || lonErr != nil {
			dropped++
			continue
		}
		p := geom.NewPointFlat(geom.XY, []float64{lon, lat})
		points = append(points, FacilityPoint{Row: i, Point: p})
	}

	if dropped > 0 {
		zap.L().Warn("dropped rows with missing coordinates",
			zap.String("lat_column", latCol),
			zap.String("lon_column", lonCol),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(points)),
		)
	}

	return points, nil
}
