package geography

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/tri-cli/internal/tabular"
)

// Region is a named polygon loaded from a shapefile layer.
type Region struct {
	Name    string
	Polygon *geom.Polygon
}

// NewRegion builds a Region from an existing polygon geometry.
func NewRegion(name string, polygon *geom.Polygon) Region {
	return Region{Name: name, Polygon: polygon}
}

// Contains reports whether the region contains the point, using even-odd ring
// counting so holes and multi-part shapes behave without orientation checks.
func (r Region) Contains(lon, lat float64) bool {
	coord := geom.Coord{lon, lat}
	inside := false
	for i := 0; i < r.Polygon.NumLinearRings(); i++ {
		ring := r.Polygon.LinearRing(i)
		if xy.IsPointInRing(geom.XY, coord, ring.FlatCoords()) {
			inside = !inside
		}
	}
	return inside
}

// LoadRegions reads a polygon shapefile, naming each region from the given
// attribute field.
func LoadRegions(path, nameField string) ([]Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: open shapefile %s", path)
	}
	defer reader.Close() //nolint:errcheck

	nameIdx := -1
	for i, field := range reader.Fields() {
		if strings.EqualFold(field.String(), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("geography: shapefile has no field %q", nameField)
	}

	var regions []Region
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		regions = append(regions, Region{
			Name:    reader.ReadAttribute(n, nameIdx),
			Polygon: polygonFromShape(poly),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "geography: read shapefile")
	}

	return regions, nil
}

// polygonFromShape converts a shapefile polygon (flat point list with part
// offsets) into a geom.Polygon with one linear ring per part.
func polygonFromShape(poly *shp.Polygon) *geom.Polygon {
	parts := append([]int32(nil), poly.Parts...)
	parts = append(parts, int32(len(poly.Points)))

	rings := make([][]geom.Coord, 0, len(poly.Parts))
	for p := 0; p < len(parts)-1; p++ {
		ring := make([]geom.Coord, 0, parts[p+1]-parts[p])
		for _, pt := range poly.Points[parts[p]:parts[p+1]] {
			ring = append(ring, geom.Coord{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}

	return geom.NewPolygon(geom.XY).MustSetCoords(rings)
}

// JoinRegions appends a region-name column to the frame, assigning each row
// the first loaded region containing its point. Rows with missing coordinates
// or outside every region get an empty value.
func JoinRegions(frame *tabular.Frame, latCol, lonCol, outCol string, regions []Region) (*tabular.Frame, error) {
	points, err := Points(frame, latCol, lonCol)
	if err != nil {
		return nil, err
	}

	assigned := make(map[int]string, len(points))
	for _, fp := range points {
		lon, lat := fp.Point.X(), fp.Point.Y()
		for _, region := range regions {
			if region.Contains(lon, lat) {
				assigned[fp.Row] = region.Name
				break
			}
		}
	}

	out := &tabular.Frame{Columns: append(append([]string(nil), frame.Columns...), outCol)}
	for i, row := range frame.Rows {
		out.Rows = append(out.Rows, append(append([]string(nil), row...), assigned[i]))
	}
	return out, nil
}
