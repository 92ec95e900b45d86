package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/civic-data-etl/internal/geo"
)

// Feature is one shapefile record with its geometry in WGS84.
type Feature struct {
	// Attrs holds every dBASE attribute as trimmed text.
	Attrs Row
	// Properties holds the same attributes typed for GeoJSON: numeric fields
	// become float64 (nil when blank), everything else stays a string.
	Properties map[string]any
	// Geometry is nil for null shapes.
	Geometry geom.T
}

// Layer is a fully read shapefile.
type Layer struct {
	Fields   []string
	Features []Feature
}

// ReadShapefile reads path and reprojects every vertex to longitude/latitude
// according to the sibling .prj file. A missing .prj is treated as
// geographic.
func ReadShapefile(path string) (*Layer, error) {
	proj, err := readProjection(path)
	if err != nil {
		return nil, err
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	layer := &Layer{Fields: make([]string, len(fields))}
	numeric := make([]bool, len(fields))
	for i, f := range fields {
		layer.Fields[i] = f.String()
		numeric[i] = f.Fieldtype == 'N' || f.Fieldtype == 'F'
	}

	for r.Next() {
		n, shape := r.Shape()
		feat := Feature{
			Attrs:      make(Row, len(fields)),
			Properties: make(map[string]any, len(fields)),
		}
		for i, name := range layer.Fields {
			v := decodeDBF(r.ReadAttribute(n, i))
			feat.Attrs[name] = v
			feat.Properties[name] = typedAttr(v, numeric[i])
		}
		feat.Geometry, err = convertShape(shape, proj)
		if err != nil && !errors.Is(err, geo.ErrEmptyGeometry) {
			return nil, fmt.Errorf("%s record %d: %w", path, n, err)
		}
		layer.Features = append(layer.Features, feat)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return layer, nil
}

func readProjection(shpPath string) (geo.Projection, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read projection: %w", err)
		}
		p, err := geo.ParsePRJ(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", base+ext, err)
		}
		return p, nil
	}
	return geo.Geographic{}, nil
}

// decodeDBF trims padding and falls back to Windows-1252 for attribute text
// that is not valid UTF-8.
func decodeDBF(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if utf8.ValidString(s) {
		return s
	}
	if d, err := charmap.Windows1252.NewDecoder().String(s); err == nil {
		return d
	}
	return strings.ToValidUTF8(s, "?")
}

func typedAttr(v string, numeric bool) any {
	if !numeric {
		return v
	}
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return f
}

func convertShape(shape shp.Shape, proj geo.Projection) (geom.T, error) {
	switch s := shape.(type) {
	case *shp.Point:
		lng, lat := proj.ToLngLat(s.X, s.Y)
		return geom.NewPointFlat(geom.XY, []float64{lng, lat}), nil
	case *shp.PointZ:
		lng, lat := proj.ToLngLat(s.X, s.Y)
		return geom.NewPointFlat(geom.XY, []float64{lng, lat}), nil
	case *shp.Polygon:
		return geo.PolygonFromRings(splitParts(s.Parts, s.Points, proj))
	case *shp.PolygonZ:
		return geo.PolygonFromRings(splitParts(s.Parts, s.Points, proj))
	case *shp.PolygonM:
		return geo.PolygonFromRings(splitParts(s.Parts, s.Points, proj))
	case *shp.PolyLine:
		return lines(splitParts(s.Parts, s.Points, proj))
	case *shp.PolyLineZ:
		return lines(splitParts(s.Parts, s.Points, proj))
	}
	return nil, nil
}

func splitParts(parts []int32, points []shp.Point, proj geo.Projection) [][]geom.Coord {
	out := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		ring := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			lng, lat := proj.ToLngLat(p.X, p.Y)
			ring = append(ring, geom.Coord{lng, lat})
		}
		out = append(out, ring)
	}
	return out
}

func lines(parts [][]geom.Coord) (geom.T, error) {
	switch len(parts) {
	case 0:
		return nil, geo.ErrEmptyGeometry
	case 1:
		return geom.NewLineString(geom.XY).SetCoords(parts[0])
	}
	return geom.NewMultiLineString(geom.XY).SetCoords(parts)
}
