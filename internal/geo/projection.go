// Package geo converts projected shapefile coordinates to WGS84 and provides
// the small set of planar predicates the pipeline needs (centroids and
// polygon intersection) on top of go-geom.
package geo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Projection converts projected coordinates to longitude/latitude degrees.
type Projection interface {
	ToLngLat(x, y float64) (lng, lat float64)
}

// Geographic passes coordinates through unchanged.
type Geographic struct{}

// ToLngLat implements Projection.
func (Geographic) ToLngLat(x, y float64) (float64, float64) { return x, y }

// WebMercator is spherical Mercator (EPSG:3857) in meters.
type WebMercator struct{}

const webMercatorRadius = 6378137.0

// ToLngLat implements Projection.
func (WebMercator) ToLngLat(x, y float64) (float64, float64) {
	lng := x / webMercatorRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/webMercatorRadius)) - math.Pi/2) * 180 / math.Pi
	return lng, lat
}

// TransverseMercator is an ellipsoidal Transverse Mercator projection, the
// basis of most US state plane zones (Missouri East among them).
type TransverseMercator struct {
	SemiMajor       float64 // meters
	InverseFlat     float64
	LatOrigin       float64 // degrees
	CentralMeridian float64 // degrees
	ScaleFactor     float64
	FalseEasting    float64 // linear units
	FalseNorthing   float64 // linear units
	UnitMeters      float64 // meters per linear unit
}

func (p TransverseMercator) e2() float64 {
	f := 1 / p.InverseFlat
	return f * (2 - f)
}

// meridianArc is the distance along the meridian from the equator to phi.
func (p TransverseMercator) meridianArc(phi float64) float64 {
	e2 := p.e2()
	e4, e6 := e2*e2, e2*e2*e2
	return p.SemiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// ToLngLat implements Projection.
func (p TransverseMercator) ToLngLat(x, y float64) (float64, float64) {
	a, k0 := p.SemiMajor, p.ScaleFactor
	e2 := p.e2()
	ep2 := e2 / (1 - e2)

	xm := (x - p.FalseEasting) * p.UnitMeters
	ym := (y - p.FalseNorthing) * p.UnitMeters

	m := p.meridianArc(radians(p.LatOrigin)) + ym/k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := a / math.Sqrt(1-e2*sin1*sin1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := xm / (n1 * k0)

	lat := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lng := radians(p.CentralMeridian) + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

	return degrees(lng), degrees(lat)
}

// FromLngLat projects degrees to the projection's linear units.
func (p TransverseMercator) FromLngLat(lng, lat float64) (float64, float64) {
	a, k0 := p.SemiMajor, p.ScaleFactor
	e2 := p.e2()
	ep2 := e2 / (1 - e2)

	phi := radians(lat)
	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := a / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	aa := (radians(lng) - radians(p.CentralMeridian)) * cos
	m := p.meridianArc(phi)
	m0 := p.meridianArc(radians(p.LatOrigin))

	x := k0 * n * (aa +
		(1-t+c)*math.Pow(aa, 3)/6 +
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(aa, 5)/120)
	y := k0 * (m - m0 + n*tan*(aa*aa/2+
		(5-t+9*c+4*c*c)*math.Pow(aa, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(aa, 6)/720))

	return x/p.UnitMeters + p.FalseEasting, y/p.UnitMeters + p.FalseNorthing
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// ErrUnsupportedProjection is returned for .prj definitions this package
// cannot invert.
var ErrUnsupportedProjection = errors.New("unsupported projection")

var (
	projectionRe = regexp.MustCompile(`PROJECTION\["([^"]+)"`)
	parameterRe  = regexp.MustCompile(`PARAMETER\["([^"]+)"\s*,\s*([-+0-9.eE]+)\s*\]`)
	spheroidRe   = regexp.MustCompile(`SPHEROID\["[^"]*"\s*,\s*([-+0-9.eE]+)\s*,\s*([-+0-9.eE]+)`)
	unitRe       = regexp.MustCompile(`UNIT\["[^"]*"\s*,\s*([-+0-9.eE]+)\s*\]`)
)

// ParsePRJ builds a Projection from the ESRI WKT found in a shapefile's .prj.
// An empty definition or a bare GEOGCS is treated as already geographic.
func ParsePRJ(wkt string) (Projection, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" || !strings.HasPrefix(strings.ToUpper(wkt), "PROJCS") {
		return Geographic{}, nil
	}

	m := projectionRe.FindStringSubmatch(wkt)
	if m == nil {
		return nil, fmt.Errorf("%w: no PROJECTION in %.40q", ErrUnsupportedProjection, wkt)
	}
	name := strings.ToLower(m[1])

	params := make(map[string]float64)
	for _, pm := range parameterRe.FindAllStringSubmatch(wkt, -1) {
		v, err := strconv.ParseFloat(pm[2], 64)
		if err == nil {
			params[strings.ToLower(pm[1])] = v
		}
	}

	switch {
	case strings.Contains(name, "mercator_auxiliary_sphere"),
		strings.Contains(name, "popular_visualisation"),
		strings.Contains(strings.ToLower(wkt), "web_mercator"):
		return WebMercator{}, nil

	case name == "transverse_mercator" || name == "gauss_kruger":
		tm := TransverseMercator{
			SemiMajor:       6378137.0,
			InverseFlat:     298.257222101,
			LatOrigin:       params["latitude_of_origin"],
			CentralMeridian: firstParam(params, "central_meridian", "longitude_of_center"),
			ScaleFactor:     firstParam(params, "scale_factor"),
			FalseEasting:    params["false_easting"],
			FalseNorthing:   params["false_northing"],
			UnitMeters:      1,
		}
		if tm.ScaleFactor == 0 {
			tm.ScaleFactor = 1
		}
		if s := spheroidRe.FindStringSubmatch(wkt); s != nil {
			a, errA := strconv.ParseFloat(s[1], 64)
			inv, errI := strconv.ParseFloat(s[2], 64)
			if errA == nil && errI == nil && a > 0 && inv > 0 {
				tm.SemiMajor, tm.InverseFlat = a, inv
			}
		}
		// The projected CRS's linear unit is the last UNIT in the WKT.
		if units := unitRe.FindAllStringSubmatch(wkt, -1); len(units) > 0 {
			if u, err := strconv.ParseFloat(units[len(units)-1][1], 64); err == nil && u > 0 {
				tm.UnitMeters = u
			}
		}
		return tm, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProjection, m[1])
}

func firstParam(params map[string]float64, names ...string) float64 {
	for _, n := range names {
		if v, ok := params[n]; ok {
			return v
		}
	}
	return 0
}
