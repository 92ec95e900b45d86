package steps

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// defaultRouteType is the GTFS code for a bus route.
const defaultRouteType = 3

// Transit converts the Metro GTFS feed into stop, route and shape artifacts.
type Transit struct{}

func (Transit) Name() string  { return "gtfs" }
func (Transit) Title() string { return "GTFS transit" }

func (Transit) Run(_ context.Context, rc *pipeline.RunContext) error {
	feed, err := source.OpenFeed(rc.Raw("google_transit.zip"), rc.Raw("gtfs"))
	if err != nil {
		return pipeline.SkipIfMissing(err)
	}
	defer feed.Close()

	if !feed.Has("stops.txt") {
		return pipeline.Skip("GTFS feed has no stops.txt")
	}
	if err := writeStops(rc, feed); err != nil {
		return err
	}
	if feed.Has("routes.txt") {
		if err := writeRoutes(rc, feed); err != nil {
			return err
		}
	}

	var tripRoutes []tripRoute
	if feed.Has("trips.txt") {
		if tripRoutes, err = readTrips(feed); err != nil {
			return err
		}
	}
	if feed.Has("shapes.txt") {
		if err := writeShapes(rc, feed, tripRoutes); err != nil {
			return err
		}
	}
	if feed.Has("stop_times.txt") {
		if err := writeStopStats(rc, feed, tripRoutes); err != nil {
			return err
		}
	}
	return nil
}

func writeStops(rc *pipeline.RunContext, feed *source.Feed) error {
	var fc featureCollection
	read, dropped := 0, 0
	err := feed.Scan("stops.txt", func(row source.Row) error {
		read++
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(row["stop_lat"]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(row["stop_lon"]), 64)
		if err1 != nil || err2 != nil || lat == 0 || lon == 0 {
			dropped++
			return nil
		}
		fc.add(geom.NewPointFlat(geom.XY, []float64{lon, lat}), map[string]any{
			"stop_id":   row["stop_id"],
			"stop_name": row["stop_name"],
			"stop_code": row["stop_code"],
		})
		return nil
	})
	if err != nil {
		return err
	}
	rc.Read(read)
	rc.Dropped("invalid_coordinates", dropped)
	return fc.write(rc, "stops.geojson")
}

type route struct {
	ID        string `json:"route_id"`
	ShortName string `json:"route_short_name"`
	LongName  string `json:"route_long_name"`
	Type      int    `json:"route_type"`
	Color     string `json:"route_color"`
}

func writeRoutes(rc *pipeline.RunContext, feed *source.Feed) error {
	routes := []route{}
	err := feed.Scan("routes.txt", func(row source.Row) error {
		r := route{
			ID:        row["route_id"],
			ShortName: row["route_short_name"],
			LongName:  row["route_long_name"],
			Type:      parseRouteType(row["route_type"]),
		}
		if c := strings.TrimSpace(row["route_color"]); c != "" {
			r.Color = "#" + c
		}
		routes = append(routes, r)
		return nil
	})
	if err != nil {
		return err
	}
	rc.Read(len(routes))
	return writeJSON(rc, "routes.json", routes, len(routes))
}

func parseRouteType(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultRouteType
	}
	return n
}

type tripRoute struct {
	trip, shape, route string
}

func readTrips(feed *source.Feed) ([]tripRoute, error) {
	var trips []tripRoute
	err := feed.Scan("trips.txt", func(row source.Row) error {
		trips = append(trips, tripRoute{
			trip:  row["trip_id"],
			shape: row["shape_id"],
			route: row["route_id"],
		})
		return nil
	})
	return trips, err
}

type shapePoint struct {
	seq      int
	lon, lat float64
}

func writeShapes(rc *pipeline.RunContext, feed *source.Feed, trips []tripRoute) error {
	points := make(map[string][]shapePoint)
	var order []string
	read, dropped := 0, 0
	err := feed.Scan("shapes.txt", func(row source.Row) error {
		read++
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(row["shape_pt_lat"]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(row["shape_pt_lon"]), 64)
		seq, err3 := strconv.Atoi(strings.TrimSpace(row["shape_pt_sequence"]))
		if err1 != nil || err2 != nil || err3 != nil {
			dropped++
			return nil
		}
		id := row["shape_id"]
		if _, ok := points[id]; !ok {
			order = append(order, id)
		}
		points[id] = append(points[id], shapePoint{seq: seq, lon: lon, lat: lat})
		return nil
	})
	if err != nil {
		return err
	}
	rc.Read(read)
	rc.Dropped("invalid_coordinates", dropped)

	shapeRoute := make(map[string]string)
	for _, t := range trips {
		if t.shape != "" && t.route != "" {
			shapeRoute[t.shape] = t.route
		}
	}

	var fc featureCollection
	for _, id := range order {
		pts := points[id]
		if len(pts) < 2 {
			continue
		}
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].seq < pts[j].seq })
		flat := make([]float64, 0, 2*len(pts))
		for _, p := range pts {
			flat = append(flat, p.lon, p.lat)
		}
		fc.add(geom.NewLineStringFlat(geom.XY, flat), map[string]any{
			"shape_id": id,
			"route_id": shapeRoute[id],
		})
	}
	return fc.write(rc, "shapes.geojson")
}

type stopStat struct {
	TripCount int      `json:"trip_count"`
	Routes    []string `json:"routes"`
}

func writeStopStats(rc *pipeline.RunContext, feed *source.Feed, trips []tripRoute) error {
	routeOf := make(map[string]string, len(trips))
	for _, t := range trips {
		routeOf[t.trip] = t.route
	}

	stopTrips := make(map[string]map[string]struct{})
	stopRoutes := make(map[string]map[string]struct{})
	read := 0
	err := feed.Scan("stop_times.txt", func(row source.Row) error {
		read++
		stop, trip := row["stop_id"], row["trip_id"]
		if stopTrips[stop] == nil {
			stopTrips[stop] = make(map[string]struct{})
			stopRoutes[stop] = make(map[string]struct{})
		}
		stopTrips[stop][trip] = struct{}{}
		if r := routeOf[trip]; r != "" {
			stopRoutes[stop][r] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	rc.Read(read)

	stats := make(map[string]stopStat, len(stopTrips))
	for stop, ts := range stopTrips {
		routes := make([]string, 0, len(stopRoutes[stop]))
		for r := range stopRoutes[stop] {
			routes = append(routes, r)
		}
		sort.Strings(routes)
		stats[stop] = stopStat{TripCount: len(ts), Routes: routes}
	}
	return writeJSON(rc, "stop_stats.json", stats, len(stats))
}
