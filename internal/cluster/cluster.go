// Package cluster converts observed flight positions into obfuscated
// display clusters meeting the standard's minimum-size guarantees, for
// queries too large to be answered with per-flight detail.
package cluster

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// planarPoint is a projected flight position in the query's planar frame.
type planarPoint struct {
	x, y float64
}

// workingCluster is the transient cluster box being grown and placed. It
// exists only for the duration of one clustering computation.
type workingCluster struct {
	xMin, xMax float64
	yMin, yMax float64
	points     []planarPoint
}

func (c *workingCluster) width() float64  { return c.xMax - c.xMin }
func (c *workingCluster) height() float64 { return c.yMax - c.yMin }
func (c *workingCluster) area() float64   { return c.width() * c.height() }

// Clusterer produces display clusters under one standard revision's
// parameters.
type Clusterer struct {
	params rid.Parameters
	logger zerolog.Logger

	// Replaceable in tests for deterministic placement.
	uniform func() float64
}

// New creates a clusterer for the given parameters.
func New(params rid.Parameters) *Clusterer {
	return &Clusterer{
		params:  params,
		logger:  log.With().Str("component", "clusterer").Logger(),
		uniform: rand.Float64,
	}
}

// Cluster obfuscates the flights observed within view into display
// clusters. The current policy emits at most one cluster spanning the
// whole view; queries are never subdivided.
func (c *Clusterer) Cluster(flights []rid.Flight, view geo.BoundingBox) []rid.Cluster {
	if len(flights) == 0 {
		return nil
	}

	reference := view.LowCorner()
	viewMaxX, viewMaxY := geo.Flatten(reference, view.HighCorner())

	work := &workingCluster{
		xMin:   0,
		xMax:   viewMaxX,
		yMin:   0,
		yMax:   viewMaxY,
		points: make([]planarPoint, len(flights)),
	}
	for i, flight := range flights {
		x, y := geo.Flatten(reference, geo.LatLngPoint{
			Lat: flight.MostRecentPosition.Lat,
			Lng: flight.MostRecentPosition.Lng,
		})
		work.points[i] = planarPoint{x: x, y: y}
	}

	viewAreaSqm := geo.SphericalAreaSqm(view)
	c.extend(work, viewAreaSqm)
	c.place(work)

	low := geo.Unflatten(reference, work.xMin, work.yMin)
	high := geo.Unflatten(reference, work.xMax, work.yMax)
	box := geo.BoundingBox{LatLo: low.Lat, LngLo: low.Lng, LatHi: high.Lat, LngHi: high.Lng}

	out := rid.Cluster{
		Corners:         []geo.LatLngPoint{low, high},
		AreaSqm:         geo.SphericalAreaSqm(box),
		NumberOfFlights: len(work.points),
	}

	c.logger.Debug().
		Int("flights", out.NumberOfFlights).
		Float64("area_sqm", out.AreaSqm).
		Msg("Built display cluster")

	return []rid.Cluster{out}
}

// extend grows the cluster box until it satisfies both floors: each
// dimension at least twice the obfuscation distance, and the area at least
// the required fraction of the view area. Growth is planar; the cluster is
// small enough that the flat-earth approximation holds.
func (c *Clusterer) extend(work *workingCluster, viewAreaSqm float64) {
	if work.width() < 2*c.params.MinObfuscationDistanceM {
		delta := c.params.MinObfuscationDistanceM - work.width()/2
		work.xMin -= delta
		work.xMax += delta
	}
	if work.height() < 2*c.params.MinObfuscationDistanceM {
		delta := c.params.MinObfuscationDistanceM - work.height()/2
		work.yMin -= delta
		work.yMax += delta
	}

	requiredArea := viewAreaSqm * c.params.MinClusterSizePercent / 100
	if area := work.area(); area < requiredArea {
		scale := math.Sqrt(requiredArea/area) / 2
		dx := work.width() * scale
		dy := work.height() * scale
		work.xMin -= dx
		work.xMax += dx
		work.yMin -= dy
		work.yMax += dy
	}
}

// place shifts the box and its points together by a random offset bounded
// by the point extrema, so the reported box still contains every point but
// its exact position varies across queries. Repeated queries therefore
// cannot be intersected to recover a precise aircraft position.
func (c *Clusterer) place(work *workingCluster) {
	xMinPoint, xMaxPoint := work.points[0].x, work.points[0].x
	yMinPoint, yMaxPoint := work.points[0].y, work.points[0].y
	for _, p := range work.points[1:] {
		xMinPoint = math.Min(xMinPoint, p.x)
		xMaxPoint = math.Max(xMaxPoint, p.x)
		yMinPoint = math.Min(yMinPoint, p.y)
		yMaxPoint = math.Max(yMaxPoint, p.y)
	}

	dx := c.uniformIn(-xMaxPoint, xMinPoint)
	dy := c.uniformIn(-yMaxPoint, yMinPoint)

	work.xMin += dx
	work.xMax += dx
	work.yMin += dy
	work.yMax += dy
	for i := range work.points {
		work.points[i].x += dx
		work.points[i].y += dy
	}
}

func (c *Clusterer) uniformIn(lo, hi float64) float64 {
	return lo + c.uniform()*(hi-lo)
}
