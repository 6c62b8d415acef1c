// Package geo implements the spherical-geometry primitives the item graph
// needs: weighted centroids, great-circle distance, radius statistics, and
// course variance over a polyline. Grounded on the teacher's use of
// gonum.org/v1/gonum/stat for descriptive statistics (internal/db's speed
// percentiles), generalised from a 1-D sample to unit-sphere geometry.
package geo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// IsZero reports whether p is the origin, used as the coordinate's "unset"
// sentinel per the sample's hasUsableCoordinate rule.
func (p Point) IsZero() bool { return p.Lat == 0 && p.Lon == 0 }

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// unitVector projects a lat/lon pair onto the unit sphere.
func unitVector(p Point) [3]float64 {
	latR, lonR := toRadians(p.Lat), toRadians(p.Lon)
	cosLat := math.Cos(latR)
	return [3]float64{
		cosLat * math.Cos(lonR),
		cosLat * math.Sin(lonR),
		math.Sin(latR),
	}
}

func fromUnitVector(v [3]float64) Point {
	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if norm == 0 {
		return Point{}
	}
	x, y, z := v[0]/norm, v[1]/norm, v[2]/norm
	lat := toDegrees(math.Asin(clamp(z, -1, 1)))
	lon := toDegrees(math.Atan2(y, x))
	return Point{Lat: lat, Lon: lon}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AccuracyWeight derives a centroid weight from a horizontal accuracy
// reading: w = 1 - hAcc/(worstHAcc+1). A negative hAcc (unusable) weighs
// zero rather than negative.
func AccuracyWeight(hAcc, worstHAcc float64) float64 {
	if hAcc < 0 {
		return 0
	}
	w := 1 - hAcc/(worstHAcc+1)
	if w < 0 {
		return 0
	}
	return w
}

// WeightedCentroid sums unit vectors weighted by weights, renormalises, and
// projects back to lat/lon. len(weights) == 0 means unweighted (each point
// contributes 1). Returns the zero Point for an empty input.
func WeightedCentroid(points []Point, weights []float64) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sum [3]float64
	for i, p := range points {
		w := 1.0
		if len(weights) == len(points) {
			w = weights[i]
		}
		uv := unitVector(p)
		sum[0] += uv[0] * w
		sum[1] += uv[1] * w
		sum[2] += uv[2] * w
	}
	return fromUnitVector(sum)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1, lon1 := toRadians(a.Lat), toRadians(a.Lon)
	lat2, lon2 := toRadians(b.Lat), toRadians(b.Lon)
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Asin(math.Sqrt(clamp(h, 0, 1)))
	return EarthRadiusMeters * c
}

// Bearing returns the initial compass bearing from a to b, in radians.
func Bearing(a, b Point) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// RadiusStats returns the mean and standard deviation of great-circle
// distance from centre over points whose horizontal accuracy is usable
// (hAcc >= 0). Special cases per §4.1: zero usable points -> (0,0); exactly
// one usable point whose hAcc >= 0 -> (hAcc, 0).
func RadiusStats(centre Point, points []Point, hAccs []float64) (mean, sd float64) {
	var distances []float64
	var soleHAcc float64
	usable := 0
	for i, p := range points {
		hAcc := -1.0
		if i < len(hAccs) {
			hAcc = hAccs[i]
		}
		if hAcc < 0 {
			continue
		}
		usable++
		soleHAcc = hAcc
		distances = append(distances, Distance(centre, p))
	}
	switch usable {
	case 0:
		return 0, 0
	case 1:
		return soleHAcc, 0
	default:
		mean, sd = stat.MeanStdDev(distances, nil)
		return mean, sd
	}
}

// NSigmaRadius computes mean + n*sd, clamped to [min, max]. Used both for
// containment tests (2-sigma, 3-sigma) and for invariant I6's 3-sigma check.
func NSigmaRadius(mean, sd, n, min, max float64) float64 {
	r := mean + n*sd
	return clamp(r, min, max)
}

// CourseVariance computes 1 - |mean(e^{i*bearing})| over consecutive
// bearings along points. Fewer than 4 bearings (5 points) yields 1.0,
// signalling "no usable heading signal" rather than a false-confident
// straight line.
func CourseVariance(points []Point) float64 {
	if len(points) < 2 {
		return 1.0
	}
	bearings := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		bearings = append(bearings, Bearing(points[i-1], points[i]))
	}
	if len(bearings) < 4 {
		return 1.0
	}
	var sumCos, sumSin float64
	for _, theta := range bearings {
		sumCos += math.Cos(theta)
		sumSin += math.Sin(theta)
	}
	n := float64(len(bearings))
	meanLen := math.Sqrt(sumCos*sumCos+sumSin*sumSin) / n
	return 1 - meanLen
}
