package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 51.5007, Lon: -0.1246}
	b := Point{Lat: 48.8566, Lon: 2.3522}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
}

func TestDistanceZeroForSamePoint(t *testing.T) {
	a := Point{Lat: 51.5, Lon: -0.12}
	assert.InDelta(t, 0, Distance(a, a), 1e-6)
}

func TestWeightedCentroidOfSinglePointIsItself(t *testing.T) {
	a := Point{Lat: 40.0, Lon: -70.0}
	c := WeightedCentroid([]Point{a}, nil)
	assert.InDelta(t, a.Lat, c.Lat, 1e-9)
	assert.InDelta(t, a.Lon, c.Lon, 1e-9)
}

func TestWeightedCentroidSymmetricPairIsMidpoint(t *testing.T) {
	a := Point{Lat: 0, Lon: -1}
	b := Point{Lat: 0, Lon: 1}
	c := WeightedCentroid([]Point{a, b}, nil)
	assert.InDelta(t, 0, c.Lat, 1e-9)
	assert.InDelta(t, 0, c.Lon, 1e-9)
}

func TestRadiusStatsEmpty(t *testing.T) {
	mean, sd := RadiusStats(Point{}, nil, nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, sd)
}

func TestRadiusStatsSinglePointUsesHAcc(t *testing.T) {
	mean, sd := RadiusStats(Point{Lat: 1, Lon: 1}, []Point{{Lat: 1, Lon: 1}}, []float64{12.5})
	assert.Equal(t, 12.5, mean)
	assert.Equal(t, 0.0, sd)
}

func TestRadiusStatsIgnoresUnusablePoints(t *testing.T) {
	centre := Point{Lat: 0, Lon: 0}
	points := []Point{{Lat: 0, Lon: 0.001}, {Lat: 0, Lon: -0.001}}
	hAccs := []float64{-1, 5}
	mean, sd := RadiusStats(centre, points, hAccs)
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 0.0, sd)
}

func TestNSigmaRadiusClamps(t *testing.T) {
	assert.Equal(t, 10.0, NSigmaRadius(0, 0, 3, 10, 150))
	assert.Equal(t, 150.0, NSigmaRadius(1000, 10, 3, 10, 150))
}

func TestCourseVarianceTooFewBearingsIsOne(t *testing.T) {
	points := []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}}
	assert.Equal(t, 1.0, CourseVariance(points))
}

func TestCourseVarianceStraightLineIsLow(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 2},
		{Lat: 0, Lon: 3}, {Lat: 0, Lon: 4},
	}
	v := CourseVariance(points)
	assert.True(t, v < 0.01, "expected near-zero variance for a straight line, got %v", v)
}

func TestCourseVarianceZigZagIsHigh(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 0, Lon: 0},
		{Lat: 1, Lon: 0}, {Lat: 0, Lon: 0}, {Lat: 1, Lon: 0},
		{Lat: 0, Lon: 0},
	}
	v := CourseVariance(points)
	assert.True(t, v > 0.9, "expected near-one variance for a reversing zig-zag, got %v", v)
}

func TestAccuracyWeightNegativeIsZero(t *testing.T) {
	assert.Equal(t, 0.0, AccuracyWeight(-1, 50))
}

func TestAccuracyWeightBetterAccuracyWeighsMore(t *testing.T) {
	best := AccuracyWeight(1, 50)
	worst := AccuracyWeight(49, 50)
	assert.True(t, best > worst)
	assert.True(t, math.Abs(best-1) < 0.05)
}
