package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
)

func testThresholds() item.Thresholds {
	return item.Thresholds{
		VisitRadiusMin:              10,
		VisitRadiusMax:              150,
		MinVisitKeeperDuration:      120 * time.Second,
		MinPathKeeperDuration:       60 * time.Second,
		MinPathKeeperDistanceMeters: 20,
		MinDataGapKeeperDuration:    30 * time.Second,
		ModeShiftSpeedKph:           8,

		MergeableDistanceMultiplier: 4,
		MergeableVisitPathFloorM:    150,
		MergeForwardSteps:           2,
		MergeBackwardSteps:          2,
		MergeBridgeEnabled:          true,
	}
}

func stationarySample(t time.Time, lat, lon float64) *sample.Sample {
	return sample.New(sample.Raw{
		Date:               t,
		HasLocation:        true,
		Coordinate:         geo.Point{Lat: lat, Lon: lon},
		HorizontalAccuracy: 5,
		Classification: &sample.Classification{Scores: map[sample.ActivityType]sample.ActivityScore{
			sample.ActivityStationary: {Score: 1},
		}},
	})
}

func walkSample(t time.Time, lat, lon float64) *sample.Sample {
	return sample.New(sample.Raw{
		Date:               t,
		HasLocation:        true,
		Coordinate:         geo.Point{Lat: lat, Lon: lon},
		HorizontalAccuracy: 5,
		Speed:              1.2,
		Classification: &sample.Classification{Scores: map[sample.ActivityType]sample.ActivityScore{
			sample.ActivityWalking: {Score: 1},
		}},
	})
}

func TestExecuteTwoItemMergeTransfersSamplesAndRelinks(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	a := s.CreateVisit(stationarySample(base, 1, 1))
	b := s.CreatePath(walkSample(base.Add(time.Minute), 1.001, 1.001))
	c := s.CreateVisit(stationarySample(base.Add(2*time.Minute), 1.002, 1.002))

	s.Link(a, b)
	s.Link(b, c)

	keeper := execute(s, a, nil, b, nil)

	assert.Same(t, a, keeper)
	assert.Equal(t, 2, a.SampleCount())
	assert.True(t, b.Deleted())
	assert.Equal(t, 0, b.SampleCount())
	assert.Equal(t, c.ID(), *a.NextID())
	assert.Equal(t, a.ID(), *c.PreviousID())
}

func TestExecuteBridgeMergeConsumesBetweenerAndFar(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	p := s.CreateVisit(stationarySample(base, 1, 1))
	w := s.CreatePath(walkSample(base.Add(time.Minute), 1.001, 1.001))
	n := s.CreateVisit(stationarySample(base.Add(2*time.Minute), 1.002, 1.002))

	s.Link(p, w)
	s.Link(w, n)

	keeper := execute(s, p, w, n, nil)

	assert.Same(t, p, keeper)
	assert.Equal(t, 3, p.SampleCount())
	assert.True(t, w.Deleted())
	assert.True(t, n.Deleted())
	assert.Nil(t, p.NextID())
}

func TestExecuteBridgeMergeReverseDirection(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	p := s.CreateVisit(stationarySample(base, 1, 1))
	w := s.CreatePath(walkSample(base.Add(time.Minute), 1.001, 1.001))
	n := s.CreateVisit(stationarySample(base.Add(2*time.Minute), 1.002, 1.002))

	s.Link(p, w)
	s.Link(w, n)

	keeper := execute(s, n, w, p, nil)

	assert.Same(t, n, keeper)
	assert.Equal(t, 3, n.SampleCount())
	assert.True(t, w.Deleted())
	assert.True(t, p.Deleted())
	assert.Nil(t, n.PreviousID())
}

func TestScoreMergeImpossibleWhenMergeLocked(t *testing.T) {
	s := store.New(nil)
	base := time.Now()
	a := s.CreateVisit(stationarySample(base, 1, 1))
	b := s.CreateVisit(stationarySample(base.Add(time.Minute), 1.00001, 1.00001))
	a.SetMergeLocked(true)

	got := scoreMerge(a, nil, b, testThresholds())
	assert.Equal(t, Impossible, got)
}

func TestScoreMergePathPathDifferentTypeImpossible(t *testing.T) {
	s := store.New(nil)
	base := time.Now()
	car := s.CreatePath(sample.New(sample.Raw{
		Date: base, HasLocation: true, Coordinate: geo.Point{Lat: 1, Lon: 1}, HorizontalAccuracy: 5,
		Speed: 11, Classification: &sample.Classification{Scores: map[sample.ActivityType]sample.ActivityScore{sample.ActivityCar: {Score: 1}}},
	}))
	walk := s.CreatePath(walkSample(base.Add(time.Minute), 1.001, 1.001))

	got := scoreMerge(car, nil, walk, testThresholds())
	assert.Equal(t, Impossible, got)
}

func TestSafeDeleteNoNeighboursErrors(t *testing.T) {
	s := store.New(nil)
	solo := s.CreateVisit(stationarySample(time.Now(), 1, 1))

	err := SafeDelete(s, solo, testThresholds(), nil)
	assert.Error(t, err)
}

func TestSafeDeleteMergesWeakPathIntoNeighbour(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	a := s.CreateVisit(stationarySample(base, 1, 1))
	a.AddSample(stationarySample(base.Add(3*time.Minute), 1.00001, 1.00001))

	// a short, weak path: one lone sample, not worth keeping.
	weak := s.CreatePath(walkSample(base.Add(4*time.Minute), 1.0001, 1.0001))

	c := s.CreateVisit(stationarySample(base.Add(5*time.Minute), 1.0002, 1.0002))
	c.AddSample(stationarySample(base.Add(8*time.Minute), 1.0002, 1.0002))

	s.Link(a, weak)
	s.Link(weak, c)

	err := SafeDelete(s, weak, testThresholds(), nil)
	require.NoError(t, err)
	assert.True(t, weak.Deleted())
}

func TestInsertDataGapAboveThresholdCreatesMarker(t *testing.T) {
	s := store.New(nil)
	base := time.Now()
	older := s.CreateVisit(stationarySample(base, 1, 1))
	newer := s.CreateVisit(stationarySample(base.Add(10*time.Minute), 1.01, 1.01))

	gap := InsertDataGap(s, older, newer, DefaultDataGapThreshold)
	require.NotNil(t, gap)
	assert.True(t, gap.IsDataGap())
	assert.Equal(t, gap.ID(), *older.NextID())
	assert.Equal(t, gap.ID(), *newer.PreviousID())
}

func TestInsertDataGapBelowThresholdReturnsNil(t *testing.T) {
	s := store.New(nil)
	base := time.Now()
	older := s.CreateVisit(stationarySample(base, 1, 1))
	newer := s.CreateVisit(stationarySample(base.Add(time.Minute), 1.0001, 1.0001))

	gap := InsertDataGap(s, older, newer, DefaultDataGapThreshold)
	assert.Nil(t, gap)
}
