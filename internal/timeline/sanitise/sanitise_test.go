package sanitise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
)

func testThresholds() item.Thresholds {
	return item.Thresholds{
		VisitRadiusMin:    10,
		VisitRadiusMax:    150,
		ModeShiftSpeedKph: 8,
	}
}

func walkingSample(t time.Time, lat, lon, kph float64, at sample.ActivityType) *sample.Sample {
	return sample.New(sample.Raw{
		Date:               t,
		HasLocation:        true,
		Coordinate:         geo.Point{Lat: lat, Lon: lon},
		HorizontalAccuracy: 5,
		Speed:              kph / 3.6,
		Classification: &sample.Classification{Scores: map[sample.ActivityType]sample.ActivityScore{
			at: {Score: 1},
		}},
	})
}

func TestEdgePathSampleInsideVisitMovesToVisit(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	visit := s.CreateVisit(walkingSample(base, 1.0, 1.0, 0, sample.ActivityStationary))
	visit.AddSample(walkingSample(base.Add(time.Minute), 1.00001, 1.00001, 0, sample.ActivityStationary))

	// path's first two samples sit right on top of the visit centre: a
	// classifier boundary error rather than a real departure.
	path := s.CreatePath(walkingSample(base.Add(2*time.Minute), 1.00001, 1.00001, 2, sample.ActivityWalking))
	path.AddSample(walkingSample(base.Add(3*time.Minute), 1.00001, 1.00001, 2, sample.ActivityWalking))
	path.AddSample(walkingSample(base.Add(10*time.Minute), 5.0, 5.0, 12, sample.ActivityWalking))

	s.Link(visit, path)

	th := testThresholds()
	Item(s, visit, th, nil)

	assert.Equal(t, 3, visit.SampleCount())
	assert.Equal(t, 2, path.SampleCount())
}

func TestEdgeVisitSampleOutsideVisitMovesToPath(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	visit := s.CreateVisit(walkingSample(base, 1.0, 1.0, 0, sample.ActivityStationary))
	// a trailing visit sample already drifted out past the path's entry point.
	visit.AddSample(walkingSample(base.Add(time.Minute), 5.0, 5.0, 3, sample.ActivityWalking))

	path := s.CreatePath(walkingSample(base.Add(2*time.Minute), 5.0001, 5.0001, 12, sample.ActivityWalking))
	path.AddSample(walkingSample(base.Add(3*time.Minute), 5.001, 5.001, 12, sample.ActivityWalking))

	s.Link(visit, path)

	th := testThresholds()
	Item(s, visit, th, nil)

	assert.Equal(t, 1, visit.SampleCount())
	assert.Equal(t, 3, path.SampleCount())
}

func TestNoMoveWhenEdgesAlreadyConsistent(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	visit := s.CreateVisit(walkingSample(base, 1.0, 1.0, 0, sample.ActivityStationary))
	visit.AddSample(walkingSample(base.Add(time.Minute), 1.00001, 1.00001, 0, sample.ActivityStationary))

	path := s.CreatePath(walkingSample(base.Add(2*time.Minute), 5.0, 5.0, 12, sample.ActivityWalking))
	path.AddSample(walkingSample(base.Add(3*time.Minute), 5.001, 5.001, 12, sample.ActivityWalking))

	s.Link(visit, path)

	th := testThresholds()
	Item(s, visit, th, nil)

	assert.Equal(t, 2, visit.SampleCount())
	assert.Equal(t, 2, path.SampleCount())
}

func TestMergeLockedPairIsSkipped(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	visit := s.CreateVisit(walkingSample(base, 1.0, 1.0, 0, sample.ActivityStationary))
	visit.AddSample(walkingSample(base.Add(time.Minute), 1.00001, 1.00001, 0, sample.ActivityStationary))
	visit.SetMergeLocked(true)

	path := s.CreatePath(walkingSample(base.Add(2*time.Minute), 1.00001, 1.00001, 2, sample.ActivityWalking))
	path.AddSample(walkingSample(base.Add(3*time.Minute), 1.00001, 1.00001, 2, sample.ActivityWalking))

	s.Link(visit, path)

	th := testThresholds()
	Item(s, visit, th, nil)

	assert.Equal(t, 2, visit.SampleCount())
	assert.Equal(t, 2, path.SampleCount())
}

func TestPathPathDifferentTypeMovesMatchingEdge(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	car := s.CreatePath(walkingSample(base, 1.0, 1.0, 40, sample.ActivityCar))
	car.AddSample(walkingSample(base.Add(time.Minute), 1.001, 1.001, 40, sample.ActivityCar))

	// walk's leading edge is actually a stray car-speed classifier blip.
	walk := s.CreatePath(walkingSample(base.Add(2*time.Minute), 1.002, 1.002, 40, sample.ActivityCar))
	walk.AddSample(walkingSample(base.Add(3*time.Minute), 1.003, 1.003, 3, sample.ActivityWalking))
	walk.AddSample(walkingSample(base.Add(4*time.Minute), 1.004, 1.004, 3, sample.ActivityWalking))

	s.Link(car, walk)

	th := testThresholds()
	Item(s, car, th, nil)

	assert.Equal(t, 3, car.SampleCount())
	assert.Equal(t, 2, walk.SampleCount())
}

func TestPathPathSameTypeNoMove(t *testing.T) {
	s := store.New(nil)
	base := time.Now()

	a := s.CreatePath(walkingSample(base, 1.0, 1.0, 12, sample.ActivityWalking))
	a.AddSample(walkingSample(base.Add(time.Minute), 1.001, 1.001, 12, sample.ActivityWalking))

	b := s.CreatePath(walkingSample(base.Add(2*time.Minute), 1.002, 1.002, 12, sample.ActivityWalking))
	b.AddSample(walkingSample(base.Add(3*time.Minute), 1.003, 1.003, 12, sample.ActivityWalking))

	s.Link(a, b)

	th := testThresholds()
	Item(s, a, th, nil)

	assert.Equal(t, 2, a.SampleCount())
	assert.Equal(t, 2, b.SampleCount())
}
