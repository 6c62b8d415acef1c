package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		VisitRadiusMin:              10,
		VisitRadiusMax:              150,
		MinVisitKeeperDuration:      120 * time.Second,
		MinPathKeeperDuration:       60 * time.Second,
		MinPathKeeperDistanceMeters: 20,
		MinDataGapKeeperDuration:    12 * time.Hour,
	}
}

func visitWithDuration(d time.Duration) *Item {
	it := New(KindVisit)
	base := time.Now()
	it.AddSample(sampleAt(base, 1, 1))
	it.AddSample(sampleAt(base.Add(d), 1, 1))
	return it
}

func TestVisitKeepnessScore(t *testing.T) {
	th := defaultThresholds()
	short := visitWithDuration(5 * time.Second)
	assert.Equal(t, KeepnessInvalid, short.KeepnessScore(th))

	valid := visitWithDuration(30 * time.Second)
	assert.Equal(t, KeepnessValid, valid.KeepnessScore(th))

	worthKeeping := visitWithDuration(200 * time.Second)
	assert.Equal(t, KeepnessWorthKeeping, worthKeeping.KeepnessScore(th))
}

func movingSampleAt(t time.Time, lat, lon float64, activityType sample.ActivityType) *sample.Sample {
	return sample.New(sample.Raw{
		Date:               t,
		HasLocation:        true,
		Coordinate:         geo.Point{Lat: lat, Lon: lon},
		HorizontalAccuracy: 5,
		MovingState:        sample.MovingMoving,
		Classification: &sample.Classification{Scores: map[sample.ActivityType]sample.ActivityScore{
			activityType: {Score: 1},
		}},
	})
}

func TestPathKeepnessRequiresDistance(t *testing.T) {
	th := defaultThresholds()
	it := New(KindPath)
	base := time.Now()
	it.AddSample(movingSampleAt(base, 0, 0, sample.ActivityWalking))
	it.AddSample(movingSampleAt(base.Add(90*time.Second), 0, 0.00001, sample.ActivityWalking))
	// Barely any distance traveled, should not be worth keeping despite duration.
	assert.False(t, it.IsWorthKeeping(th))
}

func TestDistanceIsSymmetric(t *testing.T) {
	th := defaultThresholds()
	base := time.Now()
	a := New(KindVisit)
	a.AddSample(sampleAt(base, 0, 0))
	a.AddSample(sampleAt(base.Add(time.Minute), 0, 0))

	b := New(KindVisit)
	b.AddSample(sampleAt(base.Add(time.Hour), 1, 1))
	b.AddSample(sampleAt(base.Add(time.Hour+time.Minute), 1, 1))

	assert.InDelta(t, Distance(a, b, th), Distance(b, a, th), 1e-6)
}

func TestTimeIntervalPositiveForGap(t *testing.T) {
	base := time.Now()
	a := New(KindVisit)
	a.AddSample(sampleAt(base, 0, 0))
	b := New(KindVisit)
	b.AddSample(sampleAt(base.Add(time.Hour), 0, 0))
	assert.Equal(t, time.Hour, TimeInterval(a, b))
}

func TestTimeIntervalNegativeForOverlap(t *testing.T) {
	base := time.Now()
	a := New(KindVisit)
	a.AddSample(sampleAt(base, 0, 0))
	a.AddSample(sampleAt(base.Add(10*time.Minute), 0, 0))
	b := New(KindVisit)
	b.AddSample(sampleAt(base.Add(5*time.Minute), 0, 0))
	b.AddSample(sampleAt(base.Add(15*time.Minute), 0, 0))
	assert.True(t, TimeInterval(a, b) < 0)
}

func TestContainsLocationVisit(t *testing.T) {
	th := defaultThresholds()
	it := New(KindVisit)
	base := time.Now()
	it.AddSample(sampleAt(base, 0, 0))
	it.AddSample(sampleAt(base.Add(time.Minute), 0, 0))
	assert.True(t, ContainsLocation(it, geo.Point{Lat: 0, Lon: 0}, 2, th))
	assert.False(t, ContainsLocation(it, geo.Point{Lat: 10, Lon: 10}, 2, th))
}
