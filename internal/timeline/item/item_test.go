package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

func sampleAt(t time.Time, lat, lon float64) *sample.Sample {
	return sample.New(sample.Raw{
		Date:               t,
		HasLocation:        true,
		Coordinate:         geo.Point{Lat: lat, Lon: lon},
		HorizontalAccuracy: 5,
		MovingState:        sample.MovingStationary,
	})
}

func TestAddSampleKeepsDateOrder(t *testing.T) {
	it := New(KindVisit)
	base := time.Now()
	s2 := sampleAt(base.Add(2*time.Second), 1, 1)
	s1 := sampleAt(base.Add(1*time.Second), 1, 1)
	s3 := sampleAt(base.Add(3*time.Second), 1, 1)

	it.AddSample(s2)
	it.AddSample(s1)
	it.AddSample(s3)

	got := it.Samples()
	assert.Equal(t, []*sample.Sample{s1, s2, s3}, got)
}

func TestAddSampleStampsItemID(t *testing.T) {
	it := New(KindVisit)
	s := sampleAt(time.Now(), 1, 1)
	it.AddSample(s)
	assert.Equal(t, it.ID(), s.ItemID)
}

func TestAddSampleToDeletedItemPanics(t *testing.T) {
	it := New(KindVisit)
	it.MarkDeleted()
	assert.Panics(t, func() {
		it.AddSample(sampleAt(time.Now(), 1, 1))
	})
}

func TestMarkDeletedRequiresEmptySamples(t *testing.T) {
	it := New(KindVisit)
	it.AddSample(sampleAt(time.Now(), 1, 1))
	assert.Panics(t, func() {
		it.MarkDeleted()
	})
}

func TestMarkDeletedNullsLinks(t *testing.T) {
	it := New(KindVisit)
	otherID := New(KindPath).ID()
	it.SetPreviousRaw(&otherID)
	it.MarkDeleted()
	assert.Nil(t, it.PreviousID())
	assert.Nil(t, it.NextID())
	assert.True(t, it.Deleted())
}

func TestSelfLinkPanics(t *testing.T) {
	it := New(KindVisit)
	id := it.ID()
	assert.Panics(t, func() {
		it.SetNextRaw(&id)
	})
}

func TestTakeAllSamplesEmptiesItem(t *testing.T) {
	it := New(KindVisit)
	it.AddSample(sampleAt(time.Now(), 1, 1))
	it.AddSample(sampleAt(time.Now().Add(time.Second), 1, 1))
	taken := it.TakeAllSamples()
	assert.Len(t, taken, 2)
	assert.Equal(t, 0, it.SampleCount())
}

func TestCacheInvalidatesOnSampleChange(t *testing.T) {
	it := New(KindVisit)
	base := time.Now()
	it.AddSample(sampleAt(base, 0, 0.001))
	c1 := it.Centre()
	it.AddSample(sampleAt(base.Add(time.Second), 0, -0.001))
	c2 := it.Centre()
	assert.NotEqual(t, c1, c2)
}

func TestIsDataGap(t *testing.T) {
	it := New(KindPath)
	s := sample.New(sample.Raw{Date: time.Now(), RecordingState: sample.RecordingOff})
	it.AddSample(s)
	assert.True(t, it.IsDataGap())
}

func TestIsNoloWhenNoUsableCoordinate(t *testing.T) {
	it := New(KindPath)
	it.AddSample(sample.New(sample.Raw{Date: time.Now(), HasLocation: false}))
	assert.True(t, it.IsNolo())
}
