package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
)

func TestNewMintsUniqueID(t *testing.T) {
	a := New(Raw{Date: time.Now()})
	b := New(Raw{Date: time.Now()})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestHasUsableCoordinate(t *testing.T) {
	cases := []struct {
		name string
		s    *Sample
		want bool
	}{
		{"no location", New(Raw{HasLocation: false}), false},
		{"zero coordinate", New(Raw{HasLocation: true, Coordinate: geo.Point{}}), false},
		{"negative accuracy", New(Raw{HasLocation: true, Coordinate: geo.Point{Lat: 1, Lon: 1}, HorizontalAccuracy: -1}), false},
		{"usable", New(Raw{HasLocation: true, Coordinate: geo.Point{Lat: 1, Lon: 1}, HorizontalAccuracy: 5}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.s.HasUsableCoordinate())
		})
	}
}

func TestEffectiveActivityTypePrefersConfirmed(t *testing.T) {
	s := New(Raw{Classification: &Classification{Scores: map[ActivityType]ActivityScore{
		ActivityWalking: {Score: 0.9},
	}}})
	assert.Equal(t, ActivityWalking, s.EffectiveActivityType())

	s.ConfirmedType = ActivityCycling
	assert.Equal(t, ActivityCycling, s.EffectiveActivityType())
}

func TestEffectiveActivityTypeUnclassifiedIsEmpty(t *testing.T) {
	s := New(Raw{})
	assert.Equal(t, ActivityType(""), s.EffectiveActivityType())
}

func TestTopTypePicksHighestScore(t *testing.T) {
	c := &Classification{Scores: map[ActivityType]ActivityScore{
		ActivityWalking: {Score: 0.2},
		ActivityCar:     {Score: 0.7},
		ActivityRunning: {Score: 0.1},
	}}
	assert.Equal(t, ActivityCar, c.TopType())
}

func TestTimeOfDay(t *testing.T) {
	s := New(Raw{Date: time.Date(2026, 1, 2, 14, 30, 0, 0, time.UTC)})
	assert.Equal(t, 14*time.Hour+30*time.Minute, s.TimeOfDay(nil))
}
