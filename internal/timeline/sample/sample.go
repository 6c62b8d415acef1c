// Package sample defines the engine's immutable observation type.
// Grounded on the teacher's TrackedObject classification fields
// (ObjectClass/ObjectConfidence) generalised from a single label to a
// per-activity-type score distribution, and on l5tracks.initTrack's
// uuid.NewString() id-minting idiom.
package sample

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
)

// MovingState is the raw-signal layer's stationary/moving classification.
type MovingState string

const (
	MovingStationary MovingState = "stationary"
	MovingMoving     MovingState = "moving"
	MovingUncertain  MovingState = "uncertain"
)

// RecordingState reflects the device's recording lifecycle at sample time.
type RecordingState string

const (
	RecordingRecording RecordingState = "recording"
	RecordingSleeping  RecordingState = "sleeping"
	RecordingWakeup    RecordingState = "wakeup"
	RecordingOff       RecordingState = "off"
)

// IsSleepLike reports whether the state belongs to the sleep-thinning
// family the recorder trims (§4.6 step 5).
func (r RecordingState) IsSleepLike() bool {
	return r == RecordingSleeping || r == RecordingWakeup
}

// ActivityType is a classifier label. The zero value means "unset".
type ActivityType string

const (
	ActivityStationary ActivityType = "stationary"
	ActivityWalking    ActivityType = "walking"
	ActivityRunning    ActivityType = "running"
	ActivityCycling    ActivityType = "cycling"
	ActivityCar        ActivityType = "car"
	ActivityTrain      ActivityType = "train"
	ActivityBus        ActivityType = "bus"
	ActivityAirplane   ActivityType = "airplane"
	ActivityUnknown    ActivityType = "unknown"
)

// RecognisedActivityTypes enumerates every type the classifier aggregator
// produces scores for.
var RecognisedActivityTypes = []ActivityType{
	ActivityStationary, ActivityWalking, ActivityRunning, ActivityCycling,
	ActivityCar, ActivityTrain, ActivityBus, ActivityAirplane, ActivityUnknown,
}

// ActivityScore pairs a classifier's confidence for one type with the
// model's self-reported accuracy at the time of scoring.
type ActivityScore struct {
	Score         float64
	ModelAccuracy float64
}

// Classification is one sample's classifier output: a score per activity
// type, plus a MoreComing flag the classifier sets when it expects to
// revise this sample's scores once more context arrives.
type Classification struct {
	Scores     map[ActivityType]ActivityScore
	MoreComing bool
}

// TopType returns the activity type with the highest score, or "" if the
// classification carries no scores.
func (c *Classification) TopType() ActivityType {
	if c == nil || len(c.Scores) == 0 {
		return ""
	}
	var best ActivityType
	var bestScore float64
	first := true
	for t, s := range c.Scores {
		if first || s.Score > bestScore {
			best, bestScore, first = t, s.Score, false
		}
	}
	return best
}

// Raw is what the recorder receives from the external raw-signal layer:
// an observation with no identity yet.
type Raw struct {
	Date               time.Time
	HasLocation        bool
	Coordinate         geo.Point
	Altitude           float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	Course             float64
	Speed              float64
	MovingState        MovingState
	RecordingState     RecordingState
	StepHz             float64
	CourseVariance     float64
	XYAcceleration     float64
	ZAcceleration      float64
	CoreMotionType     string
	Classification     *Classification
}

// Sample is the engine's identity-bearing observation. Mutation is
// restricted to ItemID (moved between items) and ConfirmedType (user
// correction); every other field is set at construction, except that the
// recorder may attach a Classification right after New, before routing.
type Sample struct {
	ID uuid.UUID

	Date               time.Time
	HasLocation        bool
	Coordinate         geo.Point
	Altitude           float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	Course             float64
	Speed              float64
	MovingState        MovingState
	RecordingState     RecordingState
	StepHz             float64
	CourseVariance     float64
	XYAcceleration     float64
	ZAcceleration      float64
	CoreMotionType     string
	Classification     *Classification
	ConfirmedType       ActivityType

	ItemID uuid.UUID
}

// New mints a Sample from a Raw observation.
func New(raw Raw) *Sample {
	return &Sample{
		ID:                 uuid.New(),
		Date:                raw.Date,
		HasLocation:        raw.HasLocation,
		Coordinate:         raw.Coordinate,
		Altitude:           raw.Altitude,
		HorizontalAccuracy: raw.HorizontalAccuracy,
		VerticalAccuracy:   raw.VerticalAccuracy,
		Course:             raw.Course,
		Speed:              raw.Speed,
		MovingState:        raw.MovingState,
		RecordingState:     raw.RecordingState,
		StepHz:             raw.StepHz,
		CourseVariance:     raw.CourseVariance,
		XYAcceleration:     raw.XYAcceleration,
		ZAcceleration:      raw.ZAcceleration,
		CoreMotionType:     raw.CoreMotionType,
		Classification:     raw.Classification,
	}
}

// HasUsableCoordinate reports whether the sample's location can feed
// geometry (centroid/radius/containment) computations.
func (s *Sample) HasUsableCoordinate() bool {
	if s == nil || !s.HasLocation {
		return false
	}
	if s.HorizontalAccuracy < 0 {
		return false
	}
	return !s.Coordinate.IsZero()
}

// EffectiveActivityType returns ConfirmedType when present, else the top
// scoring classified type, else "" (unclassified).
func (s *Sample) EffectiveActivityType() ActivityType {
	if s.ConfirmedType != "" {
		return s.ConfirmedType
	}
	return s.Classification.TopType()
}

// TimeOfDay returns the duration since local midnight for Date, in the
// given location (UTC if loc is nil).
func (s *Sample) TimeOfDay(loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	t := s.Date.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return t.Sub(midnight)
}
