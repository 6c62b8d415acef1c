// Package classify implements the per-item classifier aggregator (§4.5)
// and the pluggable Classifier seam (§5 supplemented features). The
// aggregator itself is pure arithmetic; grounded loosely on the teacher's
// TrackedObject classification fields and the ClassifyAndUpdate call site
// in internal/lidar/pipeline/tracking_pipeline.go, generalised from a
// single best label to a full per-type score distribution.
package classify

import (
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

// TypeScore is one activity type's aggregated mean score/accuracy.
type TypeScore struct {
	Type          sample.ActivityType
	MeanScore     float64
	MeanAccuracy  float64
}

// Aggregate is an item-level classifier result: one TypeScore per
// recognised type, plus the propagated moreComing flag.
type Aggregate struct {
	Scores     []TypeScore
	MoreComing bool
}

// ArgMax returns the highest mean-score type, or "" if no type has a
// positive mean score (including when Scores is empty).
func (a Aggregate) ArgMax() sample.ActivityType {
	var best sample.ActivityType
	var bestScore float64
	for _, ts := range a.Scores {
		if ts.MeanScore > bestScore {
			best, bestScore = ts.Type, ts.MeanScore
		}
	}
	return best
}

// ScoreFor returns the mean score for t, 0 if absent.
func (a Aggregate) ScoreFor(t sample.ActivityType) float64 {
	for _, ts := range a.Scores {
		if ts.Type == t {
			return ts.MeanScore
		}
	}
	return 0
}

// withZeroedStationary returns a copy of a with the stationary score
// forced to zero, used to enforce invariant I6.
func (a Aggregate) withZeroedStationary() Aggregate {
	out := Aggregate{MoreComing: a.MoreComing, Scores: make([]TypeScore, len(a.Scores))}
	copy(out.Scores, a.Scores)
	for i, ts := range out.Scores {
		if ts.Type == sample.ActivityStationary {
			out.Scores[i].MeanScore = 0
		}
	}
	return out
}

// ComputeRaw computes the mean score and mean model accuracy per
// recognised activity type over samples, treating an absent score or
// accuracy as 0 (per §4.5). It does not enforce invariant I6; callers that
// need an item-level aggregate must call EnforceI6 with the item's
// 3-sigma radius before exposing the result.
func ComputeRaw(samples []*sample.Sample) Aggregate {
	n := len(samples)
	result := Aggregate{Scores: make([]TypeScore, 0, len(sample.RecognisedActivityTypes))}
	if n == 0 {
		for _, t := range sample.RecognisedActivityTypes {
			result.Scores = append(result.Scores, TypeScore{Type: t})
		}
		return result
	}

	moreComing := false
	for _, t := range sample.RecognisedActivityTypes {
		var sumScore, sumAccuracy float64
		for _, s := range samples {
			if s.Classification == nil {
				continue
			}
			if s.Classification.MoreComing {
				moreComing = true
			}
			if sc, ok := s.Classification.Scores[t]; ok {
				sumScore += sc.Score
				sumAccuracy += sc.ModelAccuracy
			}
		}
		result.Scores = append(result.Scores, TypeScore{
			Type:         t,
			MeanScore:    sumScore / float64(n),
			MeanAccuracy: sumAccuracy / float64(n),
		})
	}
	result.MoreComing = moreComing
	return result
}

// EnforceI6 zeroes the stationary score when radius3sd exceeds
// visitRadiusMax, per invariant I6. Safe to call repeatedly; it never
// mutates a's underlying slice.
func EnforceI6(a Aggregate, radius3sd, visitRadiusMax float64) Aggregate {
	if radius3sd > visitRadiusMax {
		return a.withZeroedStationary()
	}
	return a
}

// Compute is ComputeRaw followed by EnforceI6, for callers that already
// have the item's 3-sigma radius on hand.
func Compute(samples []*sample.Sample, radius3sd, visitRadiusMax float64) Aggregate {
	return EnforceI6(ComputeRaw(samples), radius3sd, visitRadiusMax)
}

// Classifier is the external pure-function collaborator: given a sample,
// returns its classification. The real ML model lives outside this
// module; Stub below is the deterministic seam used in tests and to run
// the engine end-to-end without a live model.
type Classifier interface {
	Classify(s *sample.Sample) (*sample.Classification, error)
}

// Stub is a deterministic Classifier: it derives a single confident score
// from the sample's moving state and speed, for wiring the engine
// end-to-end without a live model.
type Stub struct{}

func (Stub) Classify(s *sample.Sample) (*sample.Classification, error) {
	t := sample.ActivityUnknown
	switch {
	case s.MovingState == sample.MovingStationary:
		t = sample.ActivityStationary
	case s.Speed > 8/3.6 && s.Speed < 40/3.6:
		t = sample.ActivityCar
	case s.Speed > 0:
		t = sample.ActivityWalking
	}
	return &sample.Classification{
		Scores: map[sample.ActivityType]sample.ActivityScore{
			t: {Score: 1, ModelAccuracy: 1},
		},
	}, nil
}
