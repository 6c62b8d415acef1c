// Package config loads the engine's tuning parameters from a JSON file.
// Every field is a pointer so a partial override file only replaces the
// fields it mentions; LoadTuningConfig fills the rest from Defaults().
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxTuningFileBytes = 1 << 20 // 1 MB

// TuningConfig carries every constant named in the persistence/recorder/
// merge sections of the engine design. Pointer fields distinguish "not
// set, use default" from "explicitly set to the zero value".
type TuningConfig struct {
	SamplesPerMinute            *float64 `json:"samplesPerMinute,omitempty"`
	ActivityTypeClassifySamples *bool    `json:"activityTypeClassifySamples,omitempty"`
	KeepDeletedItemsForSeconds  *float64 `json:"keepDeletedItemsFor,omitempty"`
	SaveBatchSize               *int     `json:"saveBatchSize,omitempty"`

	VisitRadiusMin   *float64 `json:"visitRadiusMin,omitempty"`
	VisitRadiusMax   *float64 `json:"visitRadiusMax,omitempty"`
	ModeShiftSpeedKph *float64 `json:"modeShiftSpeedKph,omitempty"`

	MinVisitKeeperDurationSeconds   *float64 `json:"minVisitKeeperDurationSeconds,omitempty"`
	MinPathKeeperDurationSeconds    *float64 `json:"minPathKeeperDurationSeconds,omitempty"`
	MinPathKeeperDistanceMeters     *float64 `json:"minPathKeeperDistanceMeters,omitempty"`
	MinDataGapKeeperDurationSeconds *float64 `json:"minDataGapKeeperDurationSeconds,omitempty"`

	// Merge scoring tunables (§4.8).
	MergeableDistanceMultiplier *float64 `json:"mergeableDistanceMultiplier,omitempty"`
	MergeableVisitPathFloorM    *float64 `json:"mergeableVisitPathFloorMeters,omitempty"`
	MergeForwardSteps           *int     `json:"mergeForwardSteps,omitempty"`
	MergeBackwardSteps          *int     `json:"mergeBackwardSteps,omitempty"`
	MergeBridgeEnabled          *bool    `json:"mergeBridgeEnabled,omitempty"`

	// Sleep-sample progressive thinning (§4.6): keep = floor(base + ageQuarterHours).
	SleepThinningBase *float64 `json:"sleepThinningBase,omitempty"`

	// Data-gap insertion threshold (§4.10).
	DataGapThresholdSeconds *float64 `json:"dataGapThresholdSeconds,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// Defaults returns the fully populated default configuration described in
// spec §6.
func Defaults() *TuningConfig {
	return &TuningConfig{
		SamplesPerMinute:            ptrFloat64(10),
		ActivityTypeClassifySamples: ptrBool(true),
		KeepDeletedItemsForSeconds:  ptrFloat64(3600),
		SaveBatchSize:               ptrInt(100),

		VisitRadiusMin:    ptrFloat64(10),
		VisitRadiusMax:    ptrFloat64(150),
		ModeShiftSpeedKph: ptrFloat64(8),

		MinVisitKeeperDurationSeconds:   ptrFloat64(120),
		MinPathKeeperDurationSeconds:    ptrFloat64(60),
		MinPathKeeperDistanceMeters:     ptrFloat64(20),
		MinDataGapKeeperDurationSeconds: ptrFloat64(12 * 3600),

		MergeableDistanceMultiplier: ptrFloat64(4),
		MergeableVisitPathFloorM:    ptrFloat64(150),
		MergeForwardSteps:           ptrInt(2),
		MergeBackwardSteps:          ptrInt(2),
		MergeBridgeEnabled:          ptrBool(true),

		SleepThinningBase: ptrFloat64(15),

		DataGapThresholdSeconds: ptrFloat64(5 * 60),
	}
}

// EmptyTuningConfig returns a TuningConfig with every field nil, useful as
// a base for building a partial-override file.
func EmptyTuningConfig() *TuningConfig { return &TuningConfig{} }

// merge overlays non-nil fields from override onto a copy of base.
func merge(base, override *TuningConfig) *TuningConfig {
	out := *base
	if override == nil {
		return &out
	}
	if override.SamplesPerMinute != nil {
		out.SamplesPerMinute = override.SamplesPerMinute
	}
	if override.ActivityTypeClassifySamples != nil {
		out.ActivityTypeClassifySamples = override.ActivityTypeClassifySamples
	}
	if override.KeepDeletedItemsForSeconds != nil {
		out.KeepDeletedItemsForSeconds = override.KeepDeletedItemsForSeconds
	}
	if override.SaveBatchSize != nil {
		out.SaveBatchSize = override.SaveBatchSize
	}
	if override.VisitRadiusMin != nil {
		out.VisitRadiusMin = override.VisitRadiusMin
	}
	if override.VisitRadiusMax != nil {
		out.VisitRadiusMax = override.VisitRadiusMax
	}
	if override.ModeShiftSpeedKph != nil {
		out.ModeShiftSpeedKph = override.ModeShiftSpeedKph
	}
	if override.MinVisitKeeperDurationSeconds != nil {
		out.MinVisitKeeperDurationSeconds = override.MinVisitKeeperDurationSeconds
	}
	if override.MinPathKeeperDurationSeconds != nil {
		out.MinPathKeeperDurationSeconds = override.MinPathKeeperDurationSeconds
	}
	if override.MinPathKeeperDistanceMeters != nil {
		out.MinPathKeeperDistanceMeters = override.MinPathKeeperDistanceMeters
	}
	if override.MinDataGapKeeperDurationSeconds != nil {
		out.MinDataGapKeeperDurationSeconds = override.MinDataGapKeeperDurationSeconds
	}
	if override.MergeableDistanceMultiplier != nil {
		out.MergeableDistanceMultiplier = override.MergeableDistanceMultiplier
	}
	if override.MergeableVisitPathFloorM != nil {
		out.MergeableVisitPathFloorM = override.MergeableVisitPathFloorM
	}
	if override.MergeForwardSteps != nil {
		out.MergeForwardSteps = override.MergeForwardSteps
	}
	if override.MergeBackwardSteps != nil {
		out.MergeBackwardSteps = override.MergeBackwardSteps
	}
	if override.MergeBridgeEnabled != nil {
		out.MergeBridgeEnabled = override.MergeBridgeEnabled
	}
	if override.SleepThinningBase != nil {
		out.SleepThinningBase = override.SleepThinningBase
	}
	if override.DataGapThresholdSeconds != nil {
		out.DataGapThresholdSeconds = override.DataGapThresholdSeconds
	}
	return &out
}

// LoadTuningConfig reads a JSON override file and layers it onto Defaults().
// Paths must end in .json and be under 1 MB; both are the kind of footgun
// this guard exists to catch early rather than via a cryptic decode error.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		return nil, fmt.Errorf("tuning config path %q must have a .json extension", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat tuning config: %w", err)
	}
	if info.Size() > maxTuningFileBytes {
		return nil, fmt.Errorf("tuning config %q is %d bytes, exceeds %d byte cap", path, info.Size(), maxTuningFileBytes)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning config: %w", err)
	}
	var override TuningConfig
	if err := json.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse tuning config: %w", err)
	}
	return merge(Defaults(), &override), nil
}

// MustLoadDefaultConfig loads path and falls back to Defaults() with a
// logged reason if that fails, mirroring the teacher's "never block
// startup on a missing tuning file" posture.
func MustLoadDefaultConfig(path string, warn func(format string, v ...interface{})) *TuningConfig {
	if path == "" {
		return Defaults()
	}
	cfg, err := LoadTuningConfig(path)
	if err != nil {
		if warn != nil {
			warn("tuning config %q not loaded, using defaults: %v", path, err)
		}
		return Defaults()
	}
	return cfg
}
