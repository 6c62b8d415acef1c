package persistence

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

// nullUUID converts a *uuid.UUID into a nullable TEXT bind value.
func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullInt(v int, ok bool) sql.NullInt64 {
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

// itemRow is the flattened form of an item written to the item table, in
// column order matching schema.sql.
type itemRow struct {
	id           string
	lastSaved    int64
	deleted      bool
	kind         string
	startDate    sql.NullInt64
	endDate      sql.NullInt64
	previousID   sql.NullString
	nextID       sql.NullString
	radiusMean   sql.NullFloat64
	radiusSD     sql.NullFloat64
	altitude     sql.NullFloat64
	stepCount    sql.NullInt64
	floorsUp     sql.NullInt64
	floorsDown   sql.NullInt64
	activityType sql.NullString
	centreLat    sql.NullFloat64
	centreLon    sql.NullFloat64
}

func encodeItem(it *item.Item, savedAt int64) itemRow {
	start, end := it.DateRange()
	row := itemRow{
		id:         it.ID().String(),
		lastSaved:  savedAt,
		deleted:    it.Deleted(),
		kind:       string(it.Kind()),
		previousID: nullUUID(it.PreviousID()),
		nextID:     nullUUID(it.NextID()),
	}
	if !start.IsZero() {
		row.startDate = sql.NullInt64{Int64: start.Unix(), Valid: true}
	}
	if !end.IsZero() {
		row.endDate = sql.NullInt64{Int64: end.Unix(), Valid: true}
	}
	mean, sd := it.RadiusMeanSD()
	row.radiusMean = sql.NullFloat64{Float64: mean, Valid: mean != 0 || sd != 0}
	row.radiusSD = sql.NullFloat64{Float64: sd, Valid: row.radiusMean.Valid}
	row.altitude = sql.NullFloat64{Float64: it.Altitude(), Valid: true}

	steps, ok := it.StepCount()
	row.stepCount = nullInt(steps, ok)
	up, ok := it.FloorsUp()
	row.floorsUp = nullInt(up, ok)
	down, ok := it.FloorsDown()
	row.floorsDown = nullInt(down, ok)

	if mode := it.ModeActivityType(); mode != "" {
		row.activityType = sql.NullString{String: string(mode), Valid: true}
	}
	centre := it.Centre()
	if !centre.IsZero() {
		row.centreLat = sql.NullFloat64{Float64: centre.Lat, Valid: true}
		row.centreLon = sql.NullFloat64{Float64: centre.Lon, Valid: true}
	}
	return row
}

// sampleRow is the flattened form of a sample written to the sample table,
// in column order matching schema.sql.
type sampleRow struct {
	id             string
	date           int64
	lastSaved      int64
	movingState    sql.NullString
	recordingState sql.NullString
	itemID         sql.NullString
	stepHz         sql.NullFloat64
	courseVariance sql.NullFloat64
	xyAcceleration sql.NullFloat64
	zAcceleration  sql.NullFloat64
	coreMotionType sql.NullString
	confirmedType  sql.NullString
	lat            sql.NullFloat64
	lon            sql.NullFloat64
	altitude       sql.NullFloat64
	hAcc           sql.NullFloat64
	vAcc           sql.NullFloat64
	speed          sql.NullFloat64
	course         sql.NullFloat64
}

func encodeSample(s *sample.Sample, savedAt int64) sampleRow {
	row := sampleRow{
		id:             s.ID.String(),
		date:           s.Date.Unix(),
		lastSaved:      savedAt,
		movingState:    nullString(string(s.MovingState)),
		recordingState: nullString(string(s.RecordingState)),
		itemID:         nullUUID(&s.ItemID),
		stepHz:         sql.NullFloat64{Float64: s.StepHz, Valid: true},
		courseVariance: sql.NullFloat64{Float64: s.CourseVariance, Valid: true},
		xyAcceleration: sql.NullFloat64{Float64: s.XYAcceleration, Valid: true},
		zAcceleration:  sql.NullFloat64{Float64: s.ZAcceleration, Valid: true},
		coreMotionType: nullString(s.CoreMotionType),
		confirmedType:  nullString(string(s.ConfirmedType)),
		altitude:       sql.NullFloat64{Float64: s.Altitude, Valid: true},
		hAcc:           sql.NullFloat64{Float64: s.HorizontalAccuracy, Valid: true},
		vAcc:           sql.NullFloat64{Float64: s.VerticalAccuracy, Valid: true},
		speed:          sql.NullFloat64{Float64: s.Speed, Valid: true},
		course:         sql.NullFloat64{Float64: s.Course, Valid: true},
	}
	if s.ItemID == uuid.Nil {
		row.itemID = sql.NullString{}
	}
	if s.HasUsableCoordinate() {
		row.lat = sql.NullFloat64{Float64: s.Coordinate.Lat, Valid: true}
		row.lon = sql.NullFloat64{Float64: s.Coordinate.Lon, Valid: true}
	}
	return row
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
