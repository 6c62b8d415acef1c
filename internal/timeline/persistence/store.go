package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

// SQLiteStore implements store.Persister: a single transactional batch
// write per SaveBatch call, grounded on the teacher's track-store pattern
// of one prepared INSERT ... ON CONFLICT per entity inside one *sql.Tx.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore wraps an already-opened DB as a store.Persister.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const itemUpsert = `
INSERT INTO item (
	id, lastSaved, deleted, kind, startDate, endDate, previousId, nextId,
	radiusMean, radiusSD, altitude, stepCount, floorsUp, floorsDown,
	activityType, centreLat, centreLon
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	lastSaved=excluded.lastSaved, deleted=excluded.deleted, kind=excluded.kind,
	startDate=excluded.startDate, endDate=excluded.endDate,
	previousId=excluded.previousId, nextId=excluded.nextId,
	radiusMean=excluded.radiusMean, radiusSD=excluded.radiusSD,
	altitude=excluded.altitude, stepCount=excluded.stepCount,
	floorsUp=excluded.floorsUp, floorsDown=excluded.floorsDown,
	activityType=excluded.activityType, centreLat=excluded.centreLat,
	centreLon=excluded.centreLon
`

const sampleUpsert = `
INSERT INTO sample (
	id, date, lastSaved, movingState, recordingState, itemId, stepHz,
	courseVariance, xyAcceleration, zAcceleration, coreMotionType,
	confirmedType, lat, lon, altitude, hAcc, vAcc, speed, course
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	date=excluded.date, lastSaved=excluded.lastSaved,
	movingState=excluded.movingState, recordingState=excluded.recordingState,
	itemId=excluded.itemId, stepHz=excluded.stepHz,
	courseVariance=excluded.courseVariance, xyAcceleration=excluded.xyAcceleration,
	zAcceleration=excluded.zAcceleration, coreMotionType=excluded.coreMotionType,
	confirmedType=excluded.confirmedType, lat=excluded.lat, lon=excluded.lon,
	altitude=excluded.altitude, hAcc=excluded.hAcc, vAcc=excluded.vAcc,
	speed=excluded.speed, course=excluded.course
`

// SaveBatch writes items then samples inside a single transaction. Items
// are written first so a sample's itemId foreign key always resolves
// within the same transaction, even for a brand new item/sample pair.
func (st *SQLiteStore) SaveBatch(items []*item.Item, samples []*sample.Sample) error {
	tx, err := st.db.Begin()
	if err != nil {
		return fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	itemStmt, err := tx.Prepare(itemUpsert)
	if err != nil {
		return fmt.Errorf("persistence: prepare item upsert: %w", err)
	}
	defer itemStmt.Close()

	for _, it := range items {
		row := encodeItem(it, now)
		if _, err := itemStmt.Exec(
			row.id, row.lastSaved, boolToInt(row.deleted), row.kind,
			row.startDate, row.endDate, row.previousID, row.nextID,
			row.radiusMean, row.radiusSD, row.altitude,
			row.stepCount, row.floorsUp, row.floorsDown,
			row.activityType, row.centreLat, row.centreLon,
		); err != nil {
			return fmt.Errorf("persistence: save item %s: %w", it.ID(), err)
		}
	}

	sampleStmt, err := tx.Prepare(sampleUpsert)
	if err != nil {
		return fmt.Errorf("persistence: prepare sample upsert: %w", err)
	}
	defer sampleStmt.Close()

	for _, s := range samples {
		row := encodeSample(s, now)
		if _, err := sampleStmt.Exec(
			row.id, row.date, row.lastSaved, row.movingState, row.recordingState,
			row.itemID, row.stepHz, row.courseVariance, row.xyAcceleration,
			row.zAcceleration, row.coreMotionType, row.confirmedType,
			row.lat, row.lon, row.altitude, row.hAcc, row.vAcc, row.speed, row.course,
		); err != nil {
			return fmt.Errorf("persistence: save sample %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CountRows reports the row count of table, used by debug endpoints and
// tests. table must be a known schema table name, never user input.
func (db *DB) CountRows(table string) (int, error) {
	var n int
	row := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table))
	if err := row.Scan(&n); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
