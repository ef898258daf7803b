package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// BatchRun is a persisted automation run, one row per RunBatch invocation.
type BatchRun struct {
	ID           int       `json:"id"`
	Site         string    `json:"site"`
	TotalRecords int       `json:"total_records"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type BatchRunModel struct {
	DB *sql.DB
}

func NewBatchRunModel(db *sql.DB) *BatchRunModel {
	return &BatchRunModel{DB: db}
}

// Create stores a finished batch along with every per-record outcome.
func (m *BatchRunModel) Create(site string, startedAt, finishedAt time.Time, result BatchResult) (*BatchRun, error) {
	run := &BatchRun{
		Site:         site,
		TotalRecords: result.TotalRecords,
		SuccessCount: result.SuccessCount,
		FailedCount:  result.FailedCount,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}

	query := `
		INSERT INTO batch_runs (site, total_records, success_count, failed_count, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := m.DB.QueryRow(query, site, result.TotalRecords, result.SuccessCount, result.FailedCount,
		startedAt, finishedAt, time.Now()).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, rec := range result.Records {
		stats, _ := json.Marshal(rec.FieldStats)
		_, err = m.DB.Exec(`
			INSERT INTO batch_records (run_id, record_index, success, failure_reason, error_detail, field_stats)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, run.ID, rec.Index, rec.Success, string(rec.Reason), rec.Error, stats)
		if err != nil {
			return nil, err
		}
	}

	return run, nil
}

// List returns recent runs, newest first.
func (m *BatchRunModel) List(limit int) ([]BatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.DB.Query(`
		SELECT id, site, total_records, success_count, failed_count, started_at, finished_at, created_at
		FROM batch_runs ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BatchRun
	for rows.Next() {
		var r BatchRun
		if err := rows.Scan(&r.ID, &r.Site, &r.TotalRecords, &r.SuccessCount, &r.FailedCount,
			&r.StartedAt, &r.FinishedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get loads one run and its per-record outcomes.
func (m *BatchRunModel) Get(id int) (*BatchRun, []RecordResult, error) {
	var r BatchRun
	err := m.DB.QueryRow(`
		SELECT id, site, total_records, success_count, failed_count, started_at, finished_at, created_at
		FROM batch_runs WHERE id = $1
	`, id).Scan(&r.ID, &r.Site, &r.TotalRecords, &r.SuccessCount, &r.FailedCount,
		&r.StartedAt, &r.FinishedAt, &r.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	rows, err := m.DB.Query(`
		SELECT record_index, success, failure_reason, error_detail, field_stats
		FROM batch_records WHERE run_id = $1 ORDER BY record_index
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []RecordResult
	for rows.Next() {
		var rec RecordResult
		var reason, detail string
		var stats []byte
		if err := rows.Scan(&rec.Index, &rec.Success, &reason, &detail, &stats); err != nil {
			return nil, nil, err
		}
		rec.Reason = FailureReason(reason)
		rec.Error = detail
		_ = json.Unmarshal(stats, &rec.FieldStats)
		records = append(records, rec)
	}
	return &r, records, rows.Err()
}
