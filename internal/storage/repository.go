package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested alert does not exist.
	ErrNotFound = errors.New("storage: alert not found")
	// ErrStaleAlert indicates a conditional update lost the race: the
	// alert's last_notified_at changed since it was read.
	ErrStaleAlert = errors.New("storage: alert fired concurrently")
)

const (
	alertColumns = `id,
        owner,
        source_account,
        destination_account,
        amount,
        action,
        trigger_type,
        trigger_value,
        baseline_price,
        cooldown_seconds,
        status,
        topic_id,
        last_sequence,
        last_notified_at,
        created_at,
        updated_at`

	insertAlertSQL = `INSERT INTO alerts (
        id,
        owner,
        source_account,
        destination_account,
        amount,
        action,
        trigger_type,
        trigger_value,
        baseline_price,
        cooldown_seconds,
        status,
        topic_id,
        last_sequence,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
    );`

	listActiveAlertsSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE status = 'active'
    ORDER BY created_at;`

	listAlertsSQL = `SELECT ` + alertColumns + `
    FROM alerts
    ORDER BY updated_at DESC;`

	listAlertsByOwnerSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE owner = $1
    ORDER BY updated_at DESC;`

	getAlertSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE id = $1;`

	updateFiredSQL = `UPDATE alerts
    SET topic_id = $2,
        last_sequence = $3,
        last_notified_at = $4,
        updated_at = $4
    WHERE id = $1
      AND last_notified_at IS NOT DISTINCT FROM $5;`

	updateStatusSQL = `UPDATE alerts
    SET status = $2, updated_at = $3
    WHERE id = $1;`

	deleteAlertSQL = `DELETE FROM alerts WHERE id = $1;`

	insertSignalSQL = `INSERT INTO signals (
        alert_id,
        topic_id,
        sequence,
        kind,
        action,
        amount,
        trigger_type,
        trigger_value,
        baseline_price,
        current_price,
        published_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    RETURNING id;`

	listSignalsBetweenSQL = `SELECT
        id,
        alert_id,
        topic_id,
        sequence,
        kind,
        action,
        amount,
        trigger_type,
        trigger_value,
        baseline_price,
        current_price,
        published_at
    FROM signals
    WHERE published_at >= $1
      AND published_at < $2
    ORDER BY published_at;`

	listRecentSignalsSQL = `SELECT
        id,
        alert_id,
        topic_id,
        sequence,
        kind,
        action,
        amount,
        trigger_type,
        trigger_value,
        baseline_price,
        current_price,
        published_at
    FROM signals
    ORDER BY published_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for alert persistence.
type AlertStore interface {
	ListActive(ctx context.Context) ([]Alert, error)
	ListAlerts(ctx context.Context, owner string) ([]Alert, error)
	GetAlert(ctx context.Context, id string) (Alert, error)
	CreateAlert(ctx context.Context, alert Alert) error
	UpdateFired(ctx context.Context, id, topicID string, sequence uint64, firedAt time.Time, prevNotifiedAt *time.Time) error
	UpdateStatus(ctx context.Context, id, status string) error
	DeleteAlert(ctx context.Context, id string) error
}

// SignalStore defines operations for the published-signal audit trail.
type SignalStore interface {
	InsertSignal(ctx context.Context, record SignalRecord) (SignalRecord, error)
	ListSignalsBetween(ctx context.Context, from, to time.Time) ([]SignalRecord, error)
	ListRecentSignals(ctx context.Context, limit int) ([]SignalRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to alerts and signals.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListActive returns all alerts eligible for evaluation.
func (s *Store) ListActive(ctx context.Context) ([]Alert, error) {
	return s.listAlerts(ctx, listActiveAlertsSQL)
}

// ListAlerts returns all alerts, optionally filtered by owner.
func (s *Store) ListAlerts(ctx context.Context, owner string) ([]Alert, error) {
	if owner != "" {
		return s.listAlerts(ctx, listAlertsByOwnerSQL, owner)
	}
	return s.listAlerts(ctx, listAlertsSQL)
}

func (s *Store) listAlerts(ctx context.Context, query string, args ...any) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// GetAlert fetches a single alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}

	rows, queryErr := pool.Query(ctx, getAlertSQL, id)
	if queryErr != nil {
		return Alert{}, fmt.Errorf("get alert: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Alert{}, rows.Err()
		}
		return Alert{}, ErrNotFound
	}
	return scanAlert(rows)
}

// CreateAlert persists a new alert record.
func (s *Store) CreateAlert(ctx context.Context, alert Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertAlertSQL,
		alert.ID,
		nullable(alert.Owner),
		alert.SourceAccount,
		nullable(alert.DestinationAccount),
		alert.Amount.String(),
		alert.Action,
		alert.TriggerType,
		alert.TriggerValue,
		alert.BaselinePrice,
		alert.CooldownSeconds,
		alert.Status,
		nullable(alert.TopicID),
		int64(alert.LastSequence),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert alert: %w", execErr)
	}
	return nil
}

// UpdateFired records a successful firing. The update is conditional on
// last_notified_at being unchanged since the alert was read, so two
// overlapping passes cannot both claim the same firing; the loser gets
// ErrStaleAlert.
func (s *Store) UpdateFired(ctx context.Context, id, topicID string, sequence uint64, firedAt time.Time, prevNotifiedAt *time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var prev any
	if prevNotifiedAt != nil {
		prev = *prevNotifiedAt
	}

	cmdTag, execErr := pool.Exec(ctx, updateFiredSQL, id, topicID, int64(sequence), firedAt, prev)
	if execErr != nil {
		return fmt.Errorf("update fired alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStaleAlert
	}
	return nil
}

// UpdateStatus transitions an alert's lifecycle status.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateStatusSQL, id, status, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("update alert status: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAlert removes an alert by id.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAlertSQL, id)
	if execErr != nil {
		return fmt.Errorf("delete alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSignal appends a published signal to the audit trail.
func (s *Store) InsertSignal(ctx context.Context, record SignalRecord) (SignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SignalRecord{}, err
	}

	row := pool.QueryRow(ctx, insertSignalSQL,
		record.AlertID,
		record.TopicID,
		int64(record.Sequence),
		record.Kind,
		record.Action,
		record.Amount.String(),
		record.TriggerType,
		record.TriggerValue,
		record.BaselinePrice,
		record.CurrentPrice,
		record.PublishedAt,
	)

	if scanErr := row.Scan(&record.ID); scanErr != nil {
		return SignalRecord{}, fmt.Errorf("insert signal: %w", scanErr)
	}
	return record, nil
}

// ListSignalsBetween lists signals within a time window.
func (s *Store) ListSignalsBetween(ctx context.Context, from, to time.Time) ([]SignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSignalsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list signals between: %w", queryErr)
	}
	defer rows.Close()

	return collectSignals(rows, 0)
}

// ListRecentSignals lists the most recent signals ordered by descending publish time.
func (s *Store) ListRecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSignalsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent signals: %w", queryErr)
	}
	defer rows.Close()

	return collectSignals(rows, limit)
}

func collectSignals(rows pgx.Rows, sizeHint int) ([]SignalRecord, error) {
	records := make([]SignalRecord, 0, sizeHint)
	for rows.Next() {
		record, scanErr := scanSignal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanAlert(rows pgx.Rows) (Alert, error) {
	var (
		owner        sql.NullString
		destination  sql.NullString
		amountStr    string
		topicID      sql.NullString
		lastSequence int64
		lastNotified sql.NullTime
		alert        Alert
	)

	if err := rows.Scan(
		&alert.ID,
		&owner,
		&alert.SourceAccount,
		&destination,
		&amountStr,
		&alert.Action,
		&alert.TriggerType,
		&alert.TriggerValue,
		&alert.BaselinePrice,
		&alert.CooldownSeconds,
		&alert.Status,
		&topicID,
		&lastSequence,
		&lastNotified,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return Alert{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse alert amount: %w", err)
	}
	alert.Amount = amount

	alert.Owner = owner.String
	alert.DestinationAccount = destination.String
	alert.TopicID = topicID.String
	alert.LastSequence = uint64(lastSequence)
	if lastNotified.Valid {
		ts := lastNotified.Time
		alert.LastNotifiedAt = &ts
	}

	return alert, nil
}

func scanSignal(rows pgx.Rows) (SignalRecord, error) {
	var (
		record    SignalRecord
		sequence  int64
		amountStr string
	)

	if err := rows.Scan(
		&record.ID,
		&record.AlertID,
		&record.TopicID,
		&sequence,
		&record.Kind,
		&record.Action,
		&amountStr,
		&record.TriggerType,
		&record.TriggerValue,
		&record.BaselinePrice,
		&record.CurrentPrice,
		&record.PublishedAt,
	); err != nil {
		return SignalRecord{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return SignalRecord{}, fmt.Errorf("parse signal amount: %w", err)
	}
	record.Amount = amount
	record.Sequence = uint64(sequence)

	return record, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
