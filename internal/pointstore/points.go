package pointstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

// nullFloat/nullInt/nullBool convert the *T optional-property fields on
// model.ControllerPoint into driver-friendly nullable values.
func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert persists a single point reading.
func (db *DB) Insert(ctx context.Context, p model.ControllerPoint) (uint64, error) {
	ids, err := db.BulkInsert(ctx, []model.ControllerPoint{p})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// BulkInsert persists many point readings in a single transaction,
// matching the bulk-insert primitive the design monitoring loop
// relies on for per-cycle persistence. Returns the assigned row ids in
// the same order as points. The whole transaction is retried via
// WithRetry on transient lock-contention errors.
func (db *DB) BulkInsert(ctx context.Context, points []model.ControllerPoint) ([]uint64, error) {
	if len(points) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(points))
	err := WithRetry(ctx, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning bulk insert transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // no-op after commit

		stmt, err := tx.PrepareContext(ctx, insertPointSQL)
		if err != nil {
			return fmt.Errorf("preparing insert statement: %w", err)
		}
		defer stmt.Close()

		for i, p := range points {
			res, err := stmt.ExecContext(ctx, insertPointArgs(p)...)
			if err != nil {
				return fmt.Errorf("inserting point %s: %w", p.ObjectKey(), err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading inserted id: %w", err)
			}
			ids[i] = uint64(id)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing bulk insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

const insertPointSQL = `
INSERT INTO controller_points (
	iot_device_point_id, controller_id, object_type, object_instance,
	controller_ip, controller_port, controller_device_instance,
	present_value, units, created_at, created_at_unix_milli,
	is_uploaded, updated_at,
	status_flags, event_state, out_of_service, reliability, error_info,
	min_pres_value, max_pres_value, high_limit, low_limit, resolution,
	priority_array, relinquish_default, cov_increment,
	time_delay, time_delay_normal, notification_class, notify_type, deadband,
	limit_enable, event_enable, acked_transitions, event_time_stamps,
	event_message_texts, event_message_texts_config,
	event_algorithm_inhibit, event_algorithm_inhibit_ref,
	reliability_evaluation_inhibit, description, object_name
) VALUES (
	?, ?, ?, ?,
	?, ?, ?,
	?, ?, ?, ?,
	?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?,
	?, ?,
	?, ?, ?
)`

func insertPointArgs(p model.ControllerPoint) []any {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return []any{
		p.IoTDevicePointID, p.ControllerID, p.ObjectType, p.ObjectInstance,
		p.ControllerIP, p.ControllerPort, p.ControllerDeviceID,
		nullString(p.PresentValue), nullString(p.Units), p.CreatedAt.Format(time.RFC3339), p.CreatedAtUnixMilli,
		p.IsUploaded, p.UpdatedAt.Format(time.RFC3339),
		nullString(p.StatusFlags), nullString(p.EventState), p.OutOfService, nullString(p.Reliability), nullString(p.ErrorInfo),
		nullFloat(p.MinPresValue), nullFloat(p.MaxPresValue), nullFloat(p.HighLimit), nullFloat(p.LowLimit), nullFloat(p.Resolution),
		nullString(p.PriorityArray), nullFloat(p.RelinquishDefault), nullFloat(p.CovIncrement),
		nullInt(p.TimeDelay), nullInt(p.TimeDelayNormal), nullInt(p.NotificationClass), nullString(p.NotifyType), nullFloat(p.Deadband),
		nullString(p.LimitEnable), nullString(p.EventEnable), nullString(p.AckedTransitions), nullString(p.EventTimeStamps),
		nullString(p.EventMessageTexts), nullString(p.EventMessageTextsConfig),
		nullBool(p.EventAlgorithmInhibit), nullString(p.EventAlgorithmInhibitRef),
		nullBool(p.ReliabilityEvaluationInhibit), nullString(p.Description), nullString(p.ObjectName),
	}
}

const selectPointColumns = `
	id, iot_device_point_id, controller_id, object_type, object_instance,
	controller_ip, controller_port, controller_device_instance,
	present_value, units, created_at, created_at_unix_milli,
	is_uploaded, updated_at,
	status_flags, event_state, out_of_service, reliability, error_info,
	min_pres_value, max_pres_value, high_limit, low_limit, resolution,
	priority_array, relinquish_default, cov_increment,
	time_delay, time_delay_normal, notification_class, notify_type, deadband,
	limit_enable, event_enable, acked_transitions, event_time_stamps,
	event_message_texts, event_message_texts_config,
	event_algorithm_inhibit, event_algorithm_inhibit_ref,
	reliability_evaluation_inhibit, description, object_name
`

func scanPoint(row interface{ Scan(...any) error }) (model.ControllerPoint, error) {
	var p model.ControllerPoint
	var presentValue, units, statusFlags, eventState, reliability, errorInfo sql.NullString
	var priorityArray, notifyType, limitEnable, eventEnable, ackedTransitions sql.NullString
	var eventTimeStamps, eventMessageTexts, eventMessageTextsConfig, eventAlgorithmInhibitRef sql.NullString
	var description, objectName sql.NullString
	var createdAt, updatedAt string
	var minPresValue, maxPresValue, highLimit, lowLimit, resolution sql.NullFloat64
	var relinquishDefault, covIncrement, deadband sql.NullFloat64
	var timeDelay, timeDelayNormal, notificationClass sql.NullInt64
	var outOfService, eventAlgorithmInhibit, reliabilityEvaluationInhibit sql.NullBool

	err := row.Scan(
		&p.ID, &p.IoTDevicePointID, &p.ControllerID, &p.ObjectType, &p.ObjectInstance,
		&p.ControllerIP, &p.ControllerPort, &p.ControllerDeviceID,
		&presentValue, &units, &createdAt, &p.CreatedAtUnixMilli,
		&p.IsUploaded, &updatedAt,
		&statusFlags, &eventState, &outOfService, &reliability, &errorInfo,
		&minPresValue, &maxPresValue, &highLimit, &lowLimit, &resolution,
		&priorityArray, &relinquishDefault, &covIncrement,
		&timeDelay, &timeDelayNormal, &notificationClass, &notifyType, &deadband,
		&limitEnable, &eventEnable, &ackedTransitions, &eventTimeStamps,
		&eventMessageTexts, &eventMessageTextsConfig,
		&eventAlgorithmInhibit, &eventAlgorithmInhibitRef,
		&reliabilityEvaluationInhibit, &description, &objectName,
	)
	if err != nil {
		return model.ControllerPoint{}, err
	}

	p.PresentValue = presentValue.String
	p.Units = units.String
	p.StatusFlags = statusFlags.String
	p.EventState = eventState.String
	p.Reliability = reliability.String
	p.ErrorInfo = errorInfo.String
	p.PriorityArray = priorityArray.String
	p.NotifyType = notifyType.String
	p.LimitEnable = limitEnable.String
	p.EventEnable = eventEnable.String
	p.AckedTransitions = ackedTransitions.String
	p.EventTimeStamps = eventTimeStamps.String
	p.EventMessageTexts = eventMessageTexts.String
	p.EventMessageTextsConfig = eventMessageTextsConfig.String
	p.EventAlgorithmInhibitRef = eventAlgorithmInhibitRef.String
	p.Description = description.String
	p.ObjectName = objectName.String
	p.OutOfService = outOfService.Bool

	if minPresValue.Valid {
		p.MinPresValue = &minPresValue.Float64
	}
	if maxPresValue.Valid {
		p.MaxPresValue = &maxPresValue.Float64
	}
	if highLimit.Valid {
		p.HighLimit = &highLimit.Float64
	}
	if lowLimit.Valid {
		p.LowLimit = &lowLimit.Float64
	}
	if resolution.Valid {
		p.Resolution = &resolution.Float64
	}
	if relinquishDefault.Valid {
		p.RelinquishDefault = &relinquishDefault.Float64
	}
	if covIncrement.Valid {
		p.CovIncrement = &covIncrement.Float64
	}
	if deadband.Valid {
		p.Deadband = &deadband.Float64
	}
	if timeDelay.Valid {
		v := int(timeDelay.Int64)
		p.TimeDelay = &v
	}
	if timeDelayNormal.Valid {
		v := int(timeDelayNormal.Int64)
		p.TimeDelayNormal = &v
	}
	if notificationClass.Valid {
		v := int(notificationClass.Int64)
		p.NotificationClass = &v
	}
	if eventAlgorithmInhibit.Valid {
		p.EventAlgorithmInhibit = &eventAlgorithmInhibit.Bool
	}
	if reliabilityEvaluationInhibit.Valid {
		p.ReliabilityEvaluationInhibit = &reliabilityEvaluationInhibit.Bool
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}

// GetByController returns all persisted points for a single controller,
// most recent first.
func (db *DB) GetByController(ctx context.Context, controllerID string) ([]model.ControllerPoint, error) {
	query := "SELECT " + selectPointColumns + " FROM controller_points WHERE controller_id = ? ORDER BY created_at DESC"
	rows, err := db.QueryContext(ctx, query, controllerID)
	if err != nil {
		return nil, fmt.Errorf("querying points for controller %s: %w", controllerID, err)
	}
	defer rows.Close()
	return scanPointRows(rows)
}

// GetPending returns up to limit points awaiting upload
// (is_uploaded=false), oldest first, matching the uploader's drain
// order.
func (db *DB) GetPending(ctx context.Context, limit int) ([]model.ControllerPoint, error) {
	query := "SELECT " + selectPointColumns + " FROM controller_points WHERE is_uploaded = 0 ORDER BY created_at ASC LIMIT ?"
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending points: %w", err)
	}
	defer rows.Close()
	return scanPointRows(rows)
}

func scanPointRows(rows *sql.Rows) ([]model.ControllerPoint, error) {
	var points []model.ControllerPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning point row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}
	return points, nil
}

// MarkUploaded flips is_uploaded=true for the given row ids. Per the
// "Open Question" decision recorded in DESIGN.md, ids containing a zero
// value are silently skipped rather than attempted (a ControllerPoint's
// ID stays zero until the row is persisted, so a zero id names no
// stored row) — the skip count is returned so callers can log it
// rather than swallow it entirely.
func (db *DB) MarkUploaded(ctx context.Context, ids []uint64) (skipped int, err error) {
	var toMark []uint64
	for _, id := range ids {
		if id == 0 {
			skipped++
			continue
		}
		toMark = append(toMark, id)
	}
	if len(toMark) == 0 {
		return skipped, nil
	}

	placeholders := make([]string, len(toMark))
	args := make([]any, len(toMark)+1)
	args[0] = time.Now().UTC().Format(time.RFC3339)
	for i, id := range toMark {
		placeholders[i] = "?"
		args[i+1] = id
	}

	query := fmt.Sprintf(
		"UPDATE controller_points SET is_uploaded = 1, updated_at = ? WHERE id IN (%s)",
		strings.Join(placeholders, ","),
	)
	err = WithRetry(ctx, func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return skipped, fmt.Errorf("marking points uploaded: %w", err)
	}
	return skipped, nil
}

// DeleteUploaded removes rows already marked uploaded and older than
// olderThan, the sole retirement path invariant that
// points only ever transition false->true, never back.
func (db *DB) DeleteUploaded(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := WithRetry(ctx, func(ctx context.Context) error {
		res, err := db.ExecContext(ctx,
			"DELETE FROM controller_points WHERE is_uploaded = 1 AND updated_at < ?",
			olderThan.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting uploaded points: %w", err)
	}
	return n, nil
}
