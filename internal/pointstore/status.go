package pointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openbms-io/supervisor/internal/model"
)

const singletonGuard = 1

// UpsertDeviceStatus writes the single device status row using an
// INSERT ... ON CONFLICT DO UPDATE. Each call overwrites the whole row;
// the monitor's state-machine transitions are the caller.
func (db *DB) UpsertDeviceStatus(ctx context.Context, s model.DeviceStatus) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	err := WithRetry(ctx, func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO iot_device_status (
				singleton_guard, cpu_percent, memory_percent, disk_percent,
				temperature, uptime_seconds, load_average,
				monitoring_status, mqtt_connection_status, bacnet_connection_status,
				connected_device_count, monitored_point_count, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(singleton_guard) DO UPDATE SET
				cpu_percent = excluded.cpu_percent,
				memory_percent = excluded.memory_percent,
				disk_percent = excluded.disk_percent,
				temperature = excluded.temperature,
				uptime_seconds = excluded.uptime_seconds,
				load_average = excluded.load_average,
				monitoring_status = excluded.monitoring_status,
				mqtt_connection_status = excluded.mqtt_connection_status,
				bacnet_connection_status = excluded.bacnet_connection_status,
				connected_device_count = excluded.connected_device_count,
				monitored_point_count = excluded.monitored_point_count,
				updated_at = excluded.updated_at
		`,
			singletonGuard, nullFloat(s.CPUPercent), nullFloat(s.MemoryPercent), nullFloat(s.DiskPercent),
			nullFloat(s.Temperature), nullInt64(s.UptimeSeconds), nullFloat(s.LoadAverage),
			string(s.MonitoringStatus), string(s.MQTTConnectionStatus), string(s.BACnetConnectionStatus),
			s.ConnectedDeviceCount, s.MonitoredPointCount, s.UpdatedAt.Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting device status: %w", err)
	}
	return nil
}

// GetDeviceStatus returns the current device status row, or the zero
// value with MonitoringStatus=INITIALIZING if none has been written yet.
func (db *DB) GetDeviceStatus(ctx context.Context) (model.DeviceStatus, error) {
	row := db.QueryRowContext(ctx, `
		SELECT cpu_percent, memory_percent, disk_percent, temperature,
			uptime_seconds, load_average, monitoring_status,
			mqtt_connection_status, bacnet_connection_status,
			connected_device_count, monitored_point_count, updated_at
		FROM iot_device_status WHERE singleton_guard = ?
	`, singletonGuard)

	var s model.DeviceStatus
	var cpu, mem, disk, temp, load sql.NullFloat64
	var uptime sql.NullInt64
	var monitoringStatus, mqttStatus, bacnetStatus, updatedAt string

	err := row.Scan(&cpu, &mem, &disk, &temp, &uptime, &load,
		&monitoringStatus, &mqttStatus, &bacnetStatus,
		&s.ConnectedDeviceCount, &s.MonitoredPointCount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceStatus{MonitoringStatus: model.MonitoringInitializing}, nil
	}
	if err != nil {
		return model.DeviceStatus{}, fmt.Errorf("reading device status: %w", err)
	}

	if cpu.Valid {
		s.CPUPercent = &cpu.Float64
	}
	if mem.Valid {
		s.MemoryPercent = &mem.Float64
	}
	if disk.Valid {
		s.DiskPercent = &disk.Float64
	}
	if temp.Valid {
		s.Temperature = &temp.Float64
	}
	if load.Valid {
		s.LoadAverage = &load.Float64
	}
	if uptime.Valid {
		s.UptimeSeconds = &uptime.Int64
	}
	s.MonitoringStatus = model.MonitoringStatus(monitoringStatus)
	s.MQTTConnectionStatus = model.ConnectionStatus(mqttStatus)
	s.BACnetConnectionStatus = model.ConnectionStatus(bacnetStatus)
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		s.UpdatedAt = t
	}
	return s, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
