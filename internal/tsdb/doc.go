// Package tsdb provides optional time-series mirrors for uploaded BACnet
// point values.
//
// Two sinks are available, selected independently by config.TSDBConfig
// and config.InfluxDBConfig:
//
//   - VictoriaMetricsSink writes InfluxDB line protocol over HTTP to a
//     VictoriaMetrics /write endpoint, batched and flushed on a timer.
//   - InfluxDBSink uses the official influxdb-client-go v2 client's
//     non-blocking write API.
//
// Both satisfy internal/uploader.Mirror: a best-effort, non-fatal
// WritePoints(ctx, []model.ControllerPoint) error hook run after every
// successful upload batch. Neither sink is required for the supervisor
// to function; a disabled or unreachable sink only loses the mirrored
// telemetry, never the upload itself.
package tsdb
