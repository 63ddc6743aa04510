package tsdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/openbms-io/supervisor/internal/config"
	"github.com/openbms-io/supervisor/internal/model"
)

const (
	defaultInfluxConnectTimeout = 10 * time.Second
	defaultInfluxPingTimeout    = 5 * time.Second
	millisecondsPerSecond       = 1000
)

// InfluxDBSink wraps the official InfluxDB v2 client's non-blocking
// write API.
//
// Thread Safety: all methods are safe for concurrent use.
type InfluxDBSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex

	onError func(err error)
	done    chan struct{}
}

// ConnectInfluxDB verifies connectivity with a ping, then configures a
// non-blocking, batched write API with an async error callback.
func ConnectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig) (*InfluxDBSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	const maxBatchSize = 100000
	const maxFlushIntervalSeconds = 3600

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	} else if batchSize > maxBatchSize {
		return nil, fmt.Errorf("batch_size %d exceeds maximum %d", batchSize, maxBatchSize)
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	} else if flushInterval > maxFlushIntervalSeconds {
		return nil, fmt.Errorf("flush_interval %d exceeds maximum %d seconds", flushInterval, maxFlushIntervalSeconds)
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(pingCtx, defaultInfluxConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &InfluxDBSink{
		client:    client,
		writeAPI:  writeAPI,
		connected: true,
		done:      make(chan struct{}),
	}

	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

func (c *InfluxDBSink) handleWriteErrors(errorsCh <-chan error) {
	for {
		select {
		case <-c.done:
			return
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			c.mu.RLock()
			callback := c.onError
			c.mu.RUnlock()
			if callback != nil {
				callback(err)
			}
		}
	}
}

// Close flushes pending writes, then stops the error-handler goroutine
// and closes the underlying client. Flush runs first so any error it
// produces still reaches the callback.
func (c *InfluxDBSink) Close() error {
	if c.client == nil {
		return nil
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()

	if c.done != nil {
		close(c.done)
	}
	c.client.Close()
	return nil
}

// HealthCheck performs an active ping against InfluxDB.
func (c *InfluxDBSink) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	checkCtx, cancel := context.WithTimeout(ctx, defaultInfluxPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *InfluxDBSink) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback invoked when an async write fails.
func (c *InfluxDBSink) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written. Safe to call
// after Close (no-op).
func (c *InfluxDBSink) Flush() {
	if c.writeAPI == nil {
		return
	}
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// WritePoints mirrors an uploaded batch into InfluxDB, one point per
// point that carries a numeric present_value. Satisfies
// internal/uploader.Mirror; write errors surface asynchronously via the
// onError callback rather than this return value.
func (c *InfluxDBSink) WritePoints(ctx context.Context, points []model.ControllerPoint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	now := time.Now()
	for _, p := range points {
		value, ok := pointValue(p)
		if !ok {
			continue
		}
		tags := pointTags(p)
		pt := write.NewPoint(measurementBACnetPoint, tags, map[string]interface{}{"value": value}, now)
		c.writeAPI.WritePoint(pt)
	}
	return nil
}
