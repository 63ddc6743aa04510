package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openbms-io/supervisor/internal/config"
	"github.com/openbms-io/supervisor/internal/model"
)

const (
	defaultVMConnectTimeout = 10 * time.Second
	defaultVMWriteTimeout   = 5 * time.Second
)

// VictoriaMetricsSink writes InfluxDB line protocol to a VictoriaMetrics
// /write endpoint over HTTP, batched and flushed on a timer.
//
// Thread Safety: all methods are safe for concurrent use.
type VictoriaMetricsSink struct {
	url        string
	httpClient *http.Client

	connected bool
	mu        sync.RWMutex

	batch     []string
	batchMu   sync.Mutex
	batchSize int
	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup

	onError func(err error)
}

// ConnectVictoriaMetrics validates cfg, verifies connectivity via
// GET /health, and starts the background flush goroutine.
func ConnectVictoriaMetrics(ctx context.Context, cfg config.TSDBConfig) (*VictoriaMetricsSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 1
	}

	c := &VictoriaMetricsSink{
		url:        strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: defaultVMWriteTimeout},
		batch:      make([]string, 0, batchSize),
		batchSize:  batchSize,
		flushTick:  time.NewTicker(time.Duration(flushInterval) * time.Second),
		done:       make(chan struct{}),
		connected:  true,
	}

	healthCtx, cancel := context.WithTimeout(ctx, defaultVMConnectTimeout)
	defer cancel()
	if err := c.HealthCheck(healthCtx); err != nil {
		c.connected = false
		return nil, fmt.Errorf("%w: health check failed: %w", ErrConnectionFailed, err)
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c, nil
}

func (c *VictoriaMetricsSink) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.flushTick.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// Close stops the flush timer, drains the goroutine, and flushes any
// remaining batched lines.
func (c *VictoriaMetricsSink) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.flushTick.Stop()
	close(c.done)
	c.wg.Wait()
	c.Flush()
	return nil
}

// HealthCheck performs a GET /health against VictoriaMetrics.
func (c *VictoriaMetricsSink) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *VictoriaMetricsSink) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback invoked when an async flush fails.
func (c *VictoriaMetricsSink) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

func (c *VictoriaMetricsSink) addLine(line string) {
	if !c.IsConnected() {
		return
	}
	c.batchMu.Lock()
	c.batch = append(c.batch, line)
	shouldFlush := len(c.batch) >= c.batchSize
	c.batchMu.Unlock()

	if shouldFlush {
		c.Flush()
	}
}

// Flush sends all pending lines to VictoriaMetrics in one POST.
// Safe to call concurrently; a no-op when the batch is empty.
func (c *VictoriaMetricsSink) Flush() {
	c.batchMu.Lock()
	if len(c.batch) == 0 {
		c.batchMu.Unlock()
		return
	}
	lines := c.batch
	c.batch = make([]string, 0, c.batchSize)
	c.batchMu.Unlock()

	body := strings.Join(lines, "\n")
	ctx, cancel := context.WithTimeout(context.Background(), defaultVMWriteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/write", bytes.NewBufferString(body))
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		c.reportError(fmt.Errorf("%w: HTTP %d", ErrWriteFailed, resp.StatusCode))
	}
}

func (c *VictoriaMetricsSink) reportError(err error) {
	c.mu.RLock()
	callback := c.onError
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// WritePoints mirrors an uploaded batch into VictoriaMetrics, one line
// per point that carries a numeric present_value. Satisfies
// internal/uploader.Mirror; errors are reported via onError rather than
// returned, so this never fails the caller's upload pass.
func (c *VictoriaMetricsSink) WritePoints(ctx context.Context, points []model.ControllerPoint) error {
	now := time.Now()
	for _, p := range points {
		value, ok := pointValue(p)
		if !ok {
			continue
		}
		c.addLine(formatLineProtocol(measurementBACnetPoint, pointTags(p), map[string]interface{}{"value": value}, now))
	}
	return nil
}
