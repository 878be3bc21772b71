// Package collectors polls values that no acquisition event carries and
// feeds them into the metrics package.
package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/metrics"
)

// TemperatureSource is the part of a camera array the collector reads.
type TemperatureSource interface {
	Cameras() []driver.CameraInfo
	ReadProperty(t driver.PropertyType, channel int) (camarray.PropertyReading, bool, error)
}

// TemperatureCollector polls the sensor temperature of every camera.
type TemperatureCollector struct {
	logger   logging.Logger
	source   TemperatureSource
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTemperatureCollector creates a collector polling source every interval.
func NewTemperatureCollector(source TemperatureSource, interval time.Duration) *TemperatureCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TemperatureCollector{
		logger:   logging.GetLogger("metrics"),
		source:   source,
		interval: interval,
	}
}

// Start begins collecting until ctx is cancelled or Stop is called.
func (c *TemperatureCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// Stop stops the collector and waits for the poll loop to exit.
func (c *TemperatureCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *TemperatureCollector) run(ctx context.Context) {
	defer c.wg.Done()
	c.logger.Info("Starting camera temperature collection", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// collect reads every camera once. Cameras without a readable temperature
// are skipped.
func (c *TemperatureCollector) collect() {
	for ch, info := range c.source.Cameras() {
		r, ok, err := c.source.ReadProperty(driver.Temperature, ch)
		if err != nil {
			c.logger.Warn("Failed to read camera temperature", "channel", ch, "error", err)
			continue
		}
		if !ok {
			continue
		}
		metrics.SetCameraTemperature(ch, info.Serial, celsius(r))
	}
}

// celsius converts a reading to degrees Celsius.
func celsius(r camarray.PropertyReading) float64 {
	if r.Unit == "K" {
		return float64(r.Value) - 273.15
	}
	return float64(r.Value)
}
