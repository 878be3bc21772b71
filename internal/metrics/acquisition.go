// Package metrics exposes acquisition metrics to Prometheus and keeps a
// per-channel cache of the latest values for the status API.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camsync"

var (
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Acquisition rounds completed",
	})

	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "round_duration_seconds",
		Help:      "Time from waiting for frames to publishing decoded images",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	roundFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "round_fps",
		Help:      "Smoothed acquisition rounds per second",
	})

	channelFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fps",
		Help:      "Smoothed frames per second delivered on a channel",
	}, []string{"channel"})

	retrieveTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrieve_timeouts_total",
		Help:      "Buffer retrievals that hit the grab timeout",
	}, []string{"channel"})

	triggerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trigger_failures_total",
		Help:      "Software trigger writes that failed",
	}, []string{"channel"})

	distributionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "distribution_failures_total",
		Help:      "Rounds whose property distribution was aborted",
	})

	decodeBackend = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "decode_backend",
		Help:      "1 for the pixel decoder backend in use",
	}, []string{"backend"})

	snapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_total",
		Help:      "Frames written to disk",
	})

	cameraTemperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "temperature_celsius",
		Help:      "Sensor temperature reported by the camera",
	}, []string{"channel", "serial"})

	// Local cache for the status API.
	channelCache   = make(map[int]*ChannelMetrics)
	channelCacheMu sync.RWMutex
)

// ChannelMetrics holds the current values for one logical channel.
type ChannelMetrics struct {
	FPS              float64 `json:"fps"`
	RetrieveTimeouts uint64  `json:"retrieve_timeouts"`
	TriggerFailures  uint64  `json:"trigger_failures"`
	TemperatureC     float64 `json:"temperature_c,omitempty"`
}

// RecordRound records one completed round.
func RecordRound(seconds, fps float64, perChannel []float64) {
	roundsTotal.Inc()
	roundDuration.Observe(seconds)
	roundFPS.Set(fps)
	for ch, v := range perChannel {
		channelFPS.WithLabelValues(strconv.Itoa(ch)).Set(v)
		updateCache(ch, func(m *ChannelMetrics) { m.FPS = v })
	}
}

// IncRetrieveTimeout counts a grab timeout on a channel.
func IncRetrieveTimeout(channel int) {
	retrieveTimeouts.WithLabelValues(strconv.Itoa(channel)).Inc()
	updateCache(channel, func(m *ChannelMetrics) { m.RetrieveTimeouts++ })
}

// IncTriggerFailure counts a failed software trigger on a channel.
func IncTriggerFailure(channel int) {
	triggerFailures.WithLabelValues(strconv.Itoa(channel)).Inc()
	updateCache(channel, func(m *ChannelMetrics) { m.TriggerFailures++ })
}

// IncDistributionFailure counts an aborted property distribution.
func IncDistributionFailure() {
	distributionFailures.Inc()
}

// SetDecodeBackend marks backend as the active decoder backend.
func SetDecodeBackend(backend string) {
	decodeBackend.Reset()
	decodeBackend.WithLabelValues(backend).Set(1)
}

// IncSnapshots counts a frame written to disk.
func IncSnapshots() {
	snapshotsTotal.Inc()
}

// SetCameraTemperature records the sensor temperature of a channel.
func SetCameraTemperature(channel int, serial uint32, celsius float64) {
	cameraTemperature.WithLabelValues(strconv.Itoa(channel), strconv.FormatUint(uint64(serial), 10)).Set(celsius)
	updateCache(channel, func(m *ChannelMetrics) { m.TemperatureC = celsius })
}

// Reset clears every per-channel series and the cache. Called when an
// acquisition session ends so a new array starts from empty labels.
func Reset() {
	channelFPS.Reset()
	retrieveTimeouts.Reset()
	triggerFailures.Reset()
	cameraTemperature.Reset()
	decodeBackend.Reset()

	channelCacheMu.Lock()
	channelCache = make(map[int]*ChannelMetrics)
	channelCacheMu.Unlock()
}

// GetChannelMetrics returns the current values of a channel.
func GetChannelMetrics(channel int) *ChannelMetrics {
	channelCacheMu.RLock()
	defer channelCacheMu.RUnlock()
	if m, ok := channelCache[channel]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllChannelMetrics returns the current values of every channel.
func GetAllChannelMetrics() map[int]*ChannelMetrics {
	channelCacheMu.RLock()
	defer channelCacheMu.RUnlock()
	result := make(map[int]*ChannelMetrics, len(channelCache))
	for ch, m := range channelCache {
		dup := *m
		result[ch] = &dup
	}
	return result
}

func updateCache(channel int, update func(*ChannelMetrics)) {
	channelCacheMu.Lock()
	defer channelCacheMu.Unlock()
	m, ok := channelCache[channel]
	if !ok {
		m = &ChannelMetrics{}
		channelCache[channel] = m
	}
	update(m)
}
