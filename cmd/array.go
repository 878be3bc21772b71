// Package cmd holds the camsync subcommands and the array setup they share
// with the server command.
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/decode"
	"github.com/smazurov/camsync/internal/driver/sim"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/pipeline"
)

// OpenSession connects and configures every camera on the configured bus.
func OpenSession(cfg config.AcquisitionConfig) (*camarray.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid acquisition config: %w", err)
	}
	serials, err := cfg.SimSerialNumbers()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	bus := sim.NewBus(sim.Options{Pace: cfg.SimPace, ExternalClock: true}, serials...)
	return camarray.Initialize(bus, opts)
}

// OpenAcquisition builds the session, decoder and pipeline. GPU fallback is
// published on eventBus, which may be nil.
func OpenAcquisition(cfg config.AcquisitionConfig, eventBus *events.Bus) (*pipeline.Acquisition, error) {
	session, err := OpenSession(cfg)
	if err != nil {
		return nil, err
	}

	decOpts := cfg.DecoderOptions()
	decOpts.OnFallback = func(reason error) {
		if eventBus == nil {
			return
		}
		eventBus.Publish(events.DecoderFallbackEvent{
			From:      "gpu",
			To:        "cpu",
			Error:     reason.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	dec := decode.New(decOpts)

	acq, err := pipeline.New(session, pipeline.Options{
		Master:    cfg.Master,
		ShutterMs: cfg.ShutterMs,
		Threaded:  cfg.Threaded,
		Decoder:   dec,
		Events:    eventBus,
	})
	if err != nil {
		return nil, errors.Join(err, dec.Close(), session.Shutdown())
	}
	return acq, nil
}

// initCommandLogging sets up logging for one-shot subcommands.
func initCommandLogging(level string, json bool) {
	cfg := logging.Config{Level: level, Format: "text"}
	if json {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}
