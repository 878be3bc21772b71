package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/decode"
	"github.com/smazurov/camsync/internal/driver"
)

// AcquisitionConfig is the [camera] and [pipeline] configuration. It is read
// once when the array is built; changing it requires a restart.
type AcquisitionConfig struct {
	// Driver selects the camera bus. Only the simulated bus is built in.
	Driver     string   `toml:"camera.driver" env:"CAMERA_DRIVER" json:"driver"`
	SimSerials []string `toml:"sim.serials" env:"SIM_SERIALS" json:"sim_serials"`
	SimPace    bool     `toml:"sim.pace" env:"SIM_PACE" json:"sim_pace"`

	Width    int     `toml:"camera.width" env:"CAMERA_WIDTH" json:"width"`
	Height   int     `toml:"camera.height" env:"CAMERA_HEIGHT" json:"height"`
	Encoding string  `toml:"camera.encoding" env:"CAMERA_ENCODING" json:"encoding"`
	FPS      float64 `toml:"camera.fps" env:"CAMERA_FPS" json:"fps"`
	Trigger  string  `toml:"camera.trigger" env:"CAMERA_TRIGGER" json:"trigger"`
	GPIOPin  uint32  `toml:"camera.gpio_pin" env:"CAMERA_GPIO_PIN" json:"gpio_pin"`
	Embedded string  `toml:"camera.embedded" env:"CAMERA_EMBEDDED" json:"embedded"`
	// ROIX and ROIY offset the region on the sensor when encoding is format7.
	ROIX int `toml:"camera.roi_x" env:"CAMERA_ROI_X" json:"roi_x"`
	ROIY int `toml:"camera.roi_y" env:"CAMERA_ROI_Y" json:"roi_y"`

	GrabTimeout     time.Duration `toml:"camera.grab_timeout" env:"CAMERA_GRAB_TIMEOUT" json:"grab_timeout"`
	PowerUpPoll     time.Duration `toml:"camera.power_up_poll" env:"CAMERA_POWER_UP_POLL" json:"power_up_poll"`
	PowerUpAttempts int           `toml:"camera.power_up_attempts" env:"CAMERA_POWER_UP_ATTEMPTS" json:"power_up_attempts"`

	// Master is the logical channel whose properties are copied to the
	// others each round; -1 disables distribution.
	Master int `toml:"pipeline.master" env:"PIPELINE_MASTER" json:"master"`
	// ShutterMs fixes every camera's shutter at startup; -1 leaves it alone.
	ShutterMs float64 `toml:"pipeline.shutter_ms" env:"PIPELINE_SHUTTER_MS" json:"shutter_ms"`
	Threaded  bool    `toml:"pipeline.threaded" env:"PIPELINE_THREADED" json:"threaded"`
	BGR       bool    `toml:"pipeline.bgr" env:"PIPELINE_BGR" json:"bgr"`
	GPU       bool    `toml:"pipeline.gpu" env:"PIPELINE_GPU" json:"gpu"`
}

// DefaultAcquisition returns the settings used when nothing is configured.
func DefaultAcquisition() AcquisitionConfig {
	return AcquisitionConfig{
		Driver:          "sim",
		SimSerials:      []string{"13142459", "13142460"},
		SimPace:         true,
		Width:           640,
		Height:          480,
		Encoding:        "mono8",
		FPS:             15,
		Trigger:         "free",
		Embedded:        camarray.DefaultEmbeddedFields().String(),
		GrabTimeout:     camarray.DefaultGrabTimeout,
		PowerUpPoll:     camarray.DefaultPowerUpPoll,
		PowerUpAttempts: camarray.DefaultPowerUpAttempts,
		Master:          -1,
		ShutterMs:       -1,
	}
}

// LoadAcquisition reads the acquisition settings from a TOML file and the
// environment on top of the defaults.
func LoadAcquisition(path string) (AcquisitionConfig, error) {
	opts := struct {
		Config string
		AcquisitionConfig
	}{Config: path, AcquisitionConfig: DefaultAcquisition()}
	if err := LoadConfig(&opts, nil); err != nil {
		return AcquisitionConfig{}, err
	}
	return opts.AcquisitionConfig, opts.AcquisitionConfig.Validate()
}

// Validate checks that every setting can be turned into driver options.
func (c AcquisitionConfig) Validate() error {
	_, err := c.SessionOptions()
	if err != nil {
		return err
	}
	var errs []error
	if c.Driver != "sim" {
		errs = append(errs, fmt.Errorf("camera driver %q is not built in, use \"sim\"", c.Driver))
	} else if _, err := c.SimSerialNumbers(); err != nil {
		errs = append(errs, err)
	}
	if c.Master < -1 {
		errs = append(errs, fmt.Errorf("master %d: use -1 to disable distribution", c.Master))
	}
	if c.ShutterMs == 0 || (c.ShutterMs < 0 && c.ShutterMs != -1) {
		errs = append(errs, fmt.Errorf("shutter_ms %g: must be positive or -1", c.ShutterMs))
	}
	return errors.Join(errs...)
}

// SessionOptions converts the camera settings into array options.
func (c AcquisitionConfig) SessionOptions() (camarray.Options, error) {
	var errs []error

	enc, err := driver.ParseEncoding(c.Encoding)
	if err != nil {
		errs = append(errs, err)
	}
	rate, err := driver.ParseFrameRate(c.FPS)
	if err != nil {
		errs = append(errs, err)
	}
	trigger, err := camarray.ParseTriggerMode(c.Trigger)
	if err != nil {
		errs = append(errs, err)
	}
	embedded, err := camarray.ParseEmbeddedFields(c.Embedded)
	if err != nil {
		errs = append(errs, err)
	}
	if enc != driver.EncodingWide && (c.Width <= 0 || c.Height <= 0) {
		errs = append(errs, fmt.Errorf("resolution %dx%d: width and height are required", c.Width, c.Height))
	}
	if c.ROIX < 0 || c.ROIY < 0 {
		errs = append(errs, fmt.Errorf("roi offset %d,%d: must not be negative", c.ROIX, c.ROIY))
	}
	if c.GrabTimeout < 0 || c.PowerUpPoll < 0 || c.PowerUpAttempts < 0 {
		errs = append(errs, errors.New("timeouts and attempts must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return camarray.Options{}, err
	}

	return camarray.Options{
		Mode:            driver.VideoMode{Width: c.Width, Height: c.Height, Encoding: enc},
		FrameRate:       rate,
		Trigger:         trigger,
		GPIOPin:         c.GPIOPin,
		Embedded:        embedded,
		ROIX:            c.ROIX,
		ROIY:            c.ROIY,
		GrabTimeout:     c.GrabTimeout,
		PowerUpPoll:     c.PowerUpPoll,
		PowerUpAttempts: c.PowerUpAttempts,
	}, nil
}

// SimSerialNumbers parses the serials of the simulated cameras.
func (c AcquisitionConfig) SimSerialNumbers() ([]uint32, error) {
	if len(c.SimSerials) == 0 {
		return nil, errors.New("sim.serials: at least one camera is required")
	}
	out := make([]uint32, 0, len(c.SimSerials))
	for _, s := range c.SimSerials {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("sim.serials: %q is not a serial number", s)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

// DecoderOptions returns the pixel decoder settings.
func (c AcquisitionConfig) DecoderOptions() decode.Options {
	order := decode.OrderRGB
	if c.BGR {
		order = decode.OrderBGR
	}
	return decode.Options{Order: order, UseGPU: c.GPU}
}
