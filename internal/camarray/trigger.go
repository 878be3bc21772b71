package camarray

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/camsync/internal/driver"
)

// TriggerMode selects how the cameras of an array are synchronized.
// It is fixed for the lifetime of a session.
type TriggerMode int

// Trigger modes.
const (
	// TriggerFreeRun starts every camera independently with no trigger.
	TriggerFreeRun TriggerMode = iota
	// TriggerSoftware fires a register write on every camera each round.
	TriggerSoftware
	// TriggerBus starts all cameras in the same bus cycle once.
	TriggerBus
	// TriggerHardware waits for pulses on a GPIO pin.
	TriggerHardware
)

var triggerModeNames = map[TriggerMode]string{
	TriggerFreeRun:  "free-run",
	TriggerSoftware: "software",
	TriggerBus:      "bus",
	TriggerHardware: "hardware",
}

func (m TriggerMode) String() string {
	if s, ok := triggerModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("TriggerMode(%d)", int(m))
}

// Armed reports whether cameras run in IIDC trigger mode.
func (m TriggerMode) Armed() bool {
	return m == TriggerSoftware || m == TriggerHardware
}

// ParseTriggerMode parses a trigger mode name.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "free", "freerun", "free-run":
		return TriggerFreeRun, nil
	case "software", "sw":
		return TriggerSoftware, nil
	case "bus", "sync", "firewire":
		return TriggerBus, nil
	case "hardware", "hw", "gpio":
		return TriggerHardware, nil
	}
	return 0, fmt.Errorf("unknown trigger mode %q", s)
}

// IIDC registers and values used by the trigger handshake.
const (
	regCameraPower      uint32 = 0x610
	regSoftwareTrigger  uint32 = 0x62C
	regTriggerInquiry   uint32 = 0x530
	cameraPowerOn       uint32 = 0x80000000
	softwareTriggerFire uint32 = 0x80000000
	triggerBusy         uint32 = 0x80000000
	softwareTriggerInq  uint32 = 0x10000

	// Mode 14 is the overlapped variant of the standard external trigger;
	// mode 0 cannot reach the full frame rate.
	standardTriggerMode   uint32 = 14
	softwareTriggerSource uint32 = 7

	triggerReadyBackoff = time.Millisecond
)

// triggerProtocol arms, fires and disarms the configured trigger mode.
type triggerProtocol struct {
	mode         TriggerMode
	gpioPin      uint32
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

func (p *triggerProtocol) source() uint32 {
	if p.mode == TriggerHardware {
		return p.gpioPin
	}
	return softwareTriggerSource
}

// start brings every camera of s into capture according to the trigger
// mode. Any failure fails the whole start.
func (p *triggerProtocol) start(s *Session) error {
	switch p.mode {
	case TriggerFreeRun:
		return s.forEach(func(i int, cam driver.Camera) error {
			if err := cam.StartCapture(); err != nil {
				return NewArrayError(ErrCodeInitialization, i, "start capture", err)
			}
			return nil
		})
	case TriggerBus:
		if err := s.bus.StartSyncCapture(s.raw); err != nil {
			return NewArrayError(ErrCodeInitialization, -1,
				"synchronized start failed, are the cameras on the same bus?", err)
		}
		return nil
	case TriggerSoftware, TriggerHardware:
		return s.forEach(func(i int, _ driver.Camera) error {
			return p.arm(s, i)
		})
	}
	return NewArrayError(ErrCodeUnsupportedTrigger, -1, p.mode.String(), nil)
}

// arm runs the power-up, trigger mode and readiness handshake for one camera
// and starts its capture.
func (p *triggerProtocol) arm(s *Session, i int) error {
	if err := s.WriteRegister(i, regCameraPower, cameraPowerOn); err != nil {
		return err
	}
	if err := p.waitForPower(s, i); err != nil {
		return err
	}

	cam := s.cams[i]
	if p.mode == TriggerHardware {
		info, err := cam.TriggerModeInfo()
		if err != nil {
			return NewArrayError(ErrCodeInitialization, i, "trigger mode info", err)
		}
		if !info.Present {
			return NewArrayError(ErrCodeUnsupportedTrigger, i, "camera does not support external trigger", nil)
		}
	}

	tm, err := cam.TriggerMode()
	if err != nil {
		return NewArrayError(ErrCodeInitialization, i, "get trigger mode", err)
	}
	tm.OnOff = true
	tm.Mode = standardTriggerMode
	tm.Parameter = 0
	tm.Source = p.source()
	if err := cam.SetTriggerMode(tm); err != nil {
		return NewArrayError(ErrCodeInitialization, i, "set trigger mode", err)
	}
	if err := p.waitForTriggerReady(s, i); err != nil {
		return err
	}

	if err := cam.StartCapture(); err != nil {
		return NewArrayError(ErrCodeInitialization, i, "start capture", err)
	}

	switch p.mode {
	case TriggerSoftware:
		v, err := s.ReadRegister(i, regTriggerInquiry)
		if err != nil {
			return err
		}
		if v&softwareTriggerInq == 0 {
			return NewArrayError(ErrCodeUnsupportedTrigger, i, "software trigger not implemented on this camera", nil)
		}
	case TriggerHardware:
		p.logger.Info("Waiting for external trigger", "camera", i, "gpio_pin", p.gpioPin)
	}
	return nil
}

// waitForPower polls the power register until the camera confirms power-up,
// giving up after pollAttempts reads.
func (p *triggerProtocol) waitForPower(s *Session, i int) error {
	for attempt := 0; attempt < p.pollAttempts; attempt++ {
		time.Sleep(p.pollInterval)
		v, err := s.ReadRegister(i, regCameraPower)
		if err != nil {
			return err
		}
		if v&cameraPowerOn != 0 {
			p.logger.Debug("Camera powered up", "camera", i, "reads", attempt+1)
			return nil
		}
	}
	return NewArrayError(ErrCodePowerUpTimeout, i,
		fmt.Sprintf("no power confirmation after %v", time.Duration(p.pollAttempts)*p.pollInterval), nil)
}

// waitForTriggerReady polls the software trigger register until the camera
// reports it is not busy.
func (p *triggerProtocol) waitForTriggerReady(s *Session, i int) error {
	for attempt := 0; attempt < p.pollAttempts; attempt++ {
		v, err := s.ReadRegister(i, regSoftwareTrigger)
		if err != nil {
			return err
		}
		if v&triggerBusy == 0 {
			return nil
		}
		time.Sleep(triggerReadyBackoff)
	}
	return NewArrayError(ErrCodeRegisterIO, i, "trigger never became ready", nil)
}

// fire triggers one round. Only software mode writes anything; the other
// modes are clocked by the bus or by external pulses. A failed write is
// returned per camera and does not stop the others from firing.
func (p *triggerProtocol) fire(s *Session) []error {
	if p.mode != TriggerSoftware {
		return nil
	}
	errs := make([]error, len(s.cams))
	for i := range s.cams {
		if err := s.WriteRegister(i, regSoftwareTrigger, softwareTriggerFire); err != nil {
			p.logger.Warn("Failed to fire software trigger", "camera", i, "error", err)
			errs[i] = err
		}
	}
	return errs
}

// disarm turns trigger mode off on every camera. Failures are logged.
func (p *triggerProtocol) disarm(s *Session) error {
	if !p.mode.Armed() {
		return nil
	}
	var errs []error
	for i, cam := range s.cams {
		tm, err := cam.TriggerMode()
		if err == nil {
			tm.OnOff = false
			err = cam.SetTriggerMode(tm)
		}
		if err != nil {
			p.logger.Warn("Failed to turn off trigger mode", "camera", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
