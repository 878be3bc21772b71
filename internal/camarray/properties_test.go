package camarray

import (
	"slices"
	"testing"

	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/driver/sim"
)

func mustProperty(t *testing.T, cam *sim.Camera, pt driver.PropertyType) driver.Property {
	t.Helper()
	p, err := cam.Property(pt)
	if err != nil {
		t.Fatalf("Property(%s) error = %v", pt, err)
	}
	return p
}

func mustSetProperty(t *testing.T, cam *sim.Camera, p driver.Property) {
	t.Helper()
	if err := cam.SetProperty(p); err != nil {
		t.Fatalf("SetProperty(%s) error = %v", p.Type, err)
	}
}

func TestProbeManualProperties(t *testing.T) {
	s := openSession(t, sim.NewBus(sim.Options{}, 1), testOptions(TriggerFreeRun))

	want := []driver.PropertyType{
		driver.Brightness, driver.AutoExposure, driver.Sharpness, driver.WhiteBalance,
		driver.Saturation, driver.Gamma, driver.Shutter, driver.Gain,
	}
	if got := s.ManualProperties(); !slices.Equal(got, want) {
		t.Errorf("ManualProperties() = %v, want %v", got, want)
	}
}

func TestCopyStrategySlaveValue(t *testing.T) {
	master := driver.Property{
		Type: driver.WhiteBalance, ValueA: 500, ValueB: 700, AbsValue: 3.5, AutoManualMode: true,
	}
	tests := []struct {
		name string
		copy copyStrategy
		want driver.Property
	}{
		{"two channels", copyValueAB, driver.Property{Type: driver.WhiteBalance, OnOff: true, ValueA: 500, ValueB: 700}},
		{"one channel", copyValueA, driver.Property{Type: driver.WhiteBalance, OnOff: true, ValueA: 500}},
		{"absolute", copyAbsolute, driver.Property{Type: driver.WhiteBalance, OnOff: true, AbsControl: true, AbsValue: 3.5}},
	}

	for _, tt := range tests {
		if got := tt.copy.slaveValue(master); got != tt.want {
			t.Errorf("%s: slaveValue() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestDistributeCopiesMasterValues(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 30, 10, 20)
	s := openSession(t, bus, testOptions(TriggerFreeRun))
	master := bus.Camera(10) // channel 0

	mustSetProperty(t, master, driver.Property{Type: driver.Shutter, OnOff: true, AbsControl: true, AbsValue: 20})
	mustSetProperty(t, master, driver.Property{Type: driver.Gain, OnOff: true, AbsControl: true, AbsValue: 6})
	mustSetProperty(t, master, driver.Property{Type: driver.WhiteBalance, OnOff: true, ValueA: 500, ValueB: 700})
	mustSetProperty(t, master, driver.Property{Type: driver.Sharpness, OnOff: true, ValueA: 1500})

	if err := s.Distribute(0); err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}

	for _, serial := range []uint32{20, 30} {
		slave := bus.Camera(serial)
		for _, pt := range []driver.PropertyType{driver.Shutter, driver.Gain, driver.Gamma, driver.Saturation} {
			want := mustProperty(t, master, pt).AbsValue
			got := mustProperty(t, slave, pt)
			if got.AbsValue != want {
				t.Errorf("camera %d %s = %v, want %v", serial, pt, got.AbsValue, want)
			}
			if got.AutoManualMode {
				t.Errorf("camera %d %s still in auto mode", serial, pt)
			}
		}
		wb := mustProperty(t, slave, driver.WhiteBalance)
		if wb.ValueA != 500 || wb.ValueB != 700 {
			t.Errorf("camera %d white balance = %d/%d, want 500/700", serial, wb.ValueA, wb.ValueB)
		}
		if sh := mustProperty(t, slave, driver.Sharpness); sh.ValueA != 1500 {
			t.Errorf("camera %d sharpness = %d, want 1500", serial, sh.ValueA)
		}
	}
	if got := master.PropertyWrites(driver.Gamma); got != 0 {
		t.Errorf("master Gamma writes = %d, want 0", got)
	}
}

func TestDistributeAbortsOnWriteFailure(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1, 2, 3)
	s := openSession(t, bus, testOptions(TriggerFreeRun))
	bus.Camera(2).InjectFaults(sim.Faults{SetProperty: map[driver.PropertyType]bool{driver.Sharpness: true}})

	err := s.Distribute(0)
	if !HasCode(err, ErrCodePropertyWrite) {
		t.Fatalf("Distribute() error = %v, want %s", err, ErrCodePropertyWrite)
	}
	for _, serial := range []uint32{2, 3} {
		cam := bus.Camera(serial)
		if got := cam.PropertyWrites(driver.Brightness); got != 1 {
			t.Errorf("camera %d Brightness writes = %d, want 1", serial, got)
		}
		if got := cam.PropertyWrites(driver.Shutter); got != 0 {
			t.Errorf("camera %d Shutter writes = %d, want 0", serial, got)
		}
	}
}

func TestDistributeRejectsBadMaster(t *testing.T) {
	s := openSession(t, sim.NewBus(sim.Options{}, 1, 2), testOptions(TriggerFreeRun))
	if err := s.Distribute(2); !HasCode(err, ErrCodeInvalidIndex) {
		t.Errorf("Distribute(2) error = %v, want %s", err, ErrCodeInvalidIndex)
	}
}

func TestSoftwareTriggerMasterKeepsSlaveShutter(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1, 2)
	s := openSession(t, bus, testOptions(TriggerSoftware))
	master, slave := bus.Camera(1), bus.Camera(2)
	mustSetProperty(t, master, driver.Property{Type: driver.Shutter, OnOff: true, AbsControl: true, AbsValue: 12.5})

	var rounds []float32
	for round := 0; round < 2; round++ {
		if err := s.Distribute(0); err != nil {
			t.Fatalf("round %d: Distribute() error = %v", round, err)
		}
		r, err := s.NextFrame()
		if err != nil {
			t.Fatalf("round %d: NextFrame() error = %v", round, err)
		}
		if err := r.Err(); err != nil {
			t.Fatalf("round %d: round error = %v", round, err)
		}
		rounds = append(rounds, mustProperty(t, slave, driver.Shutter).AbsValue)
	}

	if rounds[0] != 12.5 || rounds[1] != 12.5 {
		t.Errorf("slave shutter per round = %v, want [12.5 12.5]", rounds)
	}
}

func TestRestoreDefaults(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1, 2)
	s := openSession(t, bus, testOptions(TriggerFreeRun))
	for _, serial := range []uint32{1, 2} {
		mustSetProperty(t, bus.Camera(serial), driver.Property{Type: driver.Shutter, OnOff: true, AbsControl: true, AbsValue: 30})
	}

	if err := s.RestoreDefaults(1); err != nil {
		t.Fatalf("RestoreDefaults(1) error = %v", err)
	}
	if got := mustProperty(t, bus.Camera(2), driver.Shutter).AbsValue; got != 10.4 {
		t.Errorf("camera 2 shutter = %v, want factory 10.4", got)
	}
	if got := mustProperty(t, bus.Camera(1), driver.Shutter).AbsValue; got != 30 {
		t.Errorf("camera 1 shutter = %v, want untouched 30", got)
	}

	if err := s.RestoreDefaults(-1); err != nil {
		t.Fatalf("RestoreDefaults(-1) error = %v", err)
	}
	if got := mustProperty(t, bus.Camera(1), driver.Shutter).AbsValue; got != 10.4 {
		t.Errorf("camera 1 shutter = %v, want factory 10.4", got)
	}

	for _, idx := range []int{5, -2} {
		if err := s.RestoreDefaults(idx); !HasCode(err, ErrCodeInvalidIndex) {
			t.Errorf("RestoreDefaults(%d) error = %v, want %s", idx, err, ErrCodeInvalidIndex)
		}
	}
}

func TestSetShutter(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1, 2)
	s := openSession(t, bus, testOptions(TriggerFreeRun))

	if err := s.SetShutter(25); err != nil {
		t.Fatalf("SetShutter() error = %v", err)
	}
	for _, serial := range []uint32{1, 2} {
		cam := bus.Camera(serial)
		shutter := mustProperty(t, cam, driver.Shutter)
		if shutter.AbsValue != 25 || shutter.AutoManualMode {
			t.Errorf("camera %d shutter = %+v, want manual 25", serial, shutter)
		}
		if gain := mustProperty(t, cam, driver.Gain); !gain.AutoManualMode {
			t.Errorf("camera %d gain not in auto mode", serial)
		}
	}
}

func TestPropertyString(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1)
	s := openSession(t, bus, testOptions(TriggerFreeRun))
	mustSetProperty(t, bus.Camera(1), driver.Property{Type: driver.Shutter, OnOff: true, AbsControl: true, AbsValue: 20})

	tests := []struct {
		prop driver.PropertyType
		want string
	}{
		{driver.Shutter, "Shutter: 20 ms"},
		{driver.Temperature, "Temperature: 41.5 C"},
		{driver.Sharpness, ""},
		{driver.Zoom, ""},
	}

	for _, tt := range tests {
		got, err := s.PropertyString(tt.prop, 0)
		if err != nil {
			t.Errorf("PropertyString(%s) error = %v", tt.prop, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PropertyString(%s) = %q, want %q", tt.prop, got, tt.want)
		}
	}
}

func TestReadProperties(t *testing.T) {
	bus := sim.NewBus(sim.Options{}, 1)
	s := openSession(t, bus, testOptions(TriggerFreeRun))

	readings, err := s.ReadProperties(0)
	if err != nil {
		t.Fatalf("ReadProperties() error = %v", err)
	}
	byName := make(map[string]PropertyReading)
	for _, r := range readings {
		byName[r.Name] = r
	}
	if r := byName["Temperature"]; r.Value != 41.5 || r.Unit != "C" {
		t.Errorf("Temperature = %+v, want 41.5 C", r)
	}
	if _, ok := byName["Sharpness"]; ok {
		t.Error("Sharpness listed without absolute read-out")
	}
	if _, err := s.ReadProperties(1); !HasCode(err, ErrCodeInvalidIndex) {
		t.Errorf("ReadProperties(1) error = %v, want %s", err, ErrCodeInvalidIndex)
	}
}
