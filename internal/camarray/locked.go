package camarray

import (
	"sync"

	"github.com/smazurov/camsync/internal/driver"
)

// lockedCamera serializes every driver call on one camera. The producer,
// HTTP handlers and metric collectors all reach the same index, and vendor
// drivers are not safe for concurrent calls on one handle.
type lockedCamera struct {
	mu  sync.Mutex
	cam driver.Camera
}

func newLockedCamera(cam driver.Camera) *lockedCamera {
	return &lockedCamera{cam: cam}
}

func (c *lockedCamera) Info() (driver.CameraInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Info()
}

func (c *lockedCamera) SetVideoModeAndFrameRate(mode driver.VideoMode, rate driver.FrameRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetVideoModeAndFrameRate(mode, rate)
}

func (c *lockedCamera) VideoModeAndFrameRateSupported(mode driver.VideoMode, rate driver.FrameRate) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.VideoModeAndFrameRateSupported(mode, rate)
}

func (c *lockedCamera) Format7Info(mode driver.Format7Mode) (driver.Format7Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Format7Info(mode)
}

func (c *lockedCamera) SetFormat7(settings driver.Format7Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetFormat7(settings)
}

func (c *lockedCamera) EmbeddedInfo() (driver.EmbeddedInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.EmbeddedInfo()
}

func (c *lockedCamera) SetEmbeddedInfo(info driver.EmbeddedInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetEmbeddedInfo(info)
}

func (c *lockedCamera) ReadRegister(address uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.ReadRegister(address)
}

func (c *lockedCamera) WriteRegister(address, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.WriteRegister(address, value)
}

func (c *lockedCamera) TriggerModeInfo() (driver.TriggerModeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.TriggerModeInfo()
}

func (c *lockedCamera) TriggerMode() (driver.TriggerMode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.TriggerMode()
}

func (c *lockedCamera) SetTriggerMode(mode driver.TriggerMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetTriggerMode(mode)
}

func (c *lockedCamera) Configuration() (driver.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Configuration()
}

func (c *lockedCamera) SetConfiguration(cfg driver.Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetConfiguration(cfg)
}

func (c *lockedCamera) StartCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.StartCapture()
}

func (c *lockedCamera) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.StopCapture()
}

// RetrieveBuffer holds the lock while it blocks, at most for the grab
// timeout.
func (c *lockedCamera) RetrieveBuffer(img *driver.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.RetrieveBuffer(img)
}

func (c *lockedCamera) PropertyInfo(t driver.PropertyType) (driver.PropertyInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.PropertyInfo(t)
}

func (c *lockedCamera) Property(t driver.PropertyType) (driver.Property, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Property(t)
}

func (c *lockedCamera) SetProperty(p driver.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.SetProperty(p)
}

func (c *lockedCamera) RestoreFromMemoryChannel(channel uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.RestoreFromMemoryChannel(channel)
}

func (c *lockedCamera) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Disconnect()
}
