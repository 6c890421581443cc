//go:build !linux

package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	return m.devices(malgo.Capture)
}

func (m *malgoContext) OutputDevices() ([]DeviceInfo, error) {
	return m.devices(malgo.Playback)
}

func (m *malgoContext) devices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID.Pointer()[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	if device != nil {
		devID, err := parseDeviceID(device.ID)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	c := &malgoCapture{name: "system default"}
	if device != nil {
		c.name = device.Name
	}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := c.callback.Load(); cb != nil {
				(*cb)(data, frameCount)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	c.device = dev
	return c, nil
}

func parseDeviceID(id string) (malgo.DeviceID, error) {
	var devID malgo.DeviceID
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return devID, fmt.Errorf("invalid device ID: %w", err)
	}
	copy(devID[:], idBytes)
	return devID, nil
}

func (m *malgoContext) NewOutput(config OutputConfig) (OutputDevice, error) {
	if config.SampleRate == 0 {
		return nil, fmt.Errorf("malgo playback: sample rate not set")
	}
	return &malgoOutput{ctx: m.ctx, config: config}, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string { return c.name }

type malgoOutput struct {
	ctx    *malgo.AllocatedContext
	config OutputConfig

	mu     sync.Mutex
	device *malgo.Device
	src    atomic.Pointer[SampleSource]
}

func (o *malgoOutput) dataCallback(pOutput, _ []byte, frameCount uint32) {
	buf := make([]int16, frameCount)
	n := 0
	if src := o.src.Load(); src != nil {
		n = (*src)(buf)
	}
	if n == 0 {
		o.src.Store(nil)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(buf[i]))
	}
	// Zero-fill remainder
	for i := n * 2; i < int(frameCount)*2; i++ {
		pOutput[i] = 0
	}
}

func (o *malgoOutput) initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = o.config.SampleRate
	if o.config.Device != nil {
		devID, err := parseDeviceID(o.config.Device.ID)
		if err != nil {
			return err
		}
		config.Playback.DeviceID = devID.Pointer()
	}

	dev, err := malgo.InitDevice(o.ctx.Context, config, malgo.DeviceCallbacks{Data: o.dataCallback})
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	o.device = dev
	return nil
}

func (o *malgoOutput) Start(src SampleSource) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.device == nil {
		if err := o.initDevice(); err != nil {
			return err
		}
	}
	o.device.Stop()
	o.src.Store(&src)
	if err := o.device.Start(); err != nil {
		// Recreate the device; macOS invalidates it across sleep/wake.
		o.device.Uninit()
		o.device = nil
		if err := o.initDevice(); err != nil {
			o.src.Store(nil)
			return err
		}
		if err := o.device.Start(); err != nil {
			o.src.Store(nil)
			return fmt.Errorf("malgo playback: %w", err)
		}
	}
	return nil
}

func (o *malgoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.src.Store(nil)
	if o.device != nil {
		o.device.Stop()
	}
}

func (o *malgoOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.src.Store(nil)
	if o.device != nil {
		o.device.Uninit()
		o.device = nil
	}
}
