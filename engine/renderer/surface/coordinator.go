package surface

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type State uint8

const (
	StateUninitialized State = iota
	StateReady
)

const (
	BufferCount      = 2
	BackBufferFormat = gpu.FormatR8G8B8A8UnormSRGB
	DepthFormat      = gpu.FormatD32Float
)

// Drainer blocks until every submitted command list has finished on the device.
type Drainer interface {
	WaitIdle() error
}

// Coordinator owns the double-buffered presentation targets and the depth buffer,
// and rebuilds them whenever the window dimensions change.
type Coordinator struct {
	device gpu.Device
	ring   Drainer
	format gpu.Format

	state     State
	swapchain gpu.Swapchain
	targets   [BufferCount]gpu.Texture
	views     [BufferCount]gpu.View
	depth     gpu.Texture
	depthView gpu.View
	active    int
	dims      gpu.Dimensions
}

func NewCoordinator(device gpu.Device, ring Drainer, format gpu.Format) *Coordinator {
	if format == gpu.FormatUnknown {
		format = BackBufferFormat
	}
	return &Coordinator{
		device: device,
		ring:   ring,
		format: format,
	}
}

// Configure drains the device, then creates or resizes the presentation surface
// and rebuilds the depth buffer and target views at dims. It always rebuilds,
// even when dims are unchanged.
func (c *Coordinator) Configure(dims gpu.Dimensions) error {
	if dims.Empty() {
		return errors.Mark(errors.Newf("cannot configure a %dx%d surface", dims.Width, dims.Height), core.ErrInvalidArgument)
	}
	if err := c.ring.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining before surface configure")
	}

	c.releaseViews()
	c.state = StateUninitialized

	if c.swapchain == nil {
		sc, err := c.device.CreateSwapchain(dims, BufferCount, c.format)
		if err != nil {
			err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating %dx%d presentation surface", dims.Width, dims.Height)
			core.LogError(err.Error())
			return err
		}
		c.swapchain = sc
	} else {
		if err := c.swapchain.Resize(dims); err != nil {
			err = core.Wrap(err, core.ErrSurfaceResize, "resizing presentation surface to %dx%d", dims.Width, dims.Height)
			core.LogError(err.Error())
			return err
		}
	}

	depth, err := c.device.CreateTexture(gpu.TextureDesc{
		Name:         "depth",
		Width:        dims.Width,
		Height:       dims.Height,
		Format:       DepthFormat,
		Usage:        gpu.TextureUsageDepthStencil,
		InitialState: gpu.ResourceStateDepthWrite,
	})
	if err != nil {
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating %dx%d depth buffer", dims.Width, dims.Height)
		core.LogError(err.Error())
		return err
	}
	c.depth = depth

	for i := 0; i < BufferCount; i++ {
		tex, err := c.swapchain.Buffer(i)
		if err != nil {
			return errors.Wrapf(err, "fetching presentation buffer %d", i)
		}
		view, err := c.device.CreateRenderTargetView(tex, i)
		if err != nil {
			return core.Wrap(err, core.ErrDeviceResourceExhausted, "creating render target view %d", i)
		}
		c.targets[i] = tex
		c.views[i] = view
	}

	dsv, err := c.device.CreateDepthStencilView(depth)
	if err != nil {
		return core.Wrap(err, core.ErrDeviceResourceExhausted, "creating depth stencil view")
	}
	c.depthView = dsv

	c.active = 0
	c.dims = dims
	c.state = StateReady
	core.LogDebug("presentation surface configured at %dx%d", dims.Width, dims.Height)
	return nil
}

// BeginFrame acquires the next presentation buffer and returns it. Backends that
// pick the buffer themselves move the active index to match.
func (c *Coordinator) BeginFrame() (gpu.Texture, error) {
	if c.state != StateReady {
		return nil, errors.Mark(errors.New("begin frame on an unconfigured surface"), core.ErrNotReady)
	}
	idx, err := c.swapchain.Acquire()
	if err != nil {
		return nil, errors.Wrap(err, "acquiring presentation buffer")
	}
	if idx < 0 || idx >= BufferCount {
		return nil, errors.Mark(errors.Newf("presentation buffer %d out of range [0, %d)", idx, BufferCount), core.ErrInvalidArgument)
	}
	if idx != c.active {
		core.LogDebug("presentation buffer %d acquired, expected %d", idx, c.active)
		c.active = idx
	}
	return c.targets[c.active], nil
}

// Present shows the active buffer and flips to the other one.
func (c *Coordinator) Present() error {
	if c.state != StateReady {
		return errors.Mark(errors.New("present on an unconfigured surface"), core.ErrNotReady)
	}
	if err := c.swapchain.Present(); err != nil {
		return errors.Wrap(err, "presenting")
	}
	c.active = (c.active + 1) % BufferCount
	return nil
}

func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) ActiveIndex() int {
	return c.active
}

func (c *Coordinator) Dimensions() gpu.Dimensions {
	return c.dims
}

func (c *Coordinator) BackBuffer() gpu.Texture {
	return c.targets[c.active]
}

func (c *Coordinator) RenderTargetView() gpu.View {
	return c.views[c.active]
}

func (c *Coordinator) DepthBuffer() gpu.Texture {
	return c.depth
}

func (c *Coordinator) DepthStencilView() gpu.View {
	return c.depthView
}

func (c *Coordinator) Format() gpu.Format {
	if c.swapchain != nil {
		return c.swapchain.Format()
	}
	return c.format
}

func (c *Coordinator) releaseViews() {
	for i := range c.views {
		if c.views[i] != nil {
			c.views[i].Release()
			c.views[i] = nil
		}
		c.targets[i] = nil
	}
	if c.depthView != nil {
		c.depthView.Release()
		c.depthView = nil
	}
	if c.depth != nil {
		c.depth.Release()
		c.depth = nil
	}
}

// Release drains the device and destroys every presentation resource.
func (c *Coordinator) Release() error {
	if c.swapchain == nil {
		return nil
	}
	if err := c.ring.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining before surface release")
	}
	c.releaseViews()
	c.swapchain.Release()
	c.swapchain = nil
	c.state = StateUninitialized
	return nil
}
