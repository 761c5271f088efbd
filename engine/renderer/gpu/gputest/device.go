// Package gputest provides a simulated gpu.Device for tests.
//
// Nothing runs asynchronously: recorded copies happen when a list is executed, and
// fences only advance when a test calls Complete or when Wait is asked for a value
// that has been signaled. Misuse that a real driver would reject (resetting an
// allocator whose lists are in flight, releasing a pending list, mismatched
// barrier states) is reported through Violations.
package gputest

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type Kind string

const (
	KindFence     Kind = "fence"
	KindAllocator Kind = "allocator"
	KindList      Kind = "list"
	KindBuffer    Kind = "buffer"
	KindTexture   Kind = "texture"
	KindSwapchain Kind = "swapchain"
	KindView      Kind = "view"
	// Failure injection only.
	KindResize  Kind = "resize"
	KindPresent Kind = "present"
	KindExecute Kind = "execute"
)

var ErrInjected = errors.New("injected device failure")

type Device struct {
	mu         sync.Mutex
	live       map[Kind]int
	created    map[Kind]int
	failNext   map[Kind]int
	violations []string
	queue      *Queue
	pitch      uint64

	RenderTargets map[int]*View
	DepthStencil  *View
	// Last swapchain created.
	Swapchain *Swapchain
}

func NewDevice() *Device {
	d := &Device{
		live:          make(map[Kind]int),
		created:       make(map[Kind]int),
		failNext:      make(map[Kind]int),
		pitch:         256,
		RenderTargets: make(map[int]*View),
	}
	d.queue = &Queue{d: d}
	return d
}

// FailNext makes the next n operations of kind fail with ErrInjected.
func (d *Device) FailNext(k Kind, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext[k] += n
}

// Live is the number of objects of kind created and not yet released.
func (d *Device) Live(k Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[k]
}

func (d *Device) Created(k Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[k]
}

func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) SimQueue() *Queue {
	return d.queue
}

func (d *Device) violate(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) shouldFail(k Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext[k] > 0 {
		d.failNext[k]--
		return true
	}
	return false
}

func (d *Device) create(k Kind) error {
	if d.shouldFail(k) {
		return errors.Wrapf(ErrInjected, "create %s", k)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[k]++
	d.created[k]++
	return nil
}

func (d *Device) release(k Kind, released *bool) {
	if *released {
		d.violate("%s released twice", k)
		return
	}
	*released = true
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[k]--
}

func (d *Device) Queue() gpu.Queue {
	return d.queue
}

func (d *Device) TexturePitchAlignment() uint64 {
	return d.pitch
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if err := d.create(KindFence); err != nil {
		return nil, err
	}
	return &Fence{d: d, completed: initial, signaled: initial}, nil
}

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	if err := d.create(KindAllocator); err != nil {
		return nil, err
	}
	return &CommandAllocator{d: d}, nil
}

func (d *Device) CreateCommandList(a gpu.CommandAllocator) (gpu.CommandList, error) {
	alloc, ok := a.(*CommandAllocator)
	if !ok || alloc.released {
		return nil, errors.New("command list needs a live simulated allocator")
	}
	if err := d.create(KindList); err != nil {
		return nil, err
	}
	l := &CommandList{d: d, alloc: alloc}
	alloc.lists = append(alloc.lists, l)
	return l, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.New("zero sized buffer")
	}
	if err := d.create(KindBuffer); err != nil {
		return nil, err
	}
	return &Buffer{d: d, desc: desc, state: desc.InitialState, data: make([]byte, desc.Size)}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("zero sized texture")
	}
	if err := d.create(KindTexture); err != nil {
		return nil, err
	}
	return newTexture(d, desc), nil
}

func newTexture(d *Device, desc gpu.TextureDesc) *Texture {
	return &Texture{
		d:     d,
		desc:  desc,
		state: desc.InitialState,
		data:  make([]byte, uint64(desc.Width)*uint64(desc.Height)*uint64(desc.Format.Stride())),
	}
}

func (d *Device) CreateSwapchain(dims gpu.Dimensions, bufferCount int, format gpu.Format) (gpu.Swapchain, error) {
	if bufferCount < 1 {
		return nil, errors.Newf("invalid buffer count %d", bufferCount)
	}
	if err := d.create(KindSwapchain); err != nil {
		return nil, err
	}
	sc := &Swapchain{d: d, format: format, buffers: make([]*Texture, bufferCount)}
	sc.build(dims)
	d.mu.Lock()
	d.Swapchain = sc
	d.mu.Unlock()
	return sc, nil
}

func (d *Device) CreateRenderTargetView(t gpu.Texture, slot int) (gpu.View, error) {
	tex, ok := t.(*Texture)
	if !ok || tex.released {
		return nil, errors.New("render target view needs a live simulated texture")
	}
	if err := d.create(KindView); err != nil {
		return nil, err
	}
	v := &View{d: d, Texture: tex, Slot: slot}
	d.mu.Lock()
	d.RenderTargets[slot] = v
	d.mu.Unlock()
	return v, nil
}

func (d *Device) CreateDepthStencilView(t gpu.Texture) (gpu.View, error) {
	tex, ok := t.(*Texture)
	if !ok || tex.released {
		return nil, errors.New("depth stencil view needs a live simulated texture")
	}
	if tex.desc.Format != gpu.FormatD32Float {
		return nil, errors.Newf("depth stencil view on %s texture", tex.desc.Format)
	}
	if err := d.create(KindView); err != nil {
		return nil, err
	}
	v := &View{d: d, Texture: tex, Slot: -1}
	d.mu.Lock()
	d.DepthStencil = v
	d.mu.Unlock()
	return v, nil
}

type View struct {
	d        *Device
	Texture  *Texture
	Slot     int
	released bool
}

func (v *View) Release() {
	v.d.release(KindView, &v.released)
}

func (v *View) Released() bool {
	return v.released
}
