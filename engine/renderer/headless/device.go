package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// Options configure the in-memory device.
type Options struct {
	Name string
	// MissingFunctions fail pipeline creation when referenced.
	MissingFunctions []string
	// UnsupportedPasses fail RenderEncoder with ErrRenderPassNotFound.
	UnsupportedPasses []metadata.RenderPassType
	// MaxBufferLength fails larger allocations; 0 means unlimited.
	MaxBufferLength int
	// ManualCompletion keeps committed command buffers pending until
	// CompletePending is called.
	ManualCompletion bool
}

// Device is a renderer.Device backed by host memory. It records every
// encoded command so tests and tools can inspect a frame.
type Device struct {
	name        string
	missing     map[string]bool
	unsupported map[metadata.RenderPassType]bool
	maxBuffer   int
	manual      bool

	mu        sync.Mutex
	buffers   []*Buffer
	committed []*CommandBuffer
	pending   []*CommandBuffer
	inflight  sync.WaitGroup
}

var _ renderer.Device = &Device{}

func NewDevice(opts Options) *Device {
	d := &Device{
		name:        opts.Name,
		missing:     make(map[string]bool),
		unsupported: make(map[metadata.RenderPassType]bool),
		maxBuffer:   opts.MaxBufferLength,
		manual:      opts.ManualCompletion,
	}
	if d.name == "" {
		d.name = "headless"
	}
	for _, fn := range opts.MissingFunctions {
		d.missing[fn] = true
	}
	for _, p := range opts.UnsupportedPasses {
		d.unsupported[p] = true
	}
	return d
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) MakeBuffer(label string, bufferType metadata.RenderBufferType, length int) (metadata.Buffer, error) {
	if length <= 0 {
		return nil, fmt.Errorf("buffer '%s': invalid length %d", label, length)
	}
	if d.maxBuffer > 0 && length > d.maxBuffer {
		return nil, fmt.Errorf("buffer '%s': %d bytes exceeds device limit of %d", label, length, d.maxBuffer)
	}
	b := &Buffer{label: label, bufferType: bufferType, contents: make([]byte, length)}
	d.mu.Lock()
	d.buffers = append(d.buffers, b)
	d.mu.Unlock()
	return b, nil
}

func (d *Device) checkFunction(name string) error {
	if name == "" || d.missing[name] {
		return fmt.Errorf("%w: '%s'", core.ErrFunctionNotFound, name)
	}
	return nil
}

func (d *Device) MakeRenderPipeline(config metadata.PipelineConfig) (metadata.Pipeline, error) {
	if err := d.checkFunction(config.VertexFunction); err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", config.Label, err)
	}
	if config.RenderPass != metadata.RENDERPASS_TYPE_SHADOW || config.FragmentFunction != "" {
		if err := d.checkFunction(config.FragmentFunction); err != nil {
			return nil, fmt.Errorf("pipeline '%s': %w", config.Label, err)
		}
	}
	return &Pipeline{label: config.Label, Config: config}, nil
}

func (d *Device) MakeComputePipeline(config metadata.ComputePipelineConfig) (metadata.ComputePipeline, error) {
	if err := d.checkFunction(config.Function); err != nil {
		return nil, fmt.Errorf("compute pipeline '%s': %w", config.Label, err)
	}
	return &ComputePipeline{label: config.Label, Config: config}, nil
}

func (d *Device) NewCommandBuffer(label string) (renderer.CommandBuffer, error) {
	return &CommandBuffer{device: d, label: label, state: COMMAND_BUFFER_STATE_READY}, nil
}

// MakeTexture creates a texture handle for probes and shadow maps.
func (d *Device) MakeTexture(label string, width, height uint32) *Texture {
	return &Texture{label: label, width: width, height: height}
}

func (d *Device) submit(cb *CommandBuffer) {
	d.mu.Lock()
	d.committed = append(d.committed, cb)
	d.inflight.Add(1)
	if d.manual {
		d.pending = append(d.pending, cb)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	go d.complete(cb)
}

func (d *Device) complete(cb *CommandBuffer) {
	defer d.inflight.Done()
	cb.setState(COMMAND_BUFFER_STATE_COMPLETED)
	for _, h := range cb.handlers() {
		h()
	}
}

// CompletePending completes the command buffers held back by
// ManualCompletion, oldest first, and returns how many completed.
func (d *Device) CompletePending() int {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, cb := range pending {
		d.complete(cb)
	}
	return len(pending)
}

// WaitIdle blocks until every committed command buffer has completed.
func (d *Device) WaitIdle() {
	d.inflight.Wait()
}

// Committed returns the command buffers committed so far, oldest first.
func (d *Device) Committed() []*CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*CommandBuffer, len(d.committed))
	copy(out, d.committed)
	return out
}

// LastCommitted returns the most recent command buffer, nil if none.
func (d *Device) LastCommitted() *CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.committed) == 0 {
		return nil
	}
	return d.committed[len(d.committed)-1]
}

// BufferCount is the number of allocations made.
func (d *Device) BufferCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Buffer is a host memory allocation.
type Buffer struct {
	label      string
	bufferType metadata.RenderBufferType
	contents   []byte
}

func (b *Buffer) Label() string                  { return b.label }
func (b *Buffer) Type() metadata.RenderBufferType { return b.bufferType }
func (b *Buffer) Length() int                     { return len(b.contents) }
func (b *Buffer) Contents() []byte                { return b.contents }

type Texture struct {
	label         string
	width, height uint32
}

func (t *Texture) Label() string  { return t.label }
func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

type Pipeline struct {
	label  string
	Config metadata.PipelineConfig
}

func (p *Pipeline) Label() string { return p.label }

type ComputePipeline struct {
	label  string
	Config metadata.ComputePipelineConfig
}

func (p *ComputePipeline) Label() string             { return p.label }
func (p *ComputePipeline) ThreadExecutionWidth() int { return 32 }
