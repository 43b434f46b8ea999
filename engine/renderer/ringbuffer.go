package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

// UniformAlignment is the constant buffer offset alignment of the target GPUs.
const UniformAlignment = 256

// AlignedStride rounds a natural struct size up to the next multiple of 256.
func AlignedStride(naturalSize int) int {
	return ((naturalSize - 1) | 0xFF) + 1
}

// UniformRingBuffer is one allocation holding maxFramesInFlight slots of
// maxInstances elements each. The CPU writes the slot selected by
// BeginFrame while the GPU may read the others.
type UniformRingBuffer struct {
	label        string
	buffer       metadata.Buffer
	naturalSize  int
	stride       int
	maxInstances int
	slots        int
	slot         int
	offset       int
}

// NewUniformRingBuffer allocates stride × maxInstances × maxFramesInFlight
// bytes. Shared buffers holding a single element use maxInstances = 1.
func NewUniformRingBuffer(device Device, label string, naturalSize, maxInstances, maxFramesInFlight int) (*UniformRingBuffer, error) {
	if device == nil {
		return nil, fmt.Errorf("uniform buffer '%s': %w", label, core.ErrDeviceUnavailable)
	}
	if naturalSize <= 0 || maxInstances <= 0 || maxFramesInFlight <= 0 {
		return nil, fmt.Errorf("uniform buffer '%s': %w: size=%d instances=%d frames=%d",
			label, core.ErrBufferAllocation, naturalSize, maxInstances, maxFramesInFlight)
	}
	stride := AlignedStride(naturalSize)
	length := stride * maxInstances * maxFramesInFlight
	buffer, err := device.MakeBuffer(label, metadata.RENDERBUFFER_TYPE_UNIFORM, length)
	if err != nil {
		return nil, fmt.Errorf("uniform buffer '%s': %w: %w", label, core.ErrBufferAllocation, err)
	}
	if buffer.Length() < length {
		return nil, fmt.Errorf("uniform buffer '%s': %w: got %d bytes, want %d", label, core.ErrBufferAllocation, buffer.Length(), length)
	}
	return &UniformRingBuffer{
		label:        label,
		buffer:       buffer,
		naturalSize:  naturalSize,
		stride:       stride,
		maxInstances: maxInstances,
		slots:        maxFramesInFlight,
	}, nil
}

// BeginFrame selects the slot written during this frame.
func (r *UniformRingBuffer) BeginFrame(bufferIndex int) error {
	if bufferIndex < 0 || bufferIndex >= r.slots {
		return fmt.Errorf("uniform buffer '%s': %w: %d not in [0,%d)", r.label, core.ErrFrameSlotRange, bufferIndex, r.slots)
	}
	r.slot = bufferIndex
	r.offset = r.SlotOffset(bufferIndex)
	return nil
}

// SlotOffset is the byte offset of frame slot i.
func (r *UniformRingBuffer) SlotOffset(i int) int {
	return r.stride * r.maxInstances * i
}

// SlotSize is the number of bytes of one frame slot.
func (r *UniformRingBuffer) SlotSize() int {
	return r.stride * r.maxInstances
}

// Element returns the bytes of instance i in the current slot. The slice
// covers the natural size and can grow up to the stride.
func (r *UniformRingBuffer) Element(i int) ([]byte, error) {
	if i < 0 || i >= r.maxInstances {
		return nil, fmt.Errorf("uniform buffer '%s': %w: %d not in [0,%d)", r.label, core.ErrInstanceOutOfRange, i, r.maxInstances)
	}
	start := r.offset + i*r.stride
	return r.buffer.Contents()[start : start+r.naturalSize : start+r.stride], nil
}

// ElementOffset is the byte offset of instance i in the current slot.
func (r *UniformRingBuffer) ElementOffset(i int) int {
	return r.offset + i*r.stride
}

// Clear zeroes the current slot.
func (r *UniformRingBuffer) Clear() {
	clear(r.buffer.Contents()[r.offset : r.offset+r.SlotSize()])
}

func (r *UniformRingBuffer) Label() string           { return r.label }
func (r *UniformRingBuffer) Buffer() metadata.Buffer { return r.buffer }
func (r *UniformRingBuffer) Offset() int             { return r.offset }
func (r *UniformRingBuffer) Slot() int               { return r.slot }
func (r *UniformRingBuffer) Stride() int             { return r.stride }
func (r *UniformRingBuffer) NaturalSize() int        { return r.naturalSize }
func (r *UniformRingBuffer) Capacity() int           { return r.maxInstances }
func (r *UniformRingBuffer) Slots() int              { return r.slots }

// FrameInFlightManager bounds how many frames the CPU may prepare ahead of
// the GPU. It is a counting semaphore of maxFramesInFlight tokens.
type FrameInFlightManager struct {
	tokens    chan struct{}
	maxFrames int
	frame     uint64
}

func NewFrameInFlightManager(maxFramesInFlight int) *FrameInFlightManager {
	if maxFramesInFlight < 1 {
		maxFramesInFlight = 1
	}
	m := &FrameInFlightManager{
		tokens:    make(chan struct{}, maxFramesInFlight),
		maxFrames: maxFramesInFlight,
	}
	for i := 0; i < maxFramesInFlight; i++ {
		m.tokens <- struct{}{}
	}
	return m
}

// BeginFrame blocks until a slot is free and returns its buffer index.
func (m *FrameInFlightManager) BeginFrame() int {
	<-m.tokens
	return m.advance()
}

// BeginFrameContext is BeginFrame that gives up when ctx is done.
func (m *FrameInFlightManager) BeginFrameContext(ctx context.Context) (int, error) {
	select {
	case <-m.tokens:
		return m.advance(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (m *FrameInFlightManager) advance() int {
	index := int(m.frame % uint64(m.maxFrames))
	m.frame++
	return index
}

// CompletionHandler returns the callback to register on the frame's command
// buffer. Releasing the slot is its only side effect.
func (m *FrameInFlightManager) CompletionHandler() func() {
	return m.release
}

func (m *FrameInFlightManager) release() {
	select {
	case m.tokens <- struct{}{}:
	default:
		core.LogWarn("frame in flight released more times than acquired")
	}
}

// Drain waits for every in-flight frame to complete.
func (m *FrameInFlightManager) Drain(ctx context.Context) error {
	acquired := 0
	defer func() {
		for ; acquired > 0; acquired-- {
			m.tokens <- struct{}{}
		}
	}()
	for acquired < m.maxFrames {
		select {
		case <-m.tokens:
			acquired++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *FrameInFlightManager) MaxFramesInFlight() int { return m.maxFrames }

// InFlight is the number of frames begun and not yet completed.
func (m *FrameInFlightManager) InFlight() int { return m.maxFrames - len(m.tokens) }

// FrameCount is the number of frames begun so far.
func (m *FrameInFlightManager) FrameCount() uint64 { return m.frame }
