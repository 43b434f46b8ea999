package renderer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/headless"
)

func TestAlignedStride(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{1, 256},
		{64, 256},
		{renderer.InstanceUniformsSize, 256},
		{256, 256},
		{257, 512},
		{512, 512},
		{600, 768},
	}
	for _, tt := range tests {
		if got := renderer.AlignedStride(tt.size); got != tt.want {
			t.Errorf("AlignedStride(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestAlignedStrideIsSmallestMultiple(t *testing.T) {
	for n := 1; n <= 4096; n++ {
		s := renderer.AlignedStride(n)
		if s%renderer.UniformAlignment != 0 || s < n || s-n >= renderer.UniformAlignment {
			t.Fatalf("AlignedStride(%d) = %d", n, s)
		}
	}
}

func TestUniformRingBufferLayout(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	rb, err := renderer.NewUniformRingBuffer(dev, "instances", renderer.InstanceUniformsSize, 4, 3)
	if err != nil {
		t.Fatalf("NewUniformRingBuffer: %v", err)
	}
	if got, want := rb.Buffer().Length(), 256*4*3; got != want {
		t.Fatalf("length = %d, want %d", got, want)
	}
	for i := 0; i < rb.Slots()-1; i++ {
		if rb.SlotOffset(i+1)-rb.SlotOffset(i) != rb.SlotSize() {
			t.Errorf("slot %d overlaps slot %d", i, i+1)
		}
	}
	if end := rb.SlotOffset(rb.Slots()-1) + rb.SlotSize(); end != rb.Buffer().Length() {
		t.Errorf("last slot ends at %d, buffer is %d bytes", end, rb.Buffer().Length())
	}

	if err := rb.BeginFrame(2); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	el, err := rb.Element(1)
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	if len(el) != renderer.InstanceUniformsSize || cap(el) != 256 {
		t.Errorf("element len=%d cap=%d", len(el), cap(el))
	}
	el[0] = 0xAB
	if got := rb.Buffer().Contents()[rb.SlotOffset(2)+256]; got != 0xAB {
		t.Errorf("element write landed elsewhere, byte = %x", got)
	}
	if rb.ElementOffset(1) != rb.SlotOffset(2)+256 {
		t.Errorf("ElementOffset(1) = %d", rb.ElementOffset(1))
	}

	rb.Clear()
	if got := rb.Buffer().Contents()[rb.SlotOffset(2)+256]; got != 0 {
		t.Errorf("Clear left %x", got)
	}
}

func TestUniformRingBufferErrors(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	rb, err := renderer.NewUniformRingBuffer(dev, "shared", renderer.SharedUniformsSize, 1, 3)
	if err != nil {
		t.Fatalf("NewUniformRingBuffer: %v", err)
	}
	if err := rb.BeginFrame(3); !errors.Is(err, core.ErrFrameSlotRange) {
		t.Errorf("BeginFrame(3) = %v", err)
	}
	if err := rb.BeginFrame(-1); !errors.Is(err, core.ErrFrameSlotRange) {
		t.Errorf("BeginFrame(-1) = %v", err)
	}
	if _, err := rb.Element(1); !errors.Is(err, core.ErrInstanceOutOfRange) {
		t.Errorf("Element(1) = %v", err)
	}

	if _, err := renderer.NewUniformRingBuffer(nil, "nil", 16, 1, 1); !errors.Is(err, core.ErrDeviceUnavailable) {
		t.Errorf("nil device = %v", err)
	}
	small := headless.NewDevice(headless.Options{MaxBufferLength: 1024})
	_, err = renderer.NewUniformRingBuffer(small, "big", renderer.InstanceUniformsSize, 64, 3)
	if !errors.Is(err, core.ErrBufferAllocation) {
		t.Errorf("oversized allocation = %v", err)
	}
	if core.KindOf(err) != core.KindBufferAllocation {
		t.Errorf("KindOf = %s", core.KindOf(err))
	}
}

func TestFrameInFlightManagerBounds(t *testing.T) {
	m := renderer.NewFrameInFlightManager(3)
	for want := 0; want < 3; want++ {
		if got := m.BeginFrame(); got != want {
			t.Fatalf("BeginFrame = %d, want %d", got, want)
		}
	}
	if m.InFlight() != 3 {
		t.Fatalf("InFlight = %d", m.InFlight())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.BeginFrameContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("fourth frame did not block: %v", err)
	}

	m.CompletionHandler()()
	if got := m.BeginFrame(); got != 0 {
		t.Errorf("index after wrap = %d, want 0", got)
	}
	if m.FrameCount() != 4 {
		t.Errorf("FrameCount = %d", m.FrameCount())
	}
}

func TestFrameInFlightManagerReleasedByCompletion(t *testing.T) {
	dev := headless.NewDevice(headless.Options{ManualCompletion: true})
	m := renderer.NewFrameInFlightManager(2)

	for i := 0; i < 2; i++ {
		m.BeginFrame()
		cb, err := dev.NewCommandBuffer("frame")
		if err != nil {
			t.Fatal(err)
		}
		cb.OnCompleted(m.CompletionHandler())
		if err := cb.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	acquired := make(chan int, 1)
	go func() { acquired <- m.BeginFrame() }()
	select {
	case <-acquired:
		t.Fatal("third frame began while two were in flight")
	case <-time.After(20 * time.Millisecond):
	}

	if n := dev.CompletePending(); n != 2 {
		t.Fatalf("CompletePending = %d", n)
	}
	select {
	case idx := <-acquired:
		if idx != 0 {
			t.Errorf("index = %d, want 0", idx)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never began after completion")
	}
}

func TestFrameInFlightManagerExtraRelease(t *testing.T) {
	m := renderer.NewFrameInFlightManager(1)
	m.CompletionHandler()()
	if m.InFlight() != 0 {
		t.Errorf("InFlight = %d", m.InFlight())
	}
	if err := m.Drain(context.Background()); err != nil {
		t.Errorf("Drain: %v", err)
	}
}
