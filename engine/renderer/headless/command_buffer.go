package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_COMPLETED
)

// Op is the kind of a recorded command.
type Op int

const (
	OpPushDebugGroup Op = iota
	OpPopDebugGroup
	OpSetPipeline
	OpSetVertexBuffer
	OpSetFragmentBuffer
	OpSetVertexBytes
	OpSetFragmentTexture
	OpDrawIndexed
	OpSetBuffer
	OpSetBytes
	OpDispatch
	OpEndEncoding
)

// Command is one recorded encoder call. Pass is "compute" or the render
// pass name.
type Command struct {
	Pass      string
	Op        Op
	Label     string
	Index     int
	Offset    int
	Count     int
	Instances int
	Data      []byte
}

// CommandBuffer records the commands of one frame.
type CommandBuffer struct {
	device *Device
	label  string

	mu         sync.Mutex
	state      CommandBufferState
	commands   []Command
	onComplete []func()
}

var _ renderer.CommandBuffer = &CommandBuffer{}

func (c *CommandBuffer) Label() string {
	return c.label
}

func (c *CommandBuffer) record(cmd Command) {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	c.mu.Unlock()
}

func (c *CommandBuffer) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state > COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("command buffer '%s' already committed", c.label)
	}
	c.state = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (c *CommandBuffer) ComputeEncoder() (renderer.ComputeEncoder, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	return &ComputeEncoder{buffer: c}, nil
}

func (c *CommandBuffer) RenderEncoder(pass metadata.RenderPassType) (renderer.RenderEncoder, error) {
	if c.device.unsupported[pass] {
		return nil, fmt.Errorf("%w: %s", core.ErrRenderPassNotFound, pass)
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	return &RenderEncoder{buffer: c, pass: pass.String()}, nil
}

func (c *CommandBuffer) OnCompleted(handler func()) {
	c.mu.Lock()
	c.onComplete = append(c.onComplete, handler)
	c.mu.Unlock()
}

func (c *CommandBuffer) Commit() error {
	c.mu.Lock()
	if c.state > COMMAND_BUFFER_STATE_RECORDING {
		c.mu.Unlock()
		return fmt.Errorf("command buffer '%s' already committed", c.label)
	}
	c.state = COMMAND_BUFFER_STATE_SUBMITTED
	c.mu.Unlock()
	c.device.submit(c)
	return nil
}

func (c *CommandBuffer) setState(state CommandBufferState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *CommandBuffer) handlers() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(){}, c.onComplete...)
}

func (c *CommandBuffer) State() CommandBufferState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Commands returns a copy of the recorded commands.
func (c *CommandBuffer) Commands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Command, len(c.commands))
	copy(out, c.commands)
	return out
}

// Filter returns the recorded commands of the given op.
func (c *CommandBuffer) Filter(op Op) []Command {
	var out []Command
	for _, cmd := range c.Commands() {
		if cmd.Op == op {
			out = append(out, cmd)
		}
	}
	return out
}

// DebugGroups returns the labels of the pushed debug groups in order.
func (c *CommandBuffer) DebugGroups() []string {
	var out []string
	for _, cmd := range c.Filter(OpPushDebugGroup) {
		out = append(out, cmd.Label)
	}
	return out
}

type RenderEncoder struct {
	buffer *CommandBuffer
	pass   string
}

func (e *RenderEncoder) PushDebugGroup(label string) {
	e.buffer.record(Command{Pass: e.pass, Op: OpPushDebugGroup, Label: label})
}

func (e *RenderEncoder) PopDebugGroup() {
	e.buffer.record(Command{Pass: e.pass, Op: OpPopDebugGroup})
}

func (e *RenderEncoder) SetPipeline(pipeline metadata.Pipeline) {
	e.buffer.record(Command{Pass: e.pass, Op: OpSetPipeline, Label: pipeline.Label()})
}

func (e *RenderEncoder) SetVertexBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex) {
	e.buffer.record(Command{Pass: e.pass, Op: OpSetVertexBuffer, Label: buffer.Label(), Offset: offset, Index: int(index)})
}

func (e *RenderEncoder) SetFragmentBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex) {
	e.buffer.record(Command{Pass: e.pass, Op: OpSetFragmentBuffer, Label: buffer.Label(), Offset: offset, Index: int(index)})
}

func (e *RenderEncoder) SetVertexBytes(data []byte, index metadata.BufferIndex) {
	e.buffer.record(Command{Pass: e.pass, Op: OpSetVertexBytes, Index: int(index), Data: append([]byte(nil), data...)})
}

func (e *RenderEncoder) SetFragmentTexture(texture metadata.Texture, index metadata.TextureIndex) {
	e.buffer.record(Command{Pass: e.pass, Op: OpSetFragmentTexture, Label: texture.Label(), Index: int(index)})
}

func (e *RenderEncoder) DrawIndexed(submesh *metadata.Submesh, instanceCount int) {
	e.buffer.record(Command{
		Pass:      e.pass,
		Op:        OpDrawIndexed,
		Label:     submesh.Name,
		Offset:    int(submesh.IndexOffset),
		Count:     int(submesh.IndexCount),
		Instances: instanceCount,
	})
}

func (e *RenderEncoder) EndEncoding() {
	e.buffer.record(Command{Pass: e.pass, Op: OpEndEncoding})
}

type ComputeEncoder struct {
	buffer *CommandBuffer
}

const computePass = "compute"

func (e *ComputeEncoder) PushDebugGroup(label string) {
	e.buffer.record(Command{Pass: computePass, Op: OpPushDebugGroup, Label: label})
}

func (e *ComputeEncoder) PopDebugGroup() {
	e.buffer.record(Command{Pass: computePass, Op: OpPopDebugGroup})
}

func (e *ComputeEncoder) SetPipeline(pipeline metadata.ComputePipeline) {
	e.buffer.record(Command{Pass: computePass, Op: OpSetPipeline, Label: pipeline.Label()})
}

func (e *ComputeEncoder) SetBuffer(buffer metadata.Buffer, offset int, index metadata.BufferIndex) {
	e.buffer.record(Command{Pass: computePass, Op: OpSetBuffer, Label: buffer.Label(), Offset: offset, Index: int(index)})
}

func (e *ComputeEncoder) SetBytes(data []byte, index metadata.BufferIndex) {
	e.buffer.record(Command{Pass: computePass, Op: OpSetBytes, Index: int(index), Data: append([]byte(nil), data...)})
}

func (e *ComputeEncoder) Dispatch(threadgroups, threadsPerThreadgroup int) {
	e.buffer.record(Command{Pass: computePass, Op: OpDispatch, Count: threadgroups, Instances: threadsPerThreadgroup})
}

func (e *ComputeEncoder) EndEncoding() {
	e.buffer.record(Command{Pass: computePass, Op: OpEndEncoding})
}
