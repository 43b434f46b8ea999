package systems

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/renderer/modules"
)

/** @brief The configuration for the render module system. */
type RenderModuleSystemConfig struct {
	Device             renderer.Device
	Models             renderer.ModelProvider
	MaxFramesInFlight  int
	MaxInstances       int
	MaxPaletteMatrices int
	/** @brief Fans out UpdateBuffers of modules sharing a layer. Nil updates in order. */
	Jobs *JobSystem
	/** @brief Receives every setup error and runtime warning. */
	Report func(record *core.RenderError)
}

// FrameReport summarizes one executed frame.
type FrameReport struct {
	BufferIndex    int
	Warnings       []*core.RenderError
	InstanceCounts map[string]int
}

/**
 * @brief Owns the render modules and drives them through a frame: buffer
 * rotation, buffer updates by ascending layer, compute dispatches, draws by
 * ascending layer, commit and frame completion.
 */
type RenderModuleSystem struct {
	device   renderer.Device
	setup    modules.Setup
	jobs     *JobSystem
	report   func(record *core.RenderError)
	inFlight *renderer.FrameInFlightManager

	modules []modules.RenderModule
	lookup  map[string]modules.RenderModule
	failed  map[string]bool

	countsMu sync.Mutex
	counts   map[string]int
}

func NewRenderModuleSystem(config RenderModuleSystemConfig) (*RenderModuleSystem, error) {
	if config.Device == nil {
		return nil, fmt.Errorf("func NewRenderModuleSystem - %w", core.ErrDeviceUnavailable)
	}
	if config.MaxFramesInFlight < 1 || config.MaxInstances < 1 || config.MaxPaletteMatrices < 1 {
		return nil, fmt.Errorf("func NewRenderModuleSystem - frames, instances and palette sizes must be > 0")
	}
	return &RenderModuleSystem{
		device: config.Device,
		setup: modules.Setup{
			Device:             config.Device,
			Models:             config.Models,
			MaxFramesInFlight:  config.MaxFramesInFlight,
			MaxInstances:       config.MaxInstances,
			MaxPaletteMatrices: config.MaxPaletteMatrices,
		},
		jobs:     config.Jobs,
		report:   config.Report,
		inFlight: renderer.NewFrameInFlightManager(config.MaxFramesInFlight),
		lookup:   make(map[string]modules.RenderModule),
		failed:   make(map[string]bool),
		counts:   make(map[string]int),
	}, nil
}

// Register adds a module. Modules are kept sorted by render layer; modules
// on the same layer keep their registration order.
func (s *RenderModuleSystem) Register(m modules.RenderModule) error {
	id := m.Identifier()
	if _, ok := s.lookup[id]; ok {
		return fmt.Errorf("%w: %s", core.ErrModuleExists, id)
	}
	s.lookup[id] = m
	s.modules = append(s.modules, m)
	sort.SliceStable(s.modules, func(i, j int) bool {
		return s.modules[i].RenderLayer() < s.modules[j].RenderLayer()
	})
	return nil
}

func (s *RenderModuleSystem) Get(identifier string) (modules.RenderModule, error) {
	m, ok := s.lookup[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModuleNotFound, identifier)
	}
	return m, nil
}

// Modules returns the registered modules in execution order.
func (s *RenderModuleSystem) Modules() []modules.RenderModule {
	return s.modules
}

/**
 * @brief Initializes every registered module: buffers, assets, then
 * pipelines. A failing module is recorded as a fatal setup error and stays
 * disabled; the others are still initialized.
 * @return The setup errors, empty when every module initialized.
 */
func (s *RenderModuleSystem) Initialize() []*core.RenderError {
	var records []*core.RenderError
	for _, m := range s.modules {
		if err := s.initializeModule(m); err != nil {
			s.failed[m.Identifier()] = true
			rec := core.NewSetupError(m.Identifier(), core.KindOf(err), err)
			core.LogError("render module %s failed to initialize: %s", m.Identifier(), err)
			s.record(rec)
			records = append(records, rec)
			continue
		}
		core.LogDebug("render module %s initialized (layer %d)", m.Identifier(), m.RenderLayer())
	}
	return records
}

func (s *RenderModuleSystem) initializeModule(m modules.RenderModule) error {
	if err := m.InitializeBuffers(&s.setup); err != nil {
		return fmt.Errorf("initialize buffers: %w", err)
	}
	if err := m.LoadAssets(&s.setup); err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	if err := m.LoadPipeline(&s.setup); err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}
	if !m.IsInitialized() {
		return fmt.Errorf("%w: %s", core.ErrModuleUninitialized, m.Identifier())
	}
	return nil
}

// Usable reports whether a module initialized and takes part in frames.
func (s *RenderModuleSystem) Usable(identifier string) bool {
	m, ok := s.lookup[identifier]
	return ok && m.IsInitialized() && !s.failed[identifier]
}

func (s *RenderModuleSystem) record(rec *core.RenderError) {
	if s.report != nil {
		s.report(rec)
	}
}

// warnings turns module errors into records tied to the module.
func warnings(module string, errs []error) []*core.RenderError {
	out := make([]*core.RenderError, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		var rec *core.RenderError
		if !errors.As(err, &rec) {
			rec = core.NewWarning(module, core.KindOf(err), uuid.NullUUID{}, err)
		}
		out = append(out, rec)
	}
	return out
}

/**
 * @brief Produces one frame. Blocks until a frame slot is free or ctx is
 * done. Runtime problems are returned as warnings; the error is only set
 * when no frame could be submitted.
 */
func (s *RenderModuleSystem) ExecuteFrame(ctx context.Context, frame *modules.FrameContext) (*FrameReport, error) {
	bufferIndex, err := s.inFlight.BeginFrameContext(ctx)
	if err != nil {
		return nil, err
	}
	release := s.inFlight.CompletionHandler()

	cb, err := s.device.NewCommandBuffer(fmt.Sprintf("Frame %d", frame.State.FrameNumber))
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", core.ErrDeviceUnavailable, err)
	}

	report := &FrameReport{BufferIndex: bufferIndex}
	add := func(module string, errs []error) {
		for _, rec := range warnings(module, errs) {
			s.record(rec)
			report.Warnings = append(report.Warnings, rec)
		}
	}

	// 1. rotate every module to the slot of this frame
	var active []modules.RenderModule
	for _, m := range s.modules {
		if !s.Usable(m.Identifier()) {
			continue
		}
		if err := m.UpdateBufferState(bufferIndex); err != nil {
			add(m.Identifier(), []error{err})
			continue
		}
		active = append(active, m)
	}

	// 2. update buffers by ascending layer
	if frame.Positions != nil {
		frame.Positions.UpdateAll()
	}
	s.updateBuffers(active, frame, add)

	// 3. compute before any draw
	var computes []modules.ComputeModule
	for _, m := range active {
		if c, ok := m.(modules.ComputeModule); ok {
			computes = append(computes, c)
		}
	}
	if len(computes) > 0 {
		enc, err := cb.ComputeEncoder()
		if err != nil {
			add(computes[0].Identifier(), []error{err})
		} else {
			for _, c := range computes {
				add(c.Identifier(), c.Dispatch(enc, s.sharedFor(c, active)))
			}
			enc.EndEncoding()
		}
	}

	// 4. draws by ascending layer, one encoder per consecutive pass
	var (
		enc  renderer.RenderEncoder
		pass metadata.RenderPassType
	)
	for _, m := range active {
		d, ok := m.(modules.DrawModule)
		if !ok {
			continue
		}
		if c, ok := m.(modules.Conditional); ok && !c.Active() {
			continue
		}
		if enc == nil || d.RenderPass() != pass {
			if enc != nil {
				enc.EndEncoding()
				enc = nil
			}
			e, err := cb.RenderEncoder(d.RenderPass())
			if err != nil {
				add(d.Identifier(), []error{err})
				continue
			}
			enc, pass = e, d.RenderPass()
		}
		add(d.Identifier(), d.Draw(enc, s.sharedFor(d, active)))
	}
	if enc != nil {
		enc.EndEncoding()
	}

	cb.OnCompleted(release)
	if err := cb.Commit(); err != nil {
		release()
		return nil, err
	}

	// 5. frame complete
	counts := make(map[string]int, len(active))
	for _, m := range active {
		m.FrameComplete()
		counts[m.Identifier()] = m.InstanceCount()
	}
	s.countsMu.Lock()
	s.counts = counts
	s.countsMu.Unlock()
	report.InstanceCounts = counts
	return report, nil
}

// updateBuffers runs UpdateBuffers layer by layer. Modules of the same layer
// write disjoint buffers and run on the job system when one is configured.
func (s *RenderModuleSystem) updateBuffers(active []modules.RenderModule, frame *modules.FrameContext, add func(string, []error)) {
	for start := 0; start < len(active); {
		end := start + 1
		for end < len(active) && active[end].RenderLayer() == active[start].RenderLayer() {
			end++
		}
		layer := active[start:end]
		results := make([][]error, len(layer))
		if s.jobs != nil && len(layer) > 1 {
			work := make([]func() error, len(layer))
			for i, m := range layer {
				work[i] = func() error {
					results[i] = m.UpdateBuffers(frame)
					return nil
				}
			}
			s.jobs.Run(work)
		} else {
			for i, m := range layer {
				results[i] = m.UpdateBuffers(frame)
			}
		}
		for i, m := range layer {
			add(m.Identifier(), results[i])
		}
		start = end
	}
}

// sharedFor maps the shared identifiers of m to the active modules.
func (s *RenderModuleSystem) sharedFor(m modules.RenderModule, active []modules.RenderModule) map[string]modules.RenderModule {
	shared := make(map[string]modules.RenderModule, len(m.SharedModuleIdentifiers()))
	for _, id := range m.SharedModuleIdentifiers() {
		for _, a := range active {
			if a.Identifier() == id {
				shared[id] = a
				break
			}
		}
	}
	return shared
}

// InstanceCounts returns the instance count of every module in the last frame.
func (s *RenderModuleSystem) InstanceCounts() map[string]int {
	s.countsMu.Lock()
	defer s.countsMu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *RenderModuleSystem) FrameInFlight() *renderer.FrameInFlightManager {
	return s.inFlight
}

/**
 * @brief Waits for the frames in flight to complete.
 */
func (s *RenderModuleSystem) Shutdown(ctx context.Context) error {
	return s.inFlight.Drain(ctx)
}
