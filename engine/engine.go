package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine/assets"
	"github.com/spaghettifunk/anima-ar/engine/config"
	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/diagnostics"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/renderer/modules"
	"github.com/spaghettifunk/anima-ar/engine/scene"
	"github.com/spaghettifunk/anima-ar/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const engineIdentifier = "Engine"

// ErrNoCamera is returned by DrawFrame for an input without a camera.
var ErrNoCamera = errors.New("frame input has no camera")

// defaultModelSize is the edge length, in meters, of the cube drawn for
// entities without a model.
const defaultModelSize = 0.1

/**
 * @brief The per-frame input handed over by the AR session.
 */
type FrameInput struct {
	Camera        *scene.Camera
	LightEstimate *scene.LightEstimate
	Entities      []*scene.Entity
	Positions     *scene.PositionGraph
	// Environment defaults to scene.DefaultEnvironment when nil.
	Environment *scene.EnvironmentProperties
	// Shadow is nil on frames without a shadow map.
	Shadow      *scene.ShadowProperties
	FrameNumber uint64
	// FrameRate overrides the configured frame rate when > 0.
	FrameRate float64
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool

	mutex   sync.RWMutex
	config  *config.Config
	watcher *config.Watcher

	device       renderer.Device
	models       *renderer.ModelLibrary
	assetManager *assets.AssetManager
	modules      *systems.RenderModuleSystem
	jobs         *systems.JobSystem

	collector *diagnostics.Collector
	server    *diagnostics.Server

	clock       *core.Clock
	frameClock  *core.Clock
	metrics     *core.FrameMetrics
	lastTime    float64
	frameNumber uint64
}

func New(g *Game, device renderer.Device) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("engine requires a game with an application config")
	}
	if device == nil {
		return nil, fmt.Errorf("func New - %w", core.ErrDeviceUnavailable)
	}

	cfg := config.Default()
	if path := g.ApplicationConfig.ConfigPath; path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		cfg = loaded
	}
	if err := applyLogging(cfg, g.ApplicationConfig.Name); err != nil {
		return nil, err
	}

	defaultModel := renderer.SingleMeshModel(renderer.GenerateCubeAsset(
		defaultModelSize, defaultModelSize, defaultModelSize, "default", metadata.DefaultMaterial()))

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		device:       device,
		models:       renderer.NewModelLibrary(defaultModel),
		collector:    diagnostics.NewCollector(cfg.Diagnostics.HistorySize),
		clock:        core.NewClock(),
		frameClock:   core.NewClock(),
		metrics:      core.NewFrameMetrics(),
	}, nil
}

func applyLogging(cfg *config.Config, name string) error {
	if err := core.SetLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level %q: %w", cfg.Logging.Level, err)
	}
	switch {
	case cfg.Logging.Prefix != "":
		core.SetLogPrefix(cfg.Logging.Prefix)
	case name != "":
		core.SetLogPrefix(name + " ")
	}
	return nil
}

// standardModules returns the render modules of an AR session, without the
// ones disabled in cfg.
func standardModules(cfg *config.Config) []modules.RenderModule {
	var geometry []string
	var casters []string
	for _, id := range []string{modules.AnchorsIdentifier, modules.TrackersIdentifier, modules.SurfacesIdentifier, modules.PathsIdentifier} {
		if !cfg.ModuleDisabled(id) {
			geometry = append(geometry, id)
		}
	}
	for _, id := range []string{modules.AnchorsIdentifier, modules.TrackersIdentifier} {
		if !cfg.ModuleDisabled(id) {
			casters = append(casters, id)
		}
	}

	all := []modules.RenderModule{
		modules.NewSharedBuffersModule(),
		modules.NewPrecalculationModule(geometry...),
		modules.NewShadowModule(casters...),
		modules.NewAnchorsModule(),
		modules.NewTrackersModule(),
		modules.NewSurfacesModule(),
		modules.NewPathsModule(),
	}
	out := all[:0]
	for _, m := range all {
		if cfg.ModuleDisabled(m.Identifier()) {
			core.LogInfo("render module %s disabled by config", m.Identifier())
			continue
		}
		out = append(out, m)
	}
	return out
}

/**
 * @brief Creates and initializes the render modules, then starts the
 * optional services: asset and config watching, diagnostics.
 * A module failing to initialize is recorded and left out; it does not fail
 * the engine.
 */
func (e *Engine) Initialize() (err error) {
	e.currentStage = EngineStageInitializing
	defer func() {
		if err == nil {
			return
		}
		// stop what was already started
		if rerr := e.releaseServices(context.Background()); rerr != nil {
			core.LogWarn("releasing services after failed initialization: %s", rerr.Error())
		}
		e.currentStage = EngineStageUninitialized
	}()
	cfg := e.Config()

	if cfg.Renderer.ParallelUpdates {
		jobs, err := systems.NewJobSystem(cfg.Renderer.Workers, cfg.Renderer.Workers*4)
		if err != nil {
			return err
		}
		e.jobs = jobs
	}

	ms, err := systems.NewRenderModuleSystem(systems.RenderModuleSystemConfig{
		Device:             e.device,
		Models:             e.models,
		MaxFramesInFlight:  cfg.Renderer.MaxFramesInFlight,
		MaxInstances:       cfg.Renderer.MaxInstances,
		MaxPaletteMatrices: cfg.Renderer.MaxPaletteMatrices,
		Jobs:               e.jobs,
		Report:             e.collector.Report,
	})
	if err != nil {
		return err
	}
	for _, m := range standardModules(cfg) {
		if err := ms.Register(m); err != nil {
			return err
		}
	}
	if records := ms.Initialize(); len(records) > 0 {
		core.LogWarn("%d render module(s) disabled after setup", len(records))
	}
	e.modules = ms

	if path := e.gameInstance.ApplicationConfig.AssetsPath; path != "" {
		am, err := assets.NewAssetManager(e.models)
		if err != nil {
			return err
		}
		if err := am.Initialize(path); err != nil {
			_ = am.Close()
			return err
		}
		e.assetManager = am
	}

	if path := e.gameInstance.ApplicationConfig.ConfigPath; path != "" {
		w, err := config.NewWatcher(path, e.applyConfig)
		if err != nil {
			return err
		}
		e.watcher = w
	}

	if cfg.Diagnostics.Enabled {
		s := diagnostics.NewServer(e.collector)
		if err := s.Start(cfg.Diagnostics.Address); err != nil {
			return err
		}
		e.server = s
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// applyConfig hot-applies a reloaded config. Settings that size the GPU
// buffers keep their current value until restart.
func (e *Engine) applyConfig(next *config.Config) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.config.RequiresRestart(next) {
		core.LogWarn("buffer sizes changed in the config, restart to apply them")
	}
	applied := *e.config
	applied.Renderer.RenderDistance = next.Renderer.RenderDistance
	applied.Renderer.FrameRate = next.Renderer.FrameRate
	applied.Renderer.Quality = next.Renderer.Quality
	applied.Logging = next.Logging
	if err := applyLogging(&applied, e.gameInstance.ApplicationConfig.Name); err != nil {
		core.LogWarn(err.Error())
		applied.Logging = e.config.Logging
	}
	e.config = &applied
	core.LogInfo("config applied: render distance %.1f, frame rate %.1f, quality %s",
		applied.Renderer.RenderDistance, applied.Renderer.FrameRate, applied.Renderer.Quality)
}

// Config returns the settings in effect.
func (e *Engine) Config() *config.Config {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.config
}

// Models is the library resolving model bindings. Games register their
// models here; manifests under AssetsPath are loaded into it too.
func (e *Engine) Models() *renderer.ModelLibrary {
	return e.models
}

func (e *Engine) Modules() *systems.RenderModuleSystem {
	return e.modules
}

func (e *Engine) Diagnostics() *diagnostics.Collector {
	return e.collector
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) frameContext(input *FrameInput, cfg *config.Config) *modules.FrameContext {
	env := scene.DefaultEnvironment()
	if input.Environment != nil {
		env = *input.Environment
	}
	env.ApplyLightEstimate(input.LightEstimate)

	frameRate := cfg.Renderer.FrameRate
	if input.FrameRate > 0 {
		frameRate = input.FrameRate
	}

	entities := make([]*scene.Entity, 0, len(input.Entities))
	for _, ent := range input.Entities {
		if ent == nil {
			continue
		}
		if err := ent.Validate(); err != nil {
			e.collector.Report(core.NewWarning(engineIdentifier, core.KindOf(err), uuid.NullUUID{UUID: ent.ID, Valid: true}, err))
			continue
		}
		entities = append(entities, ent)
	}
	positions := input.Positions
	if positions == nil {
		positions = scene.NewPositionGraph()
	}

	return &modules.FrameContext{
		State: &renderer.FrameState{
			Camera:      input.Camera,
			Environment: &env,
			Shadow:      input.Shadow,
			FrameNumber: input.FrameNumber,
			FrameRate:   frameRate,
		},
		Entities:           scene.NewEntitySet(entities),
		Positions:          positions,
		RenderDistance:     cfg.Renderer.RenderDistance,
		ForceSimpleShading: cfg.Renderer.Quality == config.QualityLow,
	}
}

/**
 * @brief Renders one frame. Blocks while every frame slot is in flight.
 * Runtime problems end up in the report and the diagnostics; an error is
 * only returned when no frame was submitted.
 */
func (e *Engine) DrawFrame(ctx context.Context, input *FrameInput) (*systems.FrameReport, error) {
	if e.modules == nil {
		return nil, fmt.Errorf("func DrawFrame - %w", core.ErrModuleUninitialized)
	}
	if input == nil || input.Camera == nil {
		return nil, ErrNoCamera
	}
	cfg := e.Config()

	e.frameClock.Start()
	report, err := e.modules.ExecuteFrame(ctx, e.frameContext(input, cfg))
	if err != nil {
		return nil, err
	}
	e.frameClock.Update()
	e.metrics.Update(e.frameClock.Elapsed())
	e.frameNumber++

	e.collector.EndFrame(input.FrameNumber, report.InstanceCounts, e.metrics)
	if e.server != nil && e.frameNumber%uint64(cfg.Diagnostics.BroadcastEvery) == 0 {
		e.server.Broadcast()
	}
	return report, nil
}

/**
 * @brief Runs the game loop until ctx is done, Stop is called or the game
 * fails. Frames are paced to the configured frame rate.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine must be initialized before running")
	}
	if e.gameInstance.FnUpdate == nil {
		return errors.New("game has no update function")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		input, err := e.gameInstance.FnUpdate(delta)
		if err != nil {
			core.LogError("Game update failed, shutting down: %s", err.Error())
			return err
		}
		if input != nil {
			if _, err := e.DrawFrame(ctx, input); err != nil {
				if ctx.Err() != nil {
					break
				}
				core.LogError("frame %d not rendered: %s", input.FrameNumber, err.Error())
			}
		}

		e.clock.Update()
		targetFrameSeconds := 1.0 / e.Config().Renderer.FrameRate
		remaining := targetFrameSeconds - (e.clock.Elapsed() - currentTime)
		if remaining > 0 {
			select {
			case <-time.After(time.Duration(remaining * float64(time.Second))):
			case <-ctx.Done():
			}
		}
		e.lastTime = currentTime
	}
	return nil
}

// Stop makes Run return after the current frame.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

/**
 * @brief Stops the loop, waits for the frames in flight and releases the
 * services started by Initialize.
 */
func (e *Engine) Shutdown(ctx context.Context) error {
	e.currentStage = EngineStageShuttingDown
	e.Stop()

	errs := []error{e.releaseServices(ctx)}
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	e.clock.Stop()
	return errors.Join(errs...)
}

// releaseServices waits for the frames in flight and stops the watchers, the
// diagnostics server and the job pool. Released services are cleared so a
// second call is a no-op.
func (e *Engine) releaseServices(ctx context.Context) error {
	var errs []error
	if e.modules != nil {
		errs = append(errs, e.modules.Shutdown(ctx))
		e.modules = nil
	}
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Close())
		e.assetManager = nil
	}
	if e.server != nil {
		errs = append(errs, e.server.Shutdown(ctx))
		e.server = nil
	}
	if e.jobs != nil {
		errs = append(errs, e.jobs.Shutdown())
		e.jobs = nil
	}
	return errors.Join(errs...)
}
