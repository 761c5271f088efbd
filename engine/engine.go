package engine

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/assets"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/platform"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
	"github.com/spaghettifunk/anima-core/engine/renderer/surface"
	"github.com/spaghettifunk/anima-core/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-core/engine/systems"
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

const eventQueueCapacity = 1024

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    bool
	isSuspended  bool

	events        *core.EventBus
	platform      *platform.Platform
	backend       *vulkan.VulkanBackend
	ring          *submission.Ring
	surface       *surface.Coordinator
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager

	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64

	// Resize requested by the window, applied at the start of the next frame.
	resizePending bool
	pendingDims   gpu.Dimensions
	// Fence value of the last frame that rendered into each back buffer.
	bufferFences [surface.BufferCount]uint64
}

func New(g *Game) (*Engine, error) {
	cfg := g.Config
	if cfg == nil {
		cfg = core.DefaultConfig()
		g.Config = cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(cfg.Logging.Level)

	events := core.NewEventBus(eventQueueCapacity)
	am, err := assets.NewAssetManager(assets.Options{
		Root:      cfg.Assets.Root,
		Watch:     cfg.Assets.Watch,
		InvertUVs: cfg.Assets.InvertUVs,
	}, events)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		events:       events,
		platform:     platform.New(events),
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		isRunning:    true,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(cfg.Application.Name,
		cfg.Application.StartPosX,
		cfg.Application.StartPosY,
		cfg.Application.StartWidth,
		cfg.Application.StartHeight); err != nil {
		return err
	}

	backend, err := vulkan.New(cfg.Application.Name, e.platform, cfg.Renderer.EnableValidation, cfg.Renderer.FenceTimeout())
	if err != nil {
		return err
	}
	e.backend = backend

	ring, err := submission.NewRing(backend)
	if err != nil {
		return err
	}
	e.ring = ring

	e.surface = surface.NewCoordinator(backend, ring, surface.BackBufferFormat)
	if err := e.surface.Configure(e.platform.FramebufferSize()); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}

	sm, err := systems.NewSystemManager(cfg, backend, ring, e.assetManager)
	if err != nil {
		return err
	}
	e.systemManager = sm
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, sm.OnEvent)

	e.gameInstance.SystemManager = sm
	e.gameInstance.Events = e.events
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	dims := e.surface.Dimensions()
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(dims.Width, dims.Height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.platform.PumpMessages()
		e.events.Dispatch()

		if e.isSuspended {
			// Nothing to present into; avoid spinning.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}

		if err := e.drawFrame(delta); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			return err
		}

		frameElapsedTime := e.platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		if e.metrics.TotalFrames()%600 == 0 {
			core.LogDebug("%.1f fps, %.2f ms/frame, fence %d", e.metrics.FPS(), e.metrics.FrameTime(), e.ring.Completed())
		}

		e.lastTime = currentTime
	}
	return nil
}

// drawFrame applies a pending resize, records the game's frame into the
// acquired back buffer, submits it and presents.
func (e *Engine) drawFrame(delta float64) error {
	if e.resizePending {
		e.resizePending = false
		if err := e.reconfigure(e.pendingDims); err != nil {
			return err
		}
	}

	if e.systemManager != nil {
		e.systemManager.Update()
	}

	backBuffer, err := e.surface.BeginFrame()
	if err != nil {
		return e.handleSurfaceError(err)
	}
	index := e.surface.ActiveIndex()

	// The buffer is reused only after the frame that last rendered into it has finished.
	if v := e.bufferFences[index]; v > e.ring.Completed() {
		if err := e.ring.Fence().Wait(v); err != nil {
			return errors.Wrapf(err, "waiting for back buffer %d", index)
		}
	}

	s, err := e.ring.Acquire()
	if err != nil {
		return err
	}
	frame := &Frame{
		List:       s.List,
		BackBuffer: backBuffer,
		Depth:      e.surface.DepthBuffer(),
		Index:      index,
		Dimensions: e.surface.Dimensions(),
		Number:     e.ring.Counter() + 1,
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(frame, delta); err != nil {
			e.ring.Discard(s)
			return errors.Wrap(err, "recording frame")
		}
	}
	if err := s.List.Close(); err != nil {
		e.ring.Discard(s)
		return errors.Wrap(err, "closing frame command list")
	}
	if err := e.ring.Submit(s); err != nil {
		return err
	}
	e.bufferFences[index] = s.FenceValue()

	if err := e.surface.Present(); err != nil {
		return e.handleSurfaceError(err)
	}
	return nil
}

// handleSurfaceError turns an out of date surface into a resize on the next frame.
func (e *Engine) handleSurfaceError(err error) error {
	if !errors.Is(err, core.ErrSwapchainBooting) {
		return err
	}
	core.LogDebug("surface out of date, rebuilding: %s", err)
	dims := e.surface.Dimensions()
	if e.platform != nil && e.platform.Window != nil {
		dims = e.platform.FramebufferSize()
	}
	e.requestResize(dims)
	return nil
}

func (e *Engine) requestResize(dims gpu.Dimensions) {
	e.pendingDims = dims
	e.resizePending = true
}

func (e *Engine) reconfigure(dims gpu.Dimensions) error {
	if dims.Empty() {
		e.isSuspended = true
		return nil
	}
	if err := e.surface.Configure(dims); err != nil {
		return err
	}
	// Configure drained the device.
	e.bufferFences = [surface.BufferCount]uint64{}
	if e.gameInstance.FnOnResize != nil {
		return e.gameInstance.FnOnResize(dims.Width, dims.Height)
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs error
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.systemManager != nil {
		errs = errors.CombineErrors(errs, e.systemManager.Shutdown())
	}
	if e.surface != nil {
		errs = errors.CombineErrors(errs, e.surface.Release())
	}
	if e.ring != nil {
		errs = errors.CombineErrors(errs, e.ring.Shutdown())
	}
	if e.assetManager != nil {
		errs = errors.CombineErrors(errs, e.assetManager.Shutdown())
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	if e.platform != nil {
		errs = errors.CombineErrors(errs, e.platform.Shutdown())
	}
	e.events.Shutdown()
	e.currentStage = EngineStageUninitialized
	return errs
}

// Quit asks the main loop to stop after the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

func (e *Engine) onEvent(context core.EventContext) {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// Other listeners may care about quitting too.
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	dims := gpu.Dimensions{Width: se.WindowWidth, Height: se.WindowHeight}
	if dims.Empty() {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	core.LogDebug("Window resize: %d, %d", dims.Width, dims.Height)
	e.requestResize(dims)
}
