package testbed

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-core/engine"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/components"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera *components.Camera

	width  uint32
	height uint32

	// Pointer drag state, in normalized device coordinates.
	dragging bool
	lastPos  mgl32.Vec2

	loadedMeshes int
	elapsed      float64
}

var clearColour = [4]float32{0.0, 0.0, 0.2, 1.0}

func NewTestGame(config *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config: config,
			State: &gameState{
				camera: components.NewCamera(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	if g.SystemManager == nil || g.Events == nil {
		return errors.New("the engine is not yet initialized with all the system managers")
	}

	for _, name := range g.Config.Assets.Meshes {
		if err := g.SystemManager.MeshSystem.LoadAsync(name); err != nil {
			return err
		}
	}

	if name := g.Config.Assets.Texture; name != "" {
		if _, err := g.SystemManager.TextureSystem.Load(name); err != nil {
			// A missing or broken texture is not fatal for the testbed.
			if !errors.Is(err, core.ErrIO) && !errors.Is(err, core.ErrParse) {
				return err
			}
			core.LogWarn("skipping texture %s: %s", name, err)
		}
	}

	g.Events.Register(core.EVENT_CODE_BUTTON_PRESSED, g.onButton)
	g.Events.Register(core.EVENT_CODE_BUTTON_RELEASED, g.onButton)
	g.Events.Register(core.EVENT_CODE_MOUSE_MOVED, g.onMouseMoved)
	g.Events.Register(core.EVENT_CODE_MOUSE_WHEEL, g.onMouseWheel)
	g.Events.Register(core.EVENT_CODE_KEY_PRESSED, g.onKey)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	if n := g.SystemManager.MeshSystem.Count(); n != state.loadedMeshes {
		state.loadedMeshes = n
		core.LogInfo("%d meshes resident", n)
	}
	return nil
}

// Render clears the back buffer. Without a pipeline the trackball orientation
// tints the clear colour so dragging has a visible effect.
func (g *TestGame) Render(frame *engine.Frame, deltaTime float64) error {
	state := g.State.(*gameState)

	colour := clearColour
	axis := state.camera.Orientation.V
	colour[0] = 0.3 * mgl32.Abs(axis[0])
	colour[1] = 0.3 * mgl32.Abs(axis[1])
	colour[2] = mgl32.Clamp(clearColour[2]+0.3*mgl32.Abs(axis[2]), 0, 1)

	frame.List.TransitionBarrier(frame.BackBuffer, gpu.ResourceStatePresent, gpu.ResourceStateCopyDest)
	frame.List.ClearTexture(frame.BackBuffer, colour)
	frame.List.TransitionBarrier(frame.BackBuffer, gpu.ResourceStateCopyDest, gpu.ResourceStatePresent)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame shutting down after %.1fs", g.State.(*gameState).elapsed)
	return nil
}

// normalize maps window pixels to [-1, 1] with y pointing up.
func (s *gameState) normalize(x, y float64) mgl32.Vec2 {
	if s.width == 0 || s.height == 0 {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{
		float32(2*x/float64(s.width) - 1),
		float32(1 - 2*y/float64(s.height)),
	}
}

func (g *TestGame) onButton(context core.EventContext) {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok || me.Button != core.BUTTON_LEFT {
		return
	}
	state := g.State.(*gameState)
	state.dragging = context.Type == core.EVENT_CODE_BUTTON_PRESSED
	state.lastPos = state.normalize(me.X, me.Y)
}

func (g *TestGame) onMouseMoved(context core.EventContext) {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok {
		return
	}
	state := g.State.(*gameState)
	if !state.dragging {
		return
	}
	pos := state.normalize(me.X, me.Y)
	state.camera.Rotate(state.lastPos, pos)
	state.lastPos = pos
}

func (g *TestGame) onMouseWheel(context core.EventContext) {
	if me, ok := context.Data.(*core.MouseEvent); ok {
		g.State.(*gameState).camera.Zoom(me.Delta)
	}
}

func (g *TestGame) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return
	}
	switch ke.KeyCode {
	case core.KEY_R:
		g.State.(*gameState).camera.Reset()
	case core.KEY_SPACE:
		// Reload everything from disk.
		for _, name := range g.Config.Assets.Meshes {
			if err := g.SystemManager.MeshSystem.LoadAsync(name); err != nil {
				core.LogError("reloading %s: %s", name, err)
			}
		}
	}
}
