package engine

import (
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/systems"
)

// Game is the application driven by the engine. SystemManager and Events are
// filled in by the engine before FnInitialize runs.
type Game struct {
	Config        *core.Config
	SystemManager *systems.SystemManager
	Events        *core.EventBus
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnRender      Render
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render records the frame. The back buffer arrives in the present state and
// must be left in it.
type Render func(frame *Frame, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
