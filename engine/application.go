package engine

import "github.com/spaghettifunk/anima-core/engine/renderer/gpu"

// Frame is what the game records into for one presented image.
type Frame struct {
	List       gpu.CommandList
	BackBuffer gpu.Texture
	Depth      gpu.Texture
	// Index of the back buffer within the double buffered surface.
	Index      int
	Dimensions gpu.Dimensions
	// Fence value the frame's work will signal once submitted.
	Number uint64
}
