package metadata

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

/** @brief A texture resident in device memory. */
type Texture struct {
	ID           uuid.UUID
	Name         string
	Width        uint32
	Height       uint32
	ChannelCount uint8
	HasAlpha     bool
	Generation   uint32
	Handle       gpu.Texture
}
