package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED SystemEventCode = 0x04
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06
	// Mouse wheel. Data: *MouseEvent, Delta holds the wheel offset.
	EVENT_CODE_MOUSE_WHEEL SystemEventCode = 0x07
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// An asset on disk changed. Data: *AssetEvent
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_R       KeyCode = 0x52
)

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
)

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	X      float64
	Y      float64
	Delta  float64
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
	Name string
}

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type FnOnEvent func(context EventContext)

// EventBus queues events from any goroutine and dispatches them on the goroutine
// that calls Dispatch.
type EventBus struct {
	mu        sync.Mutex
	listeners map[SystemEventCode][]FnOnEvent
	queue     chan EventContext
}

func NewEventBus(capacity int) *EventBus {
	return &EventBus{
		listeners: make(map[SystemEventCode][]FnOnEvent),
		queue:     make(chan EventContext, capacity),
	}
}

func (b *EventBus) Register(code SystemEventCode, fn FnOnEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[code] = append(b.listeners[code], fn)
}

// Fire enqueues the event. It returns false when the queue is full and the event was dropped.
func (b *EventBus) Fire(context EventContext) bool {
	select {
	case b.queue <- context:
		return true
	default:
		LogWarn("event queue full, dropping event code %d", context.Type)
		return false
	}
}

// Dispatch delivers every queued event and returns how many were delivered.
func (b *EventBus) Dispatch() int {
	n := 0
	for {
		select {
		case ev := <-b.queue:
			b.mu.Lock()
			fns := b.listeners[ev.Type]
			b.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
			n++
		default:
			return n
		}
	}
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[SystemEventCode][]FnOnEvent)
	for {
		select {
		case <-b.queue:
		default:
			return
		}
	}
}
