// Package input turns SDL2 events into viewer events and tracks whether the
// viewer must keep redrawing.
package input

import (
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// EventType classifies viewer events.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	// DX and DY are the relative motion of a mouse move.
	DX, DY int
	Wheel  int
	Button uint8
}

// Input collects events for one iteration of the viewer loop.
type Input struct {
	events []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update gathers pending events. With wait > 0 it first sleeps until an event
// arrives or wait elapses, so an idle viewer does not spin.
// Returns true if the viewer should quit.
func (i *Input) Update(wait time.Duration) bool {
	i.events = i.events[:0]

	if wait > 0 {
		if ev := sdl.WaitEventTimeout(int(wait.Milliseconds())); ev != nil {
			i.add(ev)
		}
	}
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		i.add(ev)
	}

	for _, e := range i.events {
		if e.Type == EventQuit {
			return true
		}
	}
	return false
}

func (i *Input) add(event sdl.Event) {
	if e, ok := translate(event); ok {
		i.events = append(i.events, e)
	}
}

func translate(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Type: EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return Event{Type: EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)}, true
		}

	case *sdl.KeyboardEvent:
		if e.Type == sdl.KEYDOWN {
			return Event{Type: EventKeyDown, Key: e.Keysym.Scancode}, true
		}

	case *sdl.MouseMotionEvent:
		return Event{Type: EventMouseMove, DX: int(e.XRel), DY: int(e.YRel)}, true

	case *sdl.MouseButtonEvent:
		if e.Type == sdl.MOUSEBUTTONDOWN {
			return Event{Type: EventMouseDown, Button: e.Button}, true
		}
		return Event{Type: EventMouseUp, Button: e.Button}, true

	case *sdl.MouseWheelEvent:
		return Event{Type: EventMouseWheel, Wheel: int(e.Y)}, true
	}
	return Event{}, false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}
