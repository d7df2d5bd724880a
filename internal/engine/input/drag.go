package input

// Drag tracks mouse interaction for demand-driven rendering: the viewer
// redraws continuously only while a button is held, and once per wheel step
// otherwise.
type Drag struct {
	held int
}

// Orbiter receives camera gestures.
type Orbiter interface {
	HandleDrag(dx, dy float32)
	HandleZoom(delta float32)
}

// Apply feeds events to o and reports whether the scene needs a redraw.
func (d *Drag) Apply(events []Event, o Orbiter) bool {
	dirty := false
	for _, e := range events {
		switch e.Type {
		case EventMouseDown:
			d.held++
			dirty = true
		case EventMouseUp:
			if d.held > 0 {
				d.held--
			}
			dirty = true
		case EventMouseMove:
			if d.held > 0 && (e.DX != 0 || e.DY != 0) {
				o.HandleDrag(float32(e.DX), float32(e.DY))
				dirty = true
			}
		case EventMouseWheel:
			if e.Wheel != 0 {
				o.HandleZoom(float32(e.Wheel))
				dirty = true
			}
		}
	}
	return dirty
}

// Continuous reports whether a button is held.
func (d *Drag) Continuous() bool {
	return d.held > 0
}
