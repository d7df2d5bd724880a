package input

import "testing"

type recordingOrbiter struct {
	drags [][2]float32
	zooms []float32
}

func (o *recordingOrbiter) HandleDrag(dx, dy float32) { o.drags = append(o.drags, [2]float32{dx, dy}) }
func (o *recordingOrbiter) HandleZoom(d float32) { o.zooms = append(o.zooms, d) }

func TestDrag(t *testing.T) {
	tests := []struct {
		name       string
		events     []Event
		wantDirty  bool
		wantDrags  int
		wantZooms  int
		continuous bool
	}{
		{name: "idle move", events: []Event{{Type: EventMouseMove, DX: 3}}},
		{name: "press", events: []Event{{Type: EventMouseDown}}, wantDirty: true, continuous: true},
		{
			name:       "drag",
			events:     []Event{{Type: EventMouseDown}, {Type: EventMouseMove, DX: 3, DY: -2}},
			wantDirty:  true,
			wantDrags:  1,
			continuous: true,
		},
		{
			name:      "release",
			events:    []Event{{Type: EventMouseDown}, {Type: EventMouseUp}, {Type: EventMouseMove, DX: 1}},
			wantDirty: true,
		},
		{name: "wheel", events: []Event{{Type: EventMouseWheel, Wheel: -1}}, wantDirty: true, wantZooms: 1},
		{name: "stray release", events: []Event{{Type: EventMouseUp}}, wantDirty: true},
		{name: "key", events: []Event{{Type: EventKeyDown}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Drag
			o := &recordingOrbiter{}
			if got := d.Apply(tt.events, o); got != tt.wantDirty {
				t.Errorf("dirty = %v, want %v", got, tt.wantDirty)
			}
			if len(o.drags) != tt.wantDrags || len(o.zooms) != tt.wantZooms {
				t.Errorf("got %d drags and %d zooms", len(o.drags), len(o.zooms))
			}
			if d.Continuous() != tt.continuous {
				t.Errorf("continuous = %v, want %v", d.Continuous(), tt.continuous)
			}
		})
	}
}
