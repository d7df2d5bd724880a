// Package gpu tracks backend resources attached to CPU-side scene data.
//
// Scene data is built without a graphics context. A renderer uploads it lazily
// and attaches a Releaser to the Binding; tearing the scene down calls Release
// synchronously so buffers and textures are freed on the render goroutine.
package gpu

// Releaser frees one backend resource.
type Releaser interface {
	Release()
}

// ReleaseFunc adapts a function to Releaser.
type ReleaseFunc func()

// Release calls f.
func (f ReleaseFunc) Release() { f() }

// Binding holds the backend resource for one piece of scene data.
// The zero value is unbound.
type Binding struct {
	res     Releaser
	version uint64
}

// Bind attaches r, releasing whatever was bound before.
func (b *Binding) Bind(r Releaser) {
	if b.res != nil {
		b.res.Release()
	}
	b.res = r
}

// Bound returns the attached resource, or nil.
func (b *Binding) Bound() Releaser {
	return b.res
}

// Release frees the attached resource. Calling it on an unbound Binding is a no-op.
func (b *Binding) Release() {
	if b.res == nil {
		return
	}
	b.res.Release()
	b.res = nil
}

// Invalidate marks the CPU data as changed so the renderer re-uploads it.
func (b *Binding) Invalidate() {
	b.version++
}

// Version is bumped on every Invalidate.
func (b *Binding) Version() uint64 {
	return b.version
}
