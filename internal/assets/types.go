// Package assets fetches study-area resources in concurrent batches and
// collects them into a Repository.
package assets

import (
	"errors"
	"fmt"
)

// Kind selects how fetched bytes are turned into a value.
type Kind string

// Asset kinds.
const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindTexture    Kind = "texture"
	KindGeometry   Kind = "geometry"
	KindStatistics Kind = "statistics"
)

// Kinds lists every supported kind in dispatch order.
var Kinds = []Kind{KindText, KindImage, KindTexture, KindGeometry, KindStatistics}

// Loader errors.
var (
	ErrUnknownKind = errors.New("assets: unknown asset kind")
	ErrStatus      = errors.New("assets: unexpected response status")
	ErrNotFound    = errors.New("assets: not found")
)

// Descriptor identifies one fetchable resource.
type Descriptor struct {
	Name string
	URL  string
}

// Batch maps each kind to the descriptors to fetch for it.
type Batch map[Kind][]Descriptor

// Add appends a descriptor of the given kind.
func (b Batch) Add(kind Kind, name, url string) {
	b[kind] = append(b[kind], Descriptor{Name: name, URL: url})
}

// Len returns the total number of descriptors.
func (b Batch) Len() int {
	n := 0
	for _, ds := range b {
		n += len(ds)
	}
	return n
}

// Clone returns a deep copy so later edits by the caller cannot reach an
// in-flight load.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for k, ds := range b {
		out[k] = append([]Descriptor(nil), ds...)
	}
	return out
}

// AssetError reports the failure of a single descriptor.
type AssetError struct {
	Kind Kind
	Name string
	URL  string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("assets: %s %q from %s: %v", e.Kind, e.Name, e.URL, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
