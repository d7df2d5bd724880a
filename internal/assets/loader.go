package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Callbacks observe one Load call. Every field is optional. All callbacks run
// on the goroutine that called Load.
type Callbacks struct {
	// OnSuccess receives the repository when every descriptor loaded.
	OnSuccess func(*Repository)
	// OnProgress receives loaded/total after each completion. Failures do not
	// advance the numerator.
	OnProgress func(fraction float64)
	// OnError receives every failure joined into one error.
	OnError func(error)
	// OnDone fires last, exactly once.
	OnDone func(ok bool)
}

// Loader fetches batches from a Source.
type Loader struct {
	src         Source
	log         *zap.Logger
	maxInFlight int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

// WithMaxInFlight caps concurrent fetches. Zero or less means no cap.
func WithMaxInFlight(n int) Option {
	return func(ld *Loader) { ld.maxInFlight = n }
}

// NewLoader creates a loader reading from src.
func NewLoader(src Source, opts ...Option) *Loader {
	l := &Loader{src: src, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type job struct {
	kind Kind
	desc Descriptor
}

type result struct {
	job   job
	value any
	err   error
}

// tracker counts completions for one batch and fires the terminal callbacks
// once the last descriptor resolves.
type tracker struct {
	cb        Callbacks
	repo      *Repository
	total     int
	numLoaded int
	numFailed int
	errs      []error
	loading   bool
}

func (t *tracker) complete(r result) {
	if !t.loading {
		return
	}
	if r.err != nil {
		t.numFailed++
		t.errs = append(t.errs, &AssetError{Kind: r.job.kind, Name: r.job.desc.Name, URL: r.job.desc.URL, Err: r.err})
	} else {
		t.numLoaded++
		t.repo.put(r.job.kind, r.job.desc.Name, r.value)
	}
	if t.cb.OnProgress != nil {
		t.cb.OnProgress(float64(t.numLoaded) / float64(t.total))
	}
	if t.numLoaded+t.numFailed >= t.total {
		t.finish()
	}
}

func (t *tracker) finish() {
	t.loading = false
	ok := t.numFailed == 0
	if ok {
		if t.cb.OnSuccess != nil {
			t.cb.OnSuccess(t.repo)
		}
	} else if t.cb.OnError != nil {
		t.cb.OnError(t.err())
	}
	if t.cb.OnDone != nil {
		t.cb.OnDone(ok)
	}
}

func (t *tracker) err() error {
	return errors.Join(t.errs...)
}

// Load fetches every descriptor in batch concurrently and blocks until all
// of them resolved. One failure marks the batch failed without cancelling
// siblings. A cancelled ctx makes outstanding fetches fail.
func (l *Loader) Load(ctx context.Context, batch Batch, cb Callbacks) (*Repository, error) {
	jobs := flatten(batch.Clone())
	t := &tracker{cb: cb, repo: NewRepository(), total: len(jobs), loading: true}

	if t.total == 0 {
		t.finish()
		return t.repo, nil
	}

	start := time.Now()
	l.log.Debug("batch started", zap.Int("total", t.total))

	results := make(chan result, len(jobs))
	var g errgroup.Group
	if l.maxInFlight > 0 {
		g.SetLimit(l.maxInFlight)
	}

	// Go blocks once the limit is reached, so dispatch runs apart from the
	// collector below.
	go func() {
		for _, j := range jobs {
			g.Go(func() error {
				v, err := l.fetch(ctx, j)
				results <- result{job: j, value: v, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			l.log.Warn("asset failed",
				zap.String("kind", string(r.job.kind)),
				zap.String("name", r.job.desc.Name),
				zap.Error(r.err))
		}
		t.complete(r)
	}

	l.log.Info("batch finished",
		zap.Int("loaded", t.numLoaded),
		zap.Int("failed", t.numFailed),
		zap.Duration("elapsed", time.Since(start)))

	if t.numFailed > 0 {
		return nil, t.err()
	}
	return t.repo, nil
}

// flatten orders jobs by kind then by batch order.
func flatten(b Batch) []job {
	var jobs []job
	seen := make(map[Kind]bool, len(Kinds))
	for _, k := range Kinds {
		seen[k] = true
		for _, d := range b[k] {
			jobs = append(jobs, job{kind: k, desc: d})
		}
	}
	for k, ds := range b {
		if seen[k] {
			continue
		}
		for _, d := range ds {
			jobs = append(jobs, job{kind: k, desc: d})
		}
	}
	return jobs
}

func (l *Loader) fetch(ctx context.Context, j job) (any, error) {
	data, err := l.src.Fetch(ctx, j.desc.URL)
	if err != nil {
		return nil, err
	}
	return Convert(j.kind, j.desc.Name, data)
}

// Convert turns fetched bytes into the value stored for kind.
func Convert(kind Kind, name string, data []byte) (any, error) {
	switch kind {
	case KindText:
		return string(data), nil
	case KindImage:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	case KindTexture:
		return texture.Decode(name, data)
	case KindGeometry:
		return geometry.Parse(name, data)
	case KindStatistics:
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding statistics: %w", err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
