// Package discovery decides which datasets one netCDF file provides.
//
// A pass combines two sources. Descriptors the caller already knows (from a
// reader definition or from earlier files) are confirmed when their backing
// key exists in a file of the right type. Every other array whose shape equals
// the shape of the reference latitude array is reported as a new dataset.
// Arrays matching neither are not reported at all.
package discovery

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/batchatco/go-netcdf-discovery/accessor"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/google/uuid"
)

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal only) and the highest is 3
// (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return internal.SetPackageLevel(logger, level)
}

// Container is the part of *accessor.Accessor a pass reads.
type Container interface {
	Entries() []accessor.Entry
	ShapeOf(key string) ([]int64, error)
	Has(key string) bool
	Attr(key string, name string) (any, error)
}

// KnownKeyPolicy decides what happens when several known descriptors are
// backed by the same key.
type KnownKeyPolicy int

const (
	// ConfirmAll confirms every descriptor whose key exists.
	ConfirmAll KnownKeyPolicy = iota
	// ConfirmFirst confirms only the first; later ones pass through. A
	// descriptor that arrives already decided counts as the first when its
	// key exists in the file.
	ConfirmFirst
)

// Defaults for Options.
const (
	DefaultLatitudeKey   = "latArr"
	DefaultLongitudeKey  = "lonArr"
	DefaultLatitudeName  = "latitude"
	DefaultLongitudeName = "longitude"
	DefaultUnitsAttr     = "units"
)

// Options configure an Engine. Zero fields take the defaults above.
type Options struct {
	// LatitudeKey is the array whose shape is the reference shape.
	LatitudeKey string
	// LongitudeKey is the companion longitude array. It is never reported
	// as a new dataset.
	LongitudeKey string
	// LatitudeName and LongitudeName are the catalog names of the
	// coordinate datasets that new descriptors refer to.
	LatitudeName  string
	LongitudeName string
	UnitsAttr     string
	// Vars fills {placeholders} in file keys, e.g. "variable_prefix".
	Vars           map[string]string
	KnownKeyPolicy KnownKeyPolicy
	Recorder       Recorder
}

// Engine runs discovery passes. It keeps no state between passes, so one
// Engine may serve many files concurrently.
type Engine struct {
	opts Options
}

// New returns an Engine with defaults applied to opts.
func New(opts Options) *Engine {
	if opts.LatitudeKey == "" {
		opts.LatitudeKey = DefaultLatitudeKey
	}
	if opts.LongitudeKey == "" {
		opts.LongitudeKey = DefaultLongitudeKey
	}
	if opts.LatitudeName == "" {
		opts.LatitudeName = DefaultLatitudeName
	}
	if opts.LongitudeName == "" {
		opts.LongitudeName = DefaultLongitudeName
	}
	if opts.UnitsAttr == "" {
		opts.UnitsAttr = DefaultUnitsAttr
	}
	opts.LatitudeKey = strings.TrimPrefix(opts.LatitudeKey, "/")
	opts.LongitudeKey = strings.TrimPrefix(opts.LongitudeKey, "/")
	vars := make(map[string]string, len(opts.Vars))
	for k, v := range opts.Vars {
		vars[k] = v
	}
	opts.Vars = vars
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// FileTypeMatches reports whether a descriptor declared for descType
// applies to a file of type fileType.
func (e *Engine) FileTypeMatches(fileType, descType string) bool {
	return descType != "" && descType == fileType
}

// Discover runs one pass over c, a file of type fileType. known holds the
// caller's prior decisions; neither it nor its descriptors are modified.
//
// The sequence yields (result, nil) for every decision, in this order:
// every known entry (confirmed or passed through), then newly discovered
// datasets in enumeration order. A missing reference latitude array yields
// a single (Result{}, err) wrapping ErrReferenceShapeNotFound and ends the
// sequence. A new dataset whose units can't be read yields (Result{}, err)
// with an *AttributeMissingError and the pass continues; stop ranging to
// abort instead.
//
// When two arrays have keys that are equal after lowercasing, the one
// enumerated later wins and is reported where the first one would have been.
// New datasets never reuse a name already reported in the same pass.
func (e *Engine) Discover(c Container, fileType string, known []Result) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		p := &pass{
			Engine:   e,
			id:       uuid.NewString(),
			c:        c,
			fileType: fileType,
			handled:  map[string]bool{},
			names:    map[string]bool{},
		}
		p.run(known, yield)
	}
}

// Collect drains a pass. Errors wrapping ErrAttributeMissing are gathered in
// skipped; any other error stops collection and is returned.
func Collect(seq iter.Seq2[Result, error]) (results []Result, skipped []error, err error) {
	for r, e := range seq {
		if e == nil {
			results = append(results, r)
			continue
		}
		var missing *AttributeMissingError
		if errors.As(e, &missing) {
			skipped = append(skipped, e)
			continue
		}
		return results, skipped, e
	}
	return results, skipped, nil
}

type pass struct {
	*Engine
	id       string
	c        Container
	fileType string
	handled  map[string]bool // backing keys resolved this pass
	names    map[string]bool // descriptor names reported this pass
}

type candidate struct {
	key  string
	desc Descriptor
	err  error
}

func (p *pass) run(known []Result, yield func(Result, error) bool) {
	rec := p.opts.Recorder
	ref, err := p.referenceShape()
	if err != nil {
		rec.PassFailed(p.fileType)
		logger.Event(internal.LevelError).Str("pass", p.id).Str("file_type", p.fileType).
			Err(err).Msg("discovery pass failed")
		yield(Result{}, err)
		return
	}
	logger.Event(internal.LevelInfo).Str("pass", p.id).Str("file_type", p.fileType).
		Ints64("reference_shape", ref).Int("known", len(known)).Msg("discovery pass started")

	// coordinates are referenced by name, never rediscovered
	p.handled[p.opts.LatitudeKey] = true
	if p.c.Has(p.opts.LongitudeKey) {
		p.handled[p.opts.LongitudeKey] = true
	} else {
		logger.Event(internal.LevelWarn).Str("pass", p.id).Str("key", p.opts.LongitudeKey).
			Msg("longitude array not found")
	}

	if !p.reconcile(known, yield) {
		return
	}
	p.discover(ref, yield)
}

func (p *pass) referenceShape() ([]int64, error) {
	for _, ent := range p.c.Entries() {
		if ent.Key != p.opts.LatitudeKey || ent.Kind != accessor.KindArray {
			continue
		}
		shape, err := p.c.ShapeOf(ent.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrReferenceShapeNotFound, ent.Key, err)
		}
		return shape, nil
	}
	return nil, fmt.Errorf("%w: no array %q", ErrReferenceShapeNotFound, p.opts.LatitudeKey)
}

// reconcile confirms or passes through the known entries. It returns false
// when the consumer stopped.
func (p *pass) reconcile(known []Result, yield func(Result, error) bool) bool {
	rec := p.opts.Recorder
	confirmed := map[string]bool{}
	for _, r := range known {
		r = r.Clone()
		desc := r.Descriptor
		p.names[desc.Name] = true

		key, err := desc.BackingKey(p.opts.Vars)
		if err != nil {
			logger.Event(internal.LevelWarn).Str("pass", p.id).Str("name", desc.Name).
				Err(err).Msg("passing through descriptor with unresolved file key")
			rec.PassedThrough(p.fileType)
			if !yield(r, nil) {
				return false
			}
			continue
		}
		// entries never carry the leading slash
		key = strings.TrimPrefix(key, "/")
		present := p.FileTypeMatches(p.fileType, desc.FileType) && p.c.Has(key)

		if r.Availability != Unknown {
			// decided elsewhere; still claims its key here
			if present {
				p.handled[key] = true
				confirmed[key] = true
			}
			rec.PassedThrough(p.fileType)
			if !yield(r, nil) {
				return false
			}
			continue
		}
		if present && !(p.opts.KnownKeyPolicy == ConfirmFirst && confirmed[key]) {
			p.handled[key] = true
			confirmed[key] = true
			rec.Confirmed(p.fileType)
			logger.Event(internal.LevelInfo).Str("pass", p.id).Str("name", desc.Name).
				Str("key", key).Msg("confirmed known dataset")
			if !yield(Result{Availability: Available, Descriptor: desc}, nil) {
				return false
			}
			continue
		}
		rec.PassedThrough(p.fileType)
		if !yield(r, nil) {
			return false
		}
	}
	return true
}

// discover reports new arrays shaped like ref.
func (p *pass) discover(ref []int64, yield func(Result, error) bool) {
	rec := p.opts.Recorder
	var order []string
	byName := map[string]candidate{}
	for _, ent := range p.c.Entries() {
		if ent.Kind != accessor.KindArray || p.handled[ent.Key] {
			continue
		}
		shape, err := p.c.ShapeOf(ent.Key)
		if err != nil || !slices.Equal(shape, ref) {
			continue
		}
		name := strings.ToLower(ent.Key)
		if prev, seen := byName[name]; seen {
			rec.Skipped(p.fileType, SkipCaseCollision)
			logger.Event(internal.LevelWarn).Str("pass", p.id).Str("key", ent.Key).
				Str("replaces", prev.key).Msg("keys collide after lowercasing, later one wins")
		} else {
			order = append(order, name)
		}
		byName[name] = p.synthesize(ent.Key, name)
	}

	for _, name := range order {
		cand := byName[name]
		if p.names[name] {
			rec.Skipped(p.fileType, SkipNameTaken)
			logger.Event(internal.LevelInfo).Str("pass", p.id).Str("key", cand.key).
				Str("name", name).Msg("name already reported, not adding dataset")
			continue
		}
		if cand.err != nil {
			rec.Skipped(p.fileType, SkipAttributeMissing)
			logger.Event(internal.LevelWarn).Str("pass", p.id).Err(cand.err).Msg("skipping dataset")
			if !yield(Result{}, cand.err) {
				return
			}
			continue
		}
		p.handled[cand.key] = true
		p.names[name] = true
		rec.Discovered(p.fileType)
		logger.Event(internal.LevelInfo).Str("pass", p.id).Str("name", name).
			Str("key", cand.key).Msg("discovered dataset")
		if !yield(Result{Availability: Available, Descriptor: cand.desc}, nil) {
			return
		}
	}
}

func (p *pass) synthesize(key, name string) candidate {
	val, err := p.c.Attr(key, p.opts.UnitsAttr)
	if err != nil {
		return candidate{key: key, err: &AttributeMissingError{Key: key, Attribute: p.opts.UnitsAttr}}
	}
	return candidate{
		key: key,
		desc: Descriptor{
			Name:        name,
			FileKey:     key,
			FileType:    p.fileType,
			Resolution:  key,
			Units:       attrString(val),
			LongName:    key,
			Coordinates: []string{p.opts.LongitudeName, p.opts.LatitudeName},
		},
	}
}

func attrString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(val)
}
