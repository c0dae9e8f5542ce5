package accessor

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/batchatco/go-thrower"
)

// Open opens a netCDF file by name and indexes its content.
func Open(path string, hints Hints) (*Accessor, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	a, err := fromGroup(path, g, hints)
	if err != nil {
		g.Close()
		return nil, err
	}
	return a, nil
}

// New is like Open, but takes an opened file instead of a file name.
// If New returns no error, it has taken ownership of the file.  Otherwise, it
// is up to the caller to close the file.
func New(file api.ReadSeekerCloser, hints Hints) (*Accessor, error) {
	g, err := netcdf.New(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	a, err := fromGroup("", g, hints)
	if err != nil {
		g.Close()
		return nil, err
	}
	return a, nil
}

// FromGroup indexes an already open group. The accessor takes ownership of
// the group and closes it in Close.
func FromGroup(g api.Group, hints Hints) (*Accessor, error) {
	return fromGroup("", g, hints)
}

func fromGroup(path string, g api.Group, hints Hints) (a *Accessor, err error) {
	a = newAccessor(path, hints, g.Attributes())
	defer func() {
		if err != nil {
			// the root group is left to the caller
			for _, sub := range a.closers[1:] {
				sub.Close()
			}
			a = nil
		}
	}()
	defer thrower.RecoverError(&err)
	a.closers = append(a.closers, g)
	a.index(g, "", []api.Group{g})
	logger.Event(internal.LevelInfo).Str("path", path).Int("entries", len(a.entries)).Msg("indexed container")
	return a, nil
}

// index walks g, throwing on any decoder error. scopes lists g and its
// ancestors, innermost first, for dimension lookups.
func (a *Accessor) index(g api.Group, prefix string, scopes []api.Group) {
	for _, name := range g.ListVariables() {
		key := joinKey(prefix, name)
		vg, err := g.GetVarGetter(name)
		if err != nil {
			thrower.Throw(fmt.Errorf("%w: %s: variable %q: %v", ErrOpen, a.path, key, err))
		}
		arr := &Array{
			Key:        key,
			Shape:      shapeOf(vg, scopes),
			Dimensions: vg.Dimensions(),
			Attributes: vg.Attributes(),
			getter:     vg,
		}
		thrower.ThrowIfError(a.add(&node{
			entry: Entry{Key: key, Kind: KindArray},
			array: arr,
			attrs: arr.Attributes,
		}))
	}
	for _, name := range g.ListSubgroups() {
		key := joinKey(prefix, name)
		sub, err := g.GetGroup(name)
		if err != nil {
			thrower.Throw(fmt.Errorf("%w: %s: group %q: %v", ErrOpen, a.path, key, err))
		}
		a.closers = append(a.closers, sub)
		attrs := sub.Attributes()
		thrower.ThrowIfError(a.add(&node{
			entry: Entry{Key: key, Kind: KindGroup},
			group: &Group{Key: key, Attributes: attrs},
			attrs: attrs,
		}))
		a.index(sub, key, append([]api.Group{sub}, scopes...))
	}
}

type shaper interface {
	Shape() []int64
}

// shapeOf asks the getter for its shape when the decoder supports it, and
// otherwise derives it from the dimension lengths visible from the
// variable's group. A single unresolved (e.g. unlimited) dimension takes
// whatever length is left over from Len().
func shapeOf(vg api.VarGetter, scopes []api.Group) []int64 {
	if s, ok := vg.(shaper); ok {
		if shape := s.Shape(); shape != nil || len(vg.Dimensions()) == 0 {
			return cloneShape(shape)
		}
	}
	dims := vg.Dimensions()
	shape := make([]int64, len(dims))
	unresolved := -1
	known := int64(1)
	for i, name := range dims {
		for _, g := range scopes {
			if n, has := g.GetDimension(name); has && n > 0 {
				shape[i] = int64(n)
				break
			}
		}
		if shape[i] == 0 {
			if unresolved >= 0 {
				thrower.Throw(fmt.Errorf("%w: more than one unresolved dimension in %v", ErrOpen, dims))
			}
			unresolved = i
			continue
		}
		known *= shape[i]
	}
	if unresolved >= 0 {
		shape[unresolved] = vg.Len() / known
	}
	return shape
}
