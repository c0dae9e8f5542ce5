// Package accessor provides a read-only, keyed view of one netCDF (classic or
// HDF5-based netCDF4) file.
//
// Every group and variable is addressed by a slash-separated path relative
// to the root group, e.g. "tpwGrid" or "geo/latArr". Besides those entries the
// following derived keys are understood by Get and Has:
//
//	<var>/shape          the variable's shape ([]int64)
//	<var>/dimensions     the variable's dimension names ([]string)
//	<path>/attr/<name>   an attribute of a variable or group
//	/attr/<name>         a global (root group) attribute
//
// Entries are enumerated in a fixed order: a pre-order walk starting at the
// root, where each group lists its variables in container order and then its
// subgroups in container order, each subgroup immediately followed by its own
// content. The order never changes for a given open file, so repeated
// discovery passes over it are reproducible.
package accessor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-netcdf-discovery/filename"
	"github.com/batchatco/go-netcdf-discovery/internal"
)

var (
	// ErrOpen is returned when the file can't be read or isn't netCDF.
	ErrOpen = errors.New("cannot open container")

	// ErrKeyNotFound is returned for keys absent from the file.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotAnArray is returned by shape queries on groups and attributes.
	ErrNotAnArray = errors.New("not an array")

	// ErrDuplicateKey is returned by Builder when a key is added twice.
	ErrDuplicateKey = errors.New("duplicate key")
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

// Kind tells groups and arrays apart.
type Kind int

const (
	KindGroup Kind = iota
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Entry is one addressable group or array.
type Entry struct {
	Key  string
	Kind Kind
}

// Hints carry what the caller already knows about the file, typically from
// its name. Nothing in Hints is derived from the file content.
type Hints struct {
	FileType string
	Info     filename.Info
}

// Array describes one variable. Values are loaded lazily.
type Array struct {
	Key        string
	Shape      []int64
	Dimensions []string
	Attributes api.AttributeMap

	getter api.VarGetter
}

// Values loads all of the array's values.
func (a *Array) Values() (any, error) {
	if a.getter == nil {
		return nil, nil
	}
	return a.getter.Values()
}

// Getter returns the slice reader, or nil for arrays built without values.
func (a *Array) Getter() api.VarGetter {
	return a.getter
}

// Group describes one group and its direct children.
type Group struct {
	Key        string
	Variables  []string
	Subgroups  []string
	Attributes api.AttributeMap
}

type node struct {
	entry Entry
	array *Array
	group *Group
	attrs api.AttributeMap
}

// Accessor is a read-only view of one open file. It is safe for concurrent
// readers because nothing mutates it after construction.
type Accessor struct {
	path    string
	hints   Hints
	entries []Entry
	nodes   map[string]*node
	root    *node
	closers []api.Group
}

func newAccessor(path string, hints Hints, globals api.AttributeMap) *Accessor {
	root := &node{
		entry: Entry{Key: "", Kind: KindGroup},
		group: &Group{Attributes: globals},
		attrs: globals,
	}
	return &Accessor{
		path:  path,
		hints: hints,
		nodes: map[string]*node{"": root},
		root:  root,
	}
}

func (a *Accessor) add(n *node) error {
	if _, has := a.nodes[n.entry.Key]; has {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, n.entry.Key)
	}
	a.nodes[n.entry.Key] = n
	a.entries = append(a.entries, n.entry)
	parent, name := splitKey(n.entry.Key)
	if p, has := a.nodes[parent]; has && p.group != nil {
		switch n.entry.Kind {
		case KindGroup:
			p.group.Subgroups = append(p.group.Subgroups, name)
		case KindArray:
			p.group.Variables = append(p.group.Variables, name)
		}
	}
	return nil
}

// Path returns the file name the accessor was opened from, if any.
func (a *Accessor) Path() string {
	return a.path
}

// Hints returns the caller-supplied hints.
func (a *Accessor) Hints() Hints {
	return a.hints
}

// Entries returns every group and array in enumeration order.
// The root group itself is not listed.
func (a *Accessor) Entries() []Entry {
	ret := make([]Entry, len(a.entries))
	copy(ret, a.entries)
	return ret
}

// Has reports whether key resolves to anything. It never fails.
func (a *Accessor) Has(key string) bool {
	_, err := a.Get(key)
	return err == nil
}

// Get resolves key. Arrays come back as *Array, groups as *Group, shapes as
// []int64, dimension lists as []string and attributes as their stored value.
func (a *Accessor) Get(key string) (any, error) {
	if n, has := a.lookup(key); has {
		if n.array != nil {
			return n.array, nil
		}
		return n.group, nil
	}
	if owner, name, ok := splitAttrKey(key); ok {
		n, has := a.lookup(owner)
		if has && n.attrs != nil {
			if val, has := n.attrs.Get(name); has {
				return val, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if owner, ok := strings.CutSuffix(key, "/shape"); ok {
		if n, has := a.lookup(owner); has && n.array != nil {
			return cloneShape(n.array.Shape), nil
		}
	}
	if owner, ok := strings.CutSuffix(key, "/dimensions"); ok {
		if n, has := a.lookup(owner); has && n.array != nil {
			return append([]string(nil), n.array.Dimensions...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// ShapeOf returns the shape of the array bound to key.
func (a *Accessor) ShapeOf(key string) ([]int64, error) {
	n, has := a.lookup(key)
	if !has {
		if a.Has(key) {
			return nil, fmt.Errorf("%w: %q", ErrNotAnArray, key)
		}
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if n.array == nil {
		return nil, fmt.Errorf("%w: %q is a %s", ErrNotAnArray, key, n.entry.Kind)
	}
	return cloneShape(n.array.Shape), nil
}

// Array returns the array bound to key.
func (a *Accessor) Array(key string) (*Array, error) {
	if _, err := a.ShapeOf(key); err != nil {
		return nil, err
	}
	n, _ := a.lookup(key)
	return n.array, nil
}

// Attr returns the attribute name of the variable or group at key.
// Use "" or "/" for global attributes.
func (a *Accessor) Attr(key string, name string) (any, error) {
	n, has := a.lookup(key)
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if n.attrs != nil {
		if val, has := n.attrs.Get(name); has {
			return val, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, attrKey(key, name))
}

// Attributes returns the attribute map of the variable or group at key.
func (a *Accessor) Attributes(key string) (api.AttributeMap, error) {
	n, has := a.lookup(key)
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return n.attrs, nil
}

// Close releases the underlying file, if any.
func (a *Accessor) Close() {
	// subgroups first, the root group owns the file
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

func (a *Accessor) lookup(key string) (*node, bool) {
	key = strings.TrimPrefix(key, "/")
	n, has := a.nodes[key]
	return n, has
}

func splitKey(key string) (parent, name string) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

func joinKey(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func attrKey(key, name string) string {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "/attr/" + name
	}
	return key + "/attr/" + name
}

// splitAttrKey splits "<owner>/attr/<name>" and "/attr/<name>".
func splitAttrKey(key string) (owner, name string, ok bool) {
	if rest, found := strings.CutPrefix(key, "/attr/"); found {
		return "", rest, rest != ""
	}
	i := strings.LastIndex(key, "/attr/")
	if i < 0 {
		return "", "", false
	}
	name = key[i+len("/attr/"):]
	return key[:i], name, name != ""
}

func cloneShape(shape []int64) []int64 {
	return append([]int64{}, shape...)
}
