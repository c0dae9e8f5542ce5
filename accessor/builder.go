package accessor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/batchatco/go-netcdf-discovery/internal"
)

var errBuilderUsed = errors.New("builder already used")

// Builder assembles an in-memory Accessor. Entries enumerate in the order
// they were added; missing parent groups are added just before their first
// child. The first error sticks and is returned by Build.
type Builder struct {
	acc *Accessor
	err error
}

// NewBuilder starts an empty container.
func NewBuilder(hints Hints) *Builder {
	globals, _ := util.NewOrderedMap(nil, nil)
	return &Builder{acc: newAccessor("", hints, globals)}
}

// GlobalAttr sets a root group attribute.
func (b *Builder) GlobalAttr(name string, val any) *Builder {
	if b.err == nil {
		b.acc.root.attrs.(*util.OrderedMap).Add(name, val)
	}
	return b
}

// Group adds a group at key.
func (b *Builder) Group(key string, attrs map[string]any) *Builder {
	if b.err != nil {
		return b
	}
	key = strings.TrimPrefix(key, "/")
	if !b.validKey(key) {
		return b
	}
	b.parents(key)
	am := attributeMap(attrs)
	b.fail(b.acc.add(&node{
		entry: Entry{Key: key, Kind: KindGroup},
		group: &Group{Key: key, Attributes: am},
		attrs: am,
	}))
	return b
}

// Array adds a variable at key. values may be nil when only the metadata
// matters.
func (b *Builder) Array(key string, shape []int64, values any, attrs map[string]any) *Builder {
	if b.err != nil {
		return b
	}
	key = strings.TrimPrefix(key, "/")
	if !b.validKey(key) {
		return b
	}
	b.parents(key)
	am := attributeMap(attrs)
	arr := &Array{Key: key, Shape: cloneShape(shape), Attributes: am}
	if values != nil {
		arr.getter = internal.NewSlicer(values, shape, nil, am)
	}
	b.fail(b.acc.add(&node{
		entry: Entry{Key: key, Kind: KindArray},
		array: arr,
		attrs: am,
	}))
	return b
}

// Build returns the finished Accessor.
func (b *Builder) Build() (*Accessor, error) {
	if b.err != nil {
		return nil, b.err
	}
	acc := b.acc
	b.acc = nil
	b.err = errBuilderUsed
	return acc, nil
}

func (b *Builder) validKey(key string) bool {
	if !internal.IsValidKey(key) {
		b.fail(fmt.Errorf("invalid key %q", key))
		return false
	}
	return true
}

func (b *Builder) parents(key string) {
	parent, _ := splitKey(key)
	if parent == "" {
		return
	}
	if _, has := b.acc.nodes[parent]; has {
		return
	}
	b.Group(parent, nil)
}

func (b *Builder) fail(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

// attributeMap turns attrs into an api.AttributeMap with sorted keys.
func attributeMap(attrs map[string]any) api.AttributeMap {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make(map[string]any, len(attrs))
	for k, v := range attrs {
		values[k] = v
	}
	om, err := util.NewOrderedMap(keys, values)
	if err != nil {
		// keys come from values, so they always match
		panic(err)
	}
	return om
}
