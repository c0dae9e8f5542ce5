package internal

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// ErrSliceBounds is returned for slice requests outside the values.
var ErrSliceBounds = errors.New("slice bounds out of range")

// slice serves in-memory values through the same interface file-backed
// variables use. Values are a Go slice, possibly nested, or a scalar.
type slice struct {
	values   reflect.Value
	shape    []int64
	dimNames []string
	attrs    api.AttributeMap
	cdlType  string
	goType   string
}

func (sl *slice) Len() int64 {
	if sl.values.Kind() != reflect.Slice {
		return 1
	}
	return int64(sl.values.Len())
}

func (sl *slice) Values() (any, error) {
	return sl.values.Interface(), nil
}

func (sl *slice) GetSlice(begin, end int64) (any, error) {
	if sl.values.Kind() != reflect.Slice {
		if begin != 0 || end != 1 {
			return nil, fmt.Errorf("%w: [%d:%d] of a scalar", ErrSliceBounds, begin, end)
		}
		return sl.values.Interface(), nil
	}
	if begin < 0 || end < begin || end > sl.Len() {
		return nil, fmt.Errorf("%w: [%d:%d] of %d", ErrSliceBounds, begin, end, sl.Len())
	}
	return sl.values.Slice(int(begin), int(end)).Interface(), nil
}

func (sl *slice) GetSliceMD(begin, end []int64) (any, error) {
	if len(begin) != len(end) {
		return nil, fmt.Errorf("%w: %d begin and %d end indices", ErrSliceBounds, len(begin), len(end))
	}
	v, err := sliceMD(sl.values, begin, end)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// sliceMD slices the outermost dimension and recurses into each element.
func sliceMD(v reflect.Value, begin, end []int64) (reflect.Value, error) {
	if len(begin) == 0 {
		return v, nil
	}
	if v.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("%w: too many dimensions", ErrSliceBounds)
	}
	b, e := begin[0], end[0]
	if b < 0 || e < b || e > int64(v.Len()) {
		return reflect.Value{}, fmt.Errorf("%w: [%d:%d] of %d", ErrSliceBounds, b, e, v.Len())
	}
	v = v.Slice(int(b), int(e))
	if len(begin) == 1 {
		return v, nil
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	for i := 0; i < v.Len(); i++ {
		inner, err := sliceMD(v.Index(i), begin[1:], end[1:])
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(inner)
	}
	return out, nil
}

func (sl *slice) Shape() []int64 {
	return append([]int64{}, sl.shape...)
}

func (sl *slice) Attributes() api.AttributeMap {
	return sl.attrs
}

func (sl *slice) Dimensions() []string {
	return sl.dimNames
}

func (sl *slice) Type() string {
	return sl.cdlType
}

func (sl *slice) GoType() string {
	return sl.goType
}

var cdlTypes = map[reflect.Kind]string{
	reflect.Int8:    "byte",
	reflect.Uint8:   "ubyte",
	reflect.Int16:   "short",
	reflect.Uint16:  "ushort",
	reflect.Int32:   "int",
	reflect.Uint32:  "uint",
	reflect.Int64:   "int64",
	reflect.Uint64:  "uint64",
	reflect.Float32: "float",
	reflect.Float64: "double",
	reflect.String:  "string",
}

// NewSlicer wraps in-memory values. Type names are derived from the
// innermost element type; unknown types get an empty CDL type.
func NewSlicer(values any, shape []int64, dimNames []string, attributes api.AttributeMap) api.VarGetter {
	v := reflect.ValueOf(values)
	t := v.Type()
	for t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return &slice{
		values:   v,
		shape:    append([]int64{}, shape...),
		dimNames: dimNames,
		attrs:    attributes,
		cdlType:  cdlTypes[t.Kind()],
		goType:   t.String(),
	}
}
