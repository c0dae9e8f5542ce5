package accessor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testVar struct {
	name  string
	val   any
	dims  []string
	attrs map[string]any
}

func grid(rows, cols int, fill float32) [][]float32 {
	g := make([][]float32, rows)
	for i := range g {
		g[i] = make([]float32, cols)
		for j := range g[i] {
			g[i][j] = fill
		}
	}
	return g
}

// writeCDF writes a netCDF classic file into a temporary directory.
func writeCDF(t *testing.T, vars []testVar, globals map[string]any) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "comp20190303.150000.nc")
	cw, err := cdf.OpenWriter(fname)
	require.NoError(t, err)
	if globals != nil {
		require.NoError(t, cw.AddAttributes(attributeMap(globals)))
	}
	for _, v := range vars {
		err := cw.AddVar(v.name, api.Variable{
			Values:     v.val,
			Dimensions: v.dims,
			Attributes: attributeMap(v.attrs),
		})
		require.NoError(t, err)
	}
	require.NoError(t, cw.Close())
	return fname
}

var tpwVars = []testVar{
	{"latArr", grid(10, 20, 1), []string{"rows", "cols"}, map[string]any{"units": "degrees_north"}},
	{"lonArr", grid(10, 20, 2), []string{"rows", "cols"}, map[string]any{"units": "degrees_east"}},
	{"tpwGrid", grid(10, 20, 3), []string{"rows", "cols"}, map[string]any{"units": "mm"}},
	{"timeAwayGridPrior", []int32{1, 2, 3}, []string{"t"}, nil},
}

func TestOpenFile(t *testing.T) {
	fname := writeCDF(t, tpwVars, map[string]any{"platform_name": "Microwave"})
	acc, err := Open(fname, Hints{FileType: "mimicTPW2_comp"})
	require.NoError(t, err)
	defer acc.Close()

	assert.Equal(t, fname, acc.Path())
	assert.Equal(t, "mimicTPW2_comp", acc.Hints().FileType)
	assert.Equal(t, []Entry{
		{"latArr", KindArray},
		{"lonArr", KindArray},
		{"tpwGrid", KindArray},
		{"timeAwayGridPrior", KindArray},
	}, acc.Entries())

	shape, err := acc.ShapeOf("tpwGrid")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, shape)

	shape, err = acc.ShapeOf("timeAwayGridPrior")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, shape)

	units, err := acc.Get("tpwGrid/attr/units")
	require.NoError(t, err)
	assert.Equal(t, "mm", units)

	platform, err := acc.Get("/attr/platform_name")
	require.NoError(t, err)
	assert.Equal(t, "Microwave", platform)

	dims, err := acc.Get("latArr/dimensions")
	require.NoError(t, err)
	assert.Equal(t, []string{"rows", "cols"}, dims)

	arr, err := acc.Array("timeAwayGridPrior")
	require.NoError(t, err)
	require.NotNil(t, arr.Getter())
	vals, err := arr.Values()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, vals)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nc"), Hints{})
	assert.True(t, errors.Is(err, ErrOpen), err)

	bogus := filepath.Join(t.TempDir(), "bogus.nc")
	require.NoError(t, os.WriteFile(bogus, []byte("this is not netcdf"), 0o644))
	_, err = Open(bogus, Hints{})
	assert.True(t, errors.Is(err, ErrOpen), err)

	f, err := os.Open(bogus)
	require.NoError(t, err)
	defer f.Close()
	_, err = New(f, Hints{})
	assert.True(t, errors.Is(err, ErrOpen), err)
}

func TestNewFromReader(t *testing.T) {
	fname := writeCDF(t, tpwVars[:1], nil)
	f, err := os.Open(fname)
	require.NoError(t, err)
	acc, err := New(f, Hints{})
	require.NoError(t, err)
	defer acc.Close()
	assert.True(t, acc.Has("latArr"))
	assert.Equal(t, "", acc.Path())
}

func buildNested(t *testing.T) *Accessor {
	t.Helper()
	acc, err := NewBuilder(Hints{FileType: "nested"}).
		GlobalAttr("sensor", "Composite").
		Array("latArr", []int64{4, 5}, nil, map[string]any{"units": "degrees_north"}).
		Array("geo/inner/var", []int64{4, 5}, []float32{1}, map[string]any{"units": "K"}).
		Group("empty", map[string]any{"title": "nothing here"}).
		Array("geo/other", []int64{2}, nil, nil).
		Build()
	require.NoError(t, err)
	return acc
}

func TestBuilderOrder(t *testing.T) {
	acc := buildNested(t)
	assert.Equal(t, []Entry{
		{"latArr", KindArray},
		{"geo", KindGroup},
		{"geo/inner", KindGroup},
		{"geo/inner/var", KindArray},
		{"empty", KindGroup},
		{"geo/other", KindArray},
	}, acc.Entries())

	// Entries hands out copies
	entries := acc.Entries()
	entries[0].Key = "changed"
	assert.Equal(t, "latArr", acc.Entries()[0].Key)

	g, err := acc.Get("geo")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, g.(*Group).Variables)
	assert.Equal(t, []string{"inner"}, g.(*Group).Subgroups)

	root, err := acc.Get("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"latArr"}, root.(*Group).Variables)
	assert.Equal(t, []string{"geo", "empty"}, root.(*Group).Subgroups)
}

func TestLookups(t *testing.T) {
	acc := buildNested(t)

	var present = []string{
		"latArr", "/latArr", "latArr/shape", "latArr/attr/units",
		"geo", "geo/inner/var", "empty/attr/title", "/attr/sensor",
	}
	for _, key := range present {
		if !acc.Has(key) {
			t.Error("expected key", key)
		}
	}
	var absent = []string{
		"lat", "geo/var", "empty/shape", "latArr/attr/long_name", "/attr/platform_name",
		"latArr/attr/", "",
	}
	for _, key := range absent[:len(absent)-1] {
		if acc.Has(key) {
			t.Error("unexpected key", key)
		}
		_, err := acc.Get(key)
		if !errors.Is(err, ErrKeyNotFound) {
			t.Error("expected ErrKeyNotFound for", key, "got", err)
		}
	}

	_, err := acc.ShapeOf("geo")
	assert.True(t, errors.Is(err, ErrNotAnArray), err)
	_, err = acc.ShapeOf("latArr/attr/units")
	assert.True(t, errors.Is(err, ErrNotAnArray), err)
	_, err = acc.ShapeOf("nothing")
	assert.True(t, errors.Is(err, ErrKeyNotFound), err)

	shape, err := acc.ShapeOf("geo/inner/var")
	require.NoError(t, err)
	shape[0] = 99
	shape, _ = acc.ShapeOf("geo/inner/var")
	assert.Equal(t, []int64{4, 5}, shape, "shapes must be copies")

	val, err := acc.Attr("", "sensor")
	require.NoError(t, err)
	assert.Equal(t, "Composite", val)
	_, err = acc.Attr("latArr", "long_name")
	assert.True(t, errors.Is(err, ErrKeyNotFound), err)
	assert.Contains(t, err.Error(), "latArr/attr/long_name")

	arr, err := acc.Array("geo/inner/var")
	require.NoError(t, err)
	require.NotNil(t, arr.Getter())
	assert.Equal(t, "float", arr.Getter().Type())
	vals, err := arr.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vals)

	arr, err = acc.Array("latArr")
	require.NoError(t, err)
	assert.Nil(t, arr.Getter())
	vals, err = arr.Values()
	require.NoError(t, err)
	assert.Nil(t, vals)
}

func TestBuilderErrors(t *testing.T) {
	_, err := NewBuilder(Hints{}).
		Array("a", []int64{1}, nil, nil).
		Array("a", []int64{1}, nil, nil).
		Build()
	assert.True(t, errors.Is(err, ErrDuplicateKey), err)

	_, err = NewBuilder(Hints{}).Array("bad//key", nil, nil, nil).Build()
	assert.Error(t, err)

	b := NewBuilder(Hints{})
	_, err = b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	assert.Error(t, err, "a builder is single use")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "group", KindGroup.String())
	assert.Equal(t, "array", KindArray.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
