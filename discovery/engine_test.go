package discovery

import (
	"errors"
	"testing"

	"github.com/batchatco/go-netcdf-discovery/accessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileType = "mimicTPW2_comp"

var gridShape = []int64{10, 20}

func tpwFile(t *testing.T, extra func(b *accessor.Builder)) *accessor.Accessor {
	t.Helper()
	b := accessor.NewBuilder(accessor.Hints{FileType: fileType}).
		Array("latArr", gridShape, nil, map[string]any{"units": "degrees_north"}).
		Array("lonArr", gridShape, nil, map[string]any{"units": "degrees_east"}).
		Array("tpwGrid", gridShape, nil, map[string]any{"units": "mm"})
	if extra != nil {
		extra(b)
	}
	acc, err := b.Build()
	require.NoError(t, err)
	return acc
}

func collect(t *testing.T, e *Engine, c Container, known []Result) []Result {
	t.Helper()
	results, skipped, err := Collect(e.Discover(c, fileType, known))
	require.NoError(t, err)
	require.Empty(t, skipped)
	return results
}

func TestDiscoverNewDataset(t *testing.T) {
	results := collect(t, New(Options{}), tpwFile(t, nil), nil)
	require.Equal(t, []Result{{
		Availability: Available,
		Descriptor: Descriptor{
			Name:        "tpwgrid",
			FileKey:     "tpwGrid",
			FileType:    fileType,
			Resolution:  "tpwGrid",
			Units:       "mm",
			LongName:    "tpwGrid",
			Coordinates: []string{"longitude", "latitude"},
		},
	}}, results)
}

func TestConfirmKnownDescriptor(t *testing.T) {
	known := []Result{{
		Availability: Unknown,
		Descriptor: Descriptor{
			Name:     "tpwgrid",
			FileKey:  "tpwGrid",
			FileType: fileType,
			Units:    "mm",
		},
	}}
	results := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 1, "tpwGrid must not be reported twice")
	assert.Equal(t, Available, results[0].Availability)
	assert.Equal(t, known[0].Descriptor, results[0].Descriptor)
	assert.Equal(t, Unknown, known[0].Availability, "input must not change")
}

func TestConfirmationIsIdempotent(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("rain", gridShape, nil, map[string]any{"units": "mm/h"})
	})
	known := []Result{
		{Descriptor: Descriptor{Name: "latitude", FileKey: "latArr", FileType: fileType}},
		{Descriptor: Descriptor{Name: "longitude", FileKey: "lonArr", FileType: fileType}},
	}
	e := New(Options{})
	first := collect(t, e, acc, known)
	second := collect(t, e, acc, known)
	assert.Equal(t, first, second)
	require.Len(t, first, 4)
	assert.Equal(t, "latitude", first[0].Descriptor.Name)
	assert.Equal(t, Available, first[0].Availability)
	assert.Equal(t, "longitude", first[1].Descriptor.Name)
	assert.Equal(t, "tpwgrid", first[2].Descriptor.Name)
	assert.Equal(t, "rain", first[3].Descriptor.Name)
}

func TestPassThrough(t *testing.T) {
	known := []Result{
		// another file type
		{Descriptor: Descriptor{Name: "other", FileKey: "tpwGrid", FileType: "other_type"}},
		// right type, key absent
		{Descriptor: Descriptor{Name: "absent", FileKey: "noSuchVar", FileType: fileType}},
		// already decided elsewhere
		{Availability: Unavailable, Descriptor: Descriptor{Name: "gone", FileKey: "gone", FileType: fileType}},
		{Availability: Available, Descriptor: Descriptor{Name: "elsewhere", FileKey: "x", FileType: "other_type"}},
	}
	results := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 5)
	for i := range known {
		assert.Equal(t, known[i], results[i], "entry %d passes through unchanged", i)
	}
	assert.Equal(t, "tpwgrid", results[4].Descriptor.Name)
}

func TestConfirmedEntryClaimsKey(t *testing.T) {
	known := []Result{{
		Availability: Available,
		Descriptor:   Descriptor{Name: "total_precipitable_water", FileKey: "tpwGrid", FileType: fileType},
	}}
	results := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 1)
	assert.Equal(t, known[0], results[0])
}

func TestShapeMismatchInvisible(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("timeAwayGridPrior", []int64{20, 10}, nil, map[string]any{"units": "h"})
		b.Array("scalar", nil, nil, map[string]any{"units": "1"})
		b.Array("cube", []int64{10, 20, 1}, nil, map[string]any{"units": "1"})
		b.Group("grp", nil)
	})
	results := collect(t, New(Options{}), acc, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "tpwgrid", results[0].Descriptor.Name)
}

func TestMissingReference(t *testing.T) {
	acc, err := accessor.NewBuilder(accessor.Hints{}).
		Array("tpwGrid", gridShape, nil, map[string]any{"units": "mm"}).
		Group("latArr", nil).
		Build()
	require.NoError(t, err)

	var count int
	var gotErr error
	for r, err := range New(Options{}).Discover(acc, fileType, nil) {
		count++
		gotErr = err
		assert.Equal(t, Result{}, r)
	}
	assert.Equal(t, 1, count)
	assert.True(t, errors.Is(gotErr, ErrReferenceShapeNotFound), gotErr)

	results, _, err := Collect(New(Options{}).Discover(acc, fileType, nil))
	assert.True(t, errors.Is(err, ErrReferenceShapeNotFound), err)
	assert.Empty(t, results)
}

func TestMissingUnits(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("noUnits", gridShape, nil, nil)
		b.Array("rain", gridShape, nil, map[string]any{"units": []byte("mm/h")})
		b.Array("count", gridShape, nil, map[string]any{"units": int32(1)})
	})
	results, skipped, err := Collect(New(Options{}).Discover(acc, fileType, nil))
	require.NoError(t, err)
	require.Len(t, skipped, 1)

	var missing *AttributeMissingError
	require.True(t, errors.As(skipped[0], &missing))
	assert.Equal(t, "noUnits", missing.Key)
	assert.Equal(t, "units", missing.Attribute)
	assert.True(t, errors.Is(skipped[0], ErrAttributeMissing))
	assert.Contains(t, skipped[0].Error(), "noUnits/attr/units")

	var names, units []string
	for _, r := range results {
		names = append(names, r.Descriptor.Name)
		units = append(units, r.Descriptor.Units)
	}
	assert.Equal(t, []string{"tpwgrid", "rain", "count"}, names)
	assert.Equal(t, []string{"mm", "mm/h", "1"}, units)
}

func TestAbortOnError(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("noUnits", gridShape, nil, nil)
		b.Array("rain", gridShape, nil, map[string]any{"units": "mm/h"})
	})
	var names []string
	for r, err := range New(Options{}).Discover(acc, fileType, nil) {
		if err != nil {
			break
		}
		names = append(names, r.Descriptor.Name)
	}
	assert.Equal(t, []string{"tpwgrid"}, names)
}

func TestCaseCollisionLaterWins(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("RAIN", gridShape, nil, map[string]any{"units": "in"})
		b.Array("other", gridShape, nil, map[string]any{"units": "1"})
		b.Array("Rain", gridShape, nil, map[string]any{"units": "mm"})
	})
	results := collect(t, New(Options{}), acc, nil)
	require.Len(t, results, 3)
	assert.Equal(t, "tpwgrid", results[0].Descriptor.Name)
	assert.Equal(t, "rain", results[1].Descriptor.Name)
	assert.Equal(t, "Rain", results[1].Descriptor.FileKey)
	assert.Equal(t, "mm", results[1].Descriptor.Units)
	assert.Equal(t, "other", results[2].Descriptor.Name)
}

func TestNoDuplicateNames(t *testing.T) {
	// an earlier file already produced "tpwgrid"
	known := []Result{{
		Availability: Available,
		Descriptor:   Descriptor{Name: "tpwgrid", FileKey: "TPWgrid", FileType: "older_type"},
	}}
	results := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 1)
	assert.Equal(t, known[0], results[0])
}

func TestKnownKeyPolicy(t *testing.T) {
	known := []Result{
		{Descriptor: Descriptor{Name: "tpw_a", FileKey: "tpwGrid", FileType: fileType}},
		{Descriptor: Descriptor{Name: "tpw_b", FileKey: "tpwGrid", FileType: fileType}},
	}
	all := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, all, 2)
	assert.Equal(t, Available, all[0].Availability)
	assert.Equal(t, Available, all[1].Availability)

	first := collect(t, New(Options{KnownKeyPolicy: ConfirmFirst}), tpwFile(t, nil), known)
	require.Len(t, first, 2)
	assert.Equal(t, Available, first[0].Availability)
	assert.Equal(t, Unknown, first[1].Availability)
	assert.Equal(t, "tpw_b", first[1].Descriptor.Name)

	// a decided entry on the key already counts as the first
	decided := []Result{
		{Availability: Available, Descriptor: Descriptor{Name: "tpw_a", FileKey: "tpwGrid", FileType: fileType}},
		{Descriptor: Descriptor{Name: "tpw_b", FileKey: "tpwGrid", FileType: fileType}},
	}
	first = collect(t, New(Options{KnownKeyPolicy: ConfirmFirst}), tpwFile(t, nil), decided)
	require.Len(t, first, 2)
	assert.Equal(t, decided[0], first[0])
	assert.Equal(t, decided[1], first[1])
	all = collect(t, New(Options{}), tpwFile(t, nil), decided)
	require.Len(t, all, 2)
	assert.Equal(t, Available, all[1].Availability)
}

func TestSlashPrefixedFileKey(t *testing.T) {
	known := []Result{
		{Descriptor: Descriptor{Name: "tpw", FileKey: "/tpwGrid", FileType: fileType}},
	}
	results := collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 1, "tpwGrid must be reported once")
	assert.Equal(t, Available, results[0].Availability)
	assert.Equal(t, "tpw", results[0].Descriptor.Name)
	assert.Equal(t, "/tpwGrid", results[0].Descriptor.FileKey)

	// a decided entry claims the key the same way
	known[0].Availability = Unavailable
	results = collect(t, New(Options{}), tpwFile(t, nil), known)
	require.Len(t, results, 1)
	assert.Equal(t, known[0], results[0])
}

func TestTemplateKeys(t *testing.T) {
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("comp_rain", gridShape, nil, map[string]any{"units": "mm/h"})
	})
	known := []Result{
		{Descriptor: Descriptor{Name: "rain", FileKey: "{variable_prefix}rain", FileType: fileType}},
		{Descriptor: Descriptor{Name: "bad", FileKey: "{missing}rain", FileType: fileType}},
		// no file key: the name is the key
		{Descriptor: Descriptor{Name: "tpwGrid", FileType: fileType}},
	}
	e := New(Options{Vars: map[string]string{"variable_prefix": "comp_"}})
	results := collect(t, e, acc, known)
	require.Len(t, results, 3)
	assert.Equal(t, Available, results[0].Availability)
	assert.Equal(t, known[1], results[1])
	assert.Equal(t, Available, results[2].Availability)
}

func TestConfigurableReference(t *testing.T) {
	acc, err := accessor.NewBuilder(accessor.Hints{}).
		Array("geo/lat", []int64{3}, nil, nil).
		Array("geo/lon", []int64{3}, nil, nil).
		Array("data/sst", []int64{3}, nil, map[string]any{"units": "K"}).
		Array("latArr", []int64{5}, nil, nil).
		Build()
	require.NoError(t, err)

	e := New(Options{
		LatitudeKey:   "/geo/lat",
		LongitudeKey:  "geo/lon",
		LatitudeName:  "lat",
		LongitudeName: "lon",
	})
	results := collect(t, e, acc, nil)
	require.Len(t, results, 1)
	d := results[0].Descriptor
	assert.Equal(t, "data/sst", d.Name)
	assert.Equal(t, "data/sst", d.FileKey)
	assert.Equal(t, []string{"lon", "lat"}, d.Coordinates)
}

func TestMissingLongitude(t *testing.T) {
	acc, err := accessor.NewBuilder(accessor.Hints{}).
		Array("latArr", gridShape, nil, nil).
		Array("tpwGrid", gridShape, nil, map[string]any{"units": "mm"}).
		Build()
	require.NoError(t, err)
	results := collect(t, New(Options{}), acc, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "tpwgrid", results[0].Descriptor.Name)
}

type countingRecorder struct {
	confirmed, discovered, passed, failed int
	skipped                               map[string]int
}

func (r *countingRecorder) Confirmed(string)     { r.confirmed++ }
func (r *countingRecorder) Discovered(string)    { r.discovered++ }
func (r *countingRecorder) PassedThrough(string) { r.passed++ }
func (r *countingRecorder) PassFailed(string)    { r.failed++ }
func (r *countingRecorder) Skipped(_ string, reason string) {
	if r.skipped == nil {
		r.skipped = map[string]int{}
	}
	r.skipped[reason]++
}

func TestRecorder(t *testing.T) {
	rec := &countingRecorder{}
	e := New(Options{Recorder: rec})
	acc := tpwFile(t, func(b *accessor.Builder) {
		b.Array("noUnits", gridShape, nil, nil)
		b.Array("TPWGRID", gridShape, nil, map[string]any{"units": "mm"})
	})
	known := []Result{
		{Descriptor: Descriptor{Name: "latitude", FileKey: "latArr", FileType: fileType}},
		{Descriptor: Descriptor{Name: "x", FileKey: "x", FileType: "other"}},
	}
	_, _, err := Collect(e.Discover(acc, fileType, known))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.confirmed)
	assert.Equal(t, 1, rec.passed)
	assert.Equal(t, 1, rec.discovered)
	assert.Equal(t, 1, rec.skipped[SkipAttributeMissing])
	assert.Equal(t, 1, rec.skipped[SkipCaseCollision])

	empty, err := accessor.NewBuilder(accessor.Hints{}).Build()
	require.NoError(t, err)
	_, _, err = Collect(e.Discover(empty, fileType, nil))
	require.Error(t, err)
	assert.Equal(t, 1, rec.failed)
}

func TestEngineDefaults(t *testing.T) {
	vars := map[string]string{"variable_prefix": "a"}
	e := New(Options{Vars: vars})
	vars["variable_prefix"] = "b"
	opts := e.Options()
	assert.Equal(t, DefaultLatitudeKey, opts.LatitudeKey)
	assert.Equal(t, DefaultLongitudeKey, opts.LongitudeKey)
	assert.Equal(t, DefaultUnitsAttr, opts.UnitsAttr)
	assert.Equal(t, "a", opts.Vars["variable_prefix"])
	assert.True(t, e.FileTypeMatches("a", "a"))
	assert.False(t, e.FileTypeMatches("a", "b"))
	assert.False(t, e.FileTypeMatches("a", ""))
}
