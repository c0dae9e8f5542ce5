// Package reader binds one open file to its file type definition: identity
// (times, platform, sensor), dataset discovery and dataset retrieval.
package reader

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-netcdf-discovery/accessor"
	"github.com/batchatco/go-netcdf-discovery/config"
	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/filename"
)

var (
	// ErrNoStartTime is returned when the file name carried no start time.
	// It is also an accessor.ErrKeyNotFound.
	ErrNoStartTime = fmt.Errorf("%w: no start time in filename info", accessor.ErrKeyNotFound)

	// ErrNoFileType is returned when no file type claims a file name.
	ErrNoFileType = errors.New("no matching file type")
)

// FileHandler serves one file.
type FileHandler struct {
	acc      *accessor.Accessor
	fileType string
	ft       *config.FileType
	engine   *discovery.Engine
}

// Open opens path as a file of the named type. info usually comes from
// matching the file name against the type's patterns.
func Open(path string, cfg *config.Config, fileType string, info filename.Info, rec discovery.Recorder) (*FileHandler, error) {
	if _, has := cfg.FileType(fileType); !has {
		return nil, fmt.Errorf("%w: %q", ErrNoFileType, fileType)
	}
	acc, err := accessor.Open(path, accessor.Hints{FileType: fileType, Info: info})
	if err != nil {
		return nil, err
	}
	h, err := New(acc, cfg, rec)
	if err != nil {
		acc.Close()
		return nil, err
	}
	return h, nil
}

// OpenMatching picks the file type by matching the base name of path.
func OpenMatching(path string, cfg *config.Config, rec discovery.Recorder) (*FileHandler, error) {
	fileType, info, ok := cfg.MatchFileType(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFileType, path)
	}
	return Open(path, cfg, fileType, info, rec)
}

// New wraps an already open accessor; its hints name the file type. The
// handler takes ownership of acc.
func New(acc *accessor.Accessor, cfg *config.Config, rec discovery.Recorder) (*FileHandler, error) {
	fileType := acc.Hints().FileType
	ft, has := cfg.FileType(fileType)
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrNoFileType, fileType)
	}
	opts, err := cfg.EngineOptions(fileType)
	if err != nil {
		return nil, err
	}
	opts.Recorder = rec
	return &FileHandler{
		acc:      acc,
		fileType: fileType,
		ft:       ft,
		engine:   discovery.New(opts),
	}, nil
}

// Close closes the underlying file.
func (h *FileHandler) Close() {
	h.acc.Close()
}

// Accessor returns the underlying accessor.
func (h *FileHandler) Accessor() *accessor.Accessor {
	return h.acc
}

// FileType returns the name of the handler's file type.
func (h *FileHandler) FileType() string {
	return h.fileType
}

// StartTime comes from the file name.
func (h *FileHandler) StartTime() (time.Time, error) {
	start, has := h.acc.Hints().Info.StartTime()
	if !has {
		return time.Time{}, ErrNoStartTime
	}
	return start, nil
}

// EndTime comes from the file name and defaults to the start time.
func (h *FileHandler) EndTime() (time.Time, error) {
	if end, has := h.acc.Hints().Info.EndTime(); has {
		return end, nil
	}
	return h.StartTime()
}

// PlatformName is the configured label, or else the value under the
// reserved platform key.
func (h *FileHandler) PlatformName() (string, error) {
	return h.label(h.ft.PlatformName, h.ft.PlatformKey)
}

// SensorName is the configured label, or else the value under the reserved
// sensor key.
func (h *FileHandler) SensorName() (string, error) {
	return h.label(h.ft.Sensor, h.ft.SensorKey)
}

func (h *FileHandler) label(fixed, key string) (string, error) {
	if fixed != "" {
		return fixed, nil
	}
	val, err := h.acc.Get(key)
	if err != nil {
		return "", err
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return fmt.Sprint(val), nil
}

// AvailableDatasets runs one discovery pass over the file.
func (h *FileHandler) AvailableDatasets(known []discovery.Result) iter.Seq2[discovery.Result, error] {
	return h.engine.Discover(h.acc, h.fileType, known)
}

// Dataset is a raw array handed off together with its metadata.
type Dataset struct {
	Descriptor discovery.Descriptor
	Array      *accessor.Array
	// Attrs holds the file's variable attributes overlaid with the
	// descriptor's fields, platform_name and sensor.
	Attrs map[string]any
}

// Values loads the array's values.
func (d *Dataset) Values() (any, error) {
	return d.Array.Values()
}

// Getter returns the lazy slice reader.
func (d *Dataset) Getter() api.VarGetter {
	return d.Array.Getter()
}

// GetDataset resolves desc against the file. desc is not modified.
func (h *FileHandler) GetDataset(desc discovery.Descriptor) (*Dataset, error) {
	desc = desc.Clone()
	key, err := desc.BackingKey(h.engine.Options().Vars)
	if err != nil {
		return nil, err
	}
	arr, err := h.acc.Array(key)
	if err != nil {
		return nil, err
	}
	attrs := map[string]any{}
	if arr.Attributes != nil {
		for _, k := range arr.Attributes.Keys() {
			v, _ := arr.Attributes.Get(k)
			attrs[k] = v
		}
	}
	for k, v := range desc.Extra {
		attrs[k] = v
	}
	attrs["name"] = desc.Name
	attrs["file_key"] = key
	setIf(attrs, "file_type", desc.FileType)
	setIf(attrs, "resolution", desc.Resolution)
	setIf(attrs, "units", desc.Units)
	setIf(attrs, "long_name", desc.LongName)
	if len(desc.Coordinates) > 0 {
		attrs["coordinates"] = append([]string{}, desc.Coordinates...)
	}
	if platform, err := h.PlatformName(); err == nil {
		attrs["platform_name"] = platform
	}
	if sensor, err := h.SensorName(); err == nil {
		attrs["sensor"] = sensor
	}
	return &Dataset{Descriptor: desc, Array: arr, Attrs: attrs}, nil
}

func setIf(attrs map[string]any, key, val string) {
	if val != "" {
		attrs[key] = val
	}
}
