// Package config loads reader definitions: which file types a reader
// handles, how to recognize them by name, where their geolocation lives, and
// which datasets are known ahead of time.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/filename"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for definitions that parse but make no sense.
var ErrInvalid = errors.New("invalid reader definition")

// Config is the root of a reader definition file.
type Config struct {
	Reader    ReaderInfo               `yaml:"reader"`
	FileTypes map[string]*FileType     `yaml:"file_types"`
	Datasets  map[string]DatasetConfig `yaml:"datasets"`
}

// ReaderInfo describes the reader as a whole.
type ReaderInfo struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Sensors     []string `yaml:"sensors"`
	// KnownKeyPolicy is "confirm_all" (default) or "confirm_first".
	KnownKeyPolicy string `yaml:"known_key_policy"`
}

// FileType describes one physical file layout.
type FileType struct {
	FilePatterns   []string `yaml:"file_patterns"`
	VariablePrefix string   `yaml:"variable_prefix"`
	LatitudeKey    string   `yaml:"latitude_key"`
	LongitudeKey   string   `yaml:"longitude_key"`
	LatitudeName   string   `yaml:"latitude_name"`
	LongitudeName  string   `yaml:"longitude_name"`
	UnitsAttr      string   `yaml:"units_attr"`

	// Fixed labels win over the reserved keys.
	PlatformName string `yaml:"platform_name"`
	Sensor       string `yaml:"sensor"`
	PlatformKey  string `yaml:"platform_key"`
	SensorKey    string `yaml:"sensor_key"`

	patterns []*filename.Pattern
}

// DatasetConfig is one dataset known ahead of time. Keys other than the
// named fields end up in Extra.
type DatasetConfig struct {
	Name        string         `yaml:"name"`
	FileType    string         `yaml:"file_type"`
	FileKey     string         `yaml:"file_key"`
	Resolution  string         `yaml:"resolution"`
	Units       string         `yaml:"units"`
	LongName    string         `yaml:"long_name"`
	Coordinates []string       `yaml:"coordinates"`
	Extra       map[string]any `yaml:",inline"`
}

const (
	policyConfirmAll   = "confirm_all"
	policyConfirmFirst = "confirm_first"

	defaultPlatformKey = "/attr/platform_name"
	defaultSensorKey   = "/attr/sensor"
)

// Load reads a reader definition from a YAML file. Environment variables
// in the file are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, completes and validates a reader definition.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Reader.KnownKeyPolicy == "" {
		cfg.Reader.KnownKeyPolicy = policyConfirmAll
	}
	for _, ft := range cfg.FileTypes {
		if ft == nil {
			continue
		}
		if ft.LatitudeKey == "" {
			ft.LatitudeKey = discovery.DefaultLatitudeKey
		}
		if ft.LongitudeKey == "" {
			ft.LongitudeKey = discovery.DefaultLongitudeKey
		}
		if ft.LatitudeName == "" {
			ft.LatitudeName = discovery.DefaultLatitudeName
		}
		if ft.LongitudeName == "" {
			ft.LongitudeName = discovery.DefaultLongitudeName
		}
		if ft.UnitsAttr == "" {
			ft.UnitsAttr = discovery.DefaultUnitsAttr
		}
		if ft.PlatformKey == "" {
			ft.PlatformKey = defaultPlatformKey
		}
		if ft.SensorKey == "" {
			ft.SensorKey = defaultSensorKey
		}
	}
	for key, ds := range cfg.Datasets {
		if ds.Name == "" {
			ds.Name = key
			cfg.Datasets[key] = ds
		}
	}
}

func (cfg *Config) validate() error {
	var errs []error
	switch cfg.Reader.KnownKeyPolicy {
	case policyConfirmAll, policyConfirmFirst:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown known_key_policy %q", ErrInvalid, cfg.Reader.KnownKeyPolicy))
	}
	if len(cfg.FileTypes) == 0 {
		errs = append(errs, fmt.Errorf("%w: no file_types", ErrInvalid))
	}
	for _, name := range cfg.FileTypeNames() {
		ft := cfg.FileTypes[name]
		if ft == nil {
			errs = append(errs, fmt.Errorf("%w: file type %q is empty", ErrInvalid, name))
			continue
		}
		if len(ft.FilePatterns) == 0 {
			errs = append(errs, fmt.Errorf("%w: file type %q has no file_patterns", ErrInvalid, name))
		}
		ft.patterns = nil
		for _, p := range ft.FilePatterns {
			compiled, err := filename.Compile(p)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: file type %q: %v", ErrInvalid, name, err))
				continue
			}
			ft.patterns = append(ft.patterns, compiled)
		}
		for _, key := range []string{ft.LatitudeKey, ft.LongitudeKey} {
			if !internal.IsValidKey(key) {
				errs = append(errs, fmt.Errorf("%w: file type %q: bad key %q", ErrInvalid, name, key))
			}
		}
	}
	seen := map[string]string{}
	for _, key := range sortedKeys(cfg.Datasets) {
		ds := cfg.Datasets[key]
		if other, dup := seen[ds.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: datasets %q and %q share the name %q", ErrInvalid, other, key, ds.Name))
		}
		seen[ds.Name] = key
		if !internal.IsValidName(ds.Name) {
			errs = append(errs, fmt.Errorf("%w: dataset %q: bad name %q", ErrInvalid, key, ds.Name))
		}
		if _, has := cfg.FileTypes[ds.FileType]; !has {
			errs = append(errs, fmt.Errorf("%w: dataset %q: undeclared file_type %q", ErrInvalid, key, ds.FileType))
		}
	}
	return errors.Join(errs...)
}

// FileTypeNames returns the declared file type names, sorted.
func (cfg *Config) FileTypeNames() []string {
	return sortedKeys(cfg.FileTypes)
}

// FileType returns the named file type.
func (cfg *Config) FileType(name string) (*FileType, bool) {
	ft, has := cfg.FileTypes[name]
	return ft, has && ft != nil
}

// MatchFileType finds the first file type, in name order, with a pattern
// matching base, the base name of a file.
func (cfg *Config) MatchFileType(base string) (string, filename.Info, bool) {
	for _, name := range cfg.FileTypeNames() {
		ft := cfg.FileTypes[name]
		if ft == nil {
			continue
		}
		if info, ok := ft.Match(base); ok {
			return name, info, true
		}
	}
	return "", filename.Info{}, false
}

// Match tries each of the file type's patterns on base.
func (ft *FileType) Match(base string) (filename.Info, bool) {
	for _, p := range ft.patterns {
		if info, err := p.Parse(base); err == nil {
			return info, true
		}
	}
	return filename.Info{}, false
}

// KnownDatasets returns every configured dataset as an undecided result,
// sorted by dataset name. Each call returns fresh copies.
func (cfg *Config) KnownDatasets() []discovery.Result {
	names := make([]string, 0, len(cfg.Datasets))
	byName := map[string]DatasetConfig{}
	for _, ds := range cfg.Datasets {
		names = append(names, ds.Name)
		byName[ds.Name] = ds
	}
	sort.Strings(names)
	ret := make([]discovery.Result, 0, len(names))
	for _, name := range names {
		ret = append(ret, discovery.Result{
			Availability: discovery.Unknown,
			Descriptor:   byName[name].Descriptor(),
		})
	}
	return ret
}

// Descriptor converts the dataset into a fresh descriptor.
func (ds DatasetConfig) Descriptor() discovery.Descriptor {
	d := discovery.Descriptor{
		Name:        ds.Name,
		FileKey:     ds.FileKey,
		FileType:    ds.FileType,
		Resolution:  ds.Resolution,
		Units:       ds.Units,
		LongName:    ds.LongName,
		Coordinates: ds.Coordinates,
		Extra:       ds.Extra,
	}
	return d.Clone()
}

// EngineOptions returns discovery options for the named file type.
func (cfg *Config) EngineOptions(fileType string) (discovery.Options, error) {
	ft, has := cfg.FileType(fileType)
	if !has {
		return discovery.Options{}, fmt.Errorf("%w: unknown file type %q", ErrInvalid, fileType)
	}
	policy := discovery.ConfirmAll
	if strings.EqualFold(cfg.Reader.KnownKeyPolicy, policyConfirmFirst) {
		policy = discovery.ConfirmFirst
	}
	return discovery.Options{
		LatitudeKey:    ft.LatitudeKey,
		LongitudeKey:   ft.LongitudeKey,
		LatitudeName:   ft.LatitudeName,
		LongitudeName:  ft.LongitudeName,
		UnitsAttr:      ft.UnitsAttr,
		Vars:           map[string]string{"variable_prefix": ft.VariablePrefix},
		KnownKeyPolicy: policy,
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
