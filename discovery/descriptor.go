package discovery

import (
	"fmt"
	"strings"
)

// Availability is the tri-state answer to "can this file provide the
// dataset?".
type Availability int8

const (
	// Unknown means no signal yet: some other file type may provide it.
	Unknown Availability = iota
	// Available means confirmed present and readable.
	Available
	// Unavailable means confirmed absent.
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Unknown:
		return "unknown"
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("Availability(%d)", int(a))
}

// MarshalText lets availabilities print as words in YAML and JSON.
func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the words MarshalText produces.
func (a *Availability) UnmarshalText(text []byte) error {
	for _, v := range []Availability{Unknown, Available, Unavailable} {
		if v.String() == string(text) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("unknown availability %q", text)
}

// Descriptor identifies one reportable dataset. Treat descriptors as
// values: use Clone before changing one that was handed to you.
type Descriptor struct {
	Name        string         `yaml:"name" json:"name"`
	FileKey     string         `yaml:"file_key,omitempty" json:"file_key,omitempty"`
	FileType    string         `yaml:"file_type,omitempty" json:"file_type,omitempty"`
	Resolution  string         `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Units       string         `yaml:"units,omitempty" json:"units,omitempty"`
	LongName    string         `yaml:"long_name,omitempty" json:"long_name,omitempty"`
	Coordinates []string       `yaml:"coordinates,omitempty" json:"coordinates,omitempty"`
	Extra       map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Clone returns a copy of d that shares no slices or maps with it.
func (d Descriptor) Clone() Descriptor {
	c := d
	if d.Coordinates != nil {
		c.Coordinates = append([]string{}, d.Coordinates...)
	}
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// BackingKey returns the container key holding the dataset: FileKey with
// its {placeholders} substituted from vars, or Name when FileKey is empty.
// "{{" and "}}" stand for literal braces.
func (d Descriptor) BackingKey(vars map[string]string) (string, error) {
	if d.FileKey == "" {
		return d.Name, nil
	}
	return expand(d.FileKey, vars)
}

func expand(template string, vars map[string]string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed placeholder in %q", ErrTemplate, template)
			}
			name := template[i+1 : i+end]
			val, has := vars[name]
			if !has {
				return "", fmt.Errorf("%w: no value for {%s} in %q", ErrTemplate, name, template)
			}
			sb.WriteString(val)
			i += end
		case c == '}':
			return "", fmt.Errorf("%w: stray '}' in %q", ErrTemplate, template)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// Result is one availability decision.
type Result struct {
	Availability Availability `yaml:"availability" json:"availability"`
	Descriptor   Descriptor   `yaml:"descriptor" json:"descriptor"`
}

// Clone deep-copies the descriptor.
func (r Result) Clone() Result {
	return Result{Availability: r.Availability, Descriptor: r.Descriptor.Clone()}
}

// CloneResults deep-copies a result list, e.g. before handing one list of
// known descriptors to several concurrent passes.
func CloneResults(results []Result) []Result {
	if results == nil {
		return nil
	}
	ret := make([]Result, len(results))
	for i, r := range results {
		ret[i] = r.Clone()
	}
	return ret
}
