// Package filename extracts identity metadata (start and end times, free-form
// fields) from file names using patterns such as
//
//	comp{start_time:%Y%m%d.%H%M%S}.nc
//
// A placeholder is {name} or {name:format}. Formats holding strftime
// directives produce a time; "d", "Nd" and "0Nd" produce a digit run; "Ns"
// produces exactly N characters; no format matches the shortest non-empty
// string that lets the rest of the pattern match.
package filename

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

var (
	ErrBadPattern = errors.New("bad filename pattern")
	ErrNoMatch    = errors.New("filename does not match pattern")
)

// Info is the metadata parsed out of one file name.
type Info struct {
	Times  map[string]time.Time
	Fields map[string]string
}

// StartTime returns the "start_time" field.
func (i Info) StartTime() (time.Time, bool) {
	t, has := i.Times["start_time"]
	return t, has
}

// EndTime returns the "end_time" field.
func (i Info) EndTime() (time.Time, bool) {
	t, has := i.Times["end_time"]
	return t, has
}

// Clone returns a deep copy of i.
func (i Info) Clone() Info {
	c := Info{
		Times:  make(map[string]time.Time, len(i.Times)),
		Fields: make(map[string]string, len(i.Fields)),
	}
	for k, v := range i.Times {
		c.Times[k] = v
	}
	for k, v := range i.Fields {
		c.Fields[k] = v
	}
	return c
}

type field struct {
	name     string
	format   string // strftime format; empty for non-time fields
	hasDate  bool
	isNumber bool
}

// Pattern is a compiled filename pattern.
type Pattern struct {
	source string
	re     *regexp.Regexp
	fields []field
}

type directive struct {
	re     string
	isDate bool
}

// directives bounds the width of each time field so that adjacent fields
// split correctly; the values themselves are parsed by timefmt.
var directives = map[byte]directive{
	'Y': {`\d{4}`, true},
	'y': {`\d{2}`, true},
	'm': {`\d{2}`, true},
	'd': {`\d{2}`, true},
	'j': {`\d{3}`, true},
	'b': {`[A-Za-z]{3}`, true},
	'B': {`[A-Za-z]+`, true},
	'H': {`\d{2}`, false},
	'M': {`\d{2}`, false},
	'S': {`\d{2}`, false},
}

var widthFormat = regexp.MustCompile(`^(0?)(\d*)([ds])$`)

// Compile parses a pattern.
func Compile(pattern string) (*Pattern, error) {
	var sb strings.Builder
	p := &Pattern{source: pattern}
	sb.WriteString("^")
	rest := pattern
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(regexp.QuoteMeta(rest))
			break
		}
		sb.WriteString(regexp.QuoteMeta(rest[:open]))
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder in %q", ErrBadPattern, pattern)
		}
		placeholder := rest[open+1 : open+closing]
		rest = rest[open+closing+1:]

		name, format, _ := strings.Cut(placeholder, ":")
		if name == "" {
			return nil, fmt.Errorf("%w: empty field name in %q", ErrBadPattern, pattern)
		}
		f, expr, err := compileField(name, format)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
		}
		p.fields = append(p.fields, f)
		sb.WriteString("(" + expr + ")")
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
	}
	p.re = re
	return p, nil
}

func compileField(name, format string) (field, string, error) {
	f := field{name: name}
	switch {
	case format == "":
		return f, ".+?", nil
	case strings.Contains(format, "%"):
		var expr strings.Builder
		for i := 0; i < len(format); i++ {
			c := format[i]
			if c != '%' {
				expr.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			i++
			if i == len(format) {
				return f, "", fmt.Errorf("dangling %% in %q", format)
			}
			if format[i] == '%' {
				expr.WriteString("%")
				continue
			}
			d, has := directives[format[i]]
			if !has {
				return f, "", fmt.Errorf("unsupported directive %%%c", format[i])
			}
			expr.WriteString(d.re)
			f.hasDate = f.hasDate || d.isDate
		}
		f.format = format
		return f, expr.String(), nil
	}
	m := widthFormat.FindStringSubmatch(format)
	if m == nil {
		return f, "", fmt.Errorf("unsupported format %q", format)
	}
	width := m[2]
	if m[3] == "s" {
		if width == "" {
			return f, ".+?", nil
		}
		return f, ".{" + width + "}", nil
	}
	f.isNumber = true
	if width == "" {
		return f, `\d+`, nil
	}
	return f, `\d{` + width + `}`, nil
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Parse matches name (a base name, not a path) against the pattern.
func (p *Pattern) Parse(name string) (Info, error) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return Info{}, fmt.Errorf("%w: %q against %q", ErrNoMatch, name, p.source)
	}
	info := Info{Times: map[string]time.Time{}, Fields: map[string]string{}}
	clockOnly := map[string]bool{}
	for i, f := range p.fields {
		val := m[i+1]
		if f.format == "" {
			if f.isNumber {
				if _, err := strconv.ParseUint(val, 10, 64); err != nil {
					return Info{}, fmt.Errorf("%w: field %s: %v", ErrNoMatch, f.name, err)
				}
			}
			info.Fields[f.name] = val
			continue
		}
		t, err := timefmt.Parse(val, f.format)
		if err != nil {
			return Info{}, fmt.Errorf("%w: field %s: %v", ErrNoMatch, f.name, err)
		}
		info.Times[f.name] = t
		if !f.hasDate {
			clockOnly[f.name] = true
		}
	}
	start, hasStart := info.Times["start_time"]
	if end, has := info.Times["end_time"]; has && hasStart && clockOnly["end_time"] {
		end = time.Date(start.Year(), start.Month(), start.Day(),
			end.Hour(), end.Minute(), end.Second(), 0, time.UTC)
		if end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}
		info.Times["end_time"] = end
	}
	return info, nil
}
