// Package config reads printer.cfg-style configuration files: INI-like
// sections, `#` and `;` comments, Klipper's `#*#` SAVE_CONFIG block,
// [include] directives and indented multi-line values. On top of the reader
// it builds the validated calibration profile the rest of the program uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a parsed configuration file.
type File struct {
	sections map[string]*Section
	order    []string
}

// Load reads and parses path, following [include] directives relative to the
// file's directory.
func Load(path string) (*File, error) {
	f := &File{sections: make(map[string]*Section)}
	if err := f.parseFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse parses configuration text. Includes are not resolved.
func Parse(data string) (*File, error) {
	f := &File{sections: make(map[string]*Section)}
	if err := f.parseLines("<string>", "", strings.Split(data, "\n"), nil); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer delete(visited, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return f.parseLines(path, filepath.Dir(abs), strings.Split(string(data), "\n"), visited)
}

func (f *File) parseLines(path, dir string, lines []string, visited map[string]bool) error {
	var section *Section
	var lastKey string

	for num, raw := range lines {
		line, continuation := cleanLine(raw)
		if line == "" {
			continue
		}

		// Indented lines extend the previous option, the way Klipper
		// holds point lists and gcode blocks.
		if continuation {
			if section == nil || lastKey == "" {
				continue
			}
			section.options[lastKey] += "\n" + line
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at %s:%d", path, num+1)
			}
			if spec, ok := strings.CutPrefix(header, "include "); ok {
				if visited == nil {
					return fmt.Errorf("config: [include] not supported when parsing from a string (%s:%d)", path, num+1)
				}
				if err := f.include(strings.TrimSpace(spec), dir, visited); err != nil {
					return err
				}
				section, lastKey = nil, ""
				continue
			}
			section = f.section(header)
			lastKey = ""
			continue
		}

		if section == nil {
			continue
		}

		key, value, ok := splitOption(line)
		if !ok {
			continue
		}
		section.options[key] = value
		lastKey = key
	}
	return nil
}

func (f *File) include(spec, dir string, visited map[string]bool) error {
	if spec == "" {
		return fmt.Errorf("config: empty include")
	}
	glob := spec
	if !filepath.IsAbs(glob) {
		glob = filepath.Join(dir, spec)
	}
	matches, err := filepath.Glob(glob)
	if err != nil {
		return fmt.Errorf("config: invalid include pattern %q: %w", spec, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(glob, "*?[") {
		return fmt.Errorf("config: include file does not exist: %s", glob)
	}
	sort.Strings(matches)
	for _, m := range matches {
		if err := f.parseFile(m, visited); err != nil {
			return err
		}
	}
	return nil
}

// cleanLine strips comments and whitespace. The second result reports
// whether the raw line was indented, i.e. continues the previous option.
func cleanLine(raw string) (string, bool) {
	continuation := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')
	line := strings.TrimSpace(raw)

	// SAVE_CONFIG output is real configuration behind a "#*# " prefix;
	// further indentation after the prefix marks a continuation line.
	if stripped, ok := strings.CutPrefix(line, "#*#"); ok {
		inner := strings.TrimPrefix(stripped, " ")
		continuation = len(inner) > 0 && (inner[0] == ' ' || inner[0] == '\t')
		return strings.TrimSpace(inner), continuation
	}
	if idx := strings.IndexAny(line, "#;"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return "", false
	}
	return line, continuation
}

func splitOption(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, ":=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func (f *File) section(name string) *Section {
	if s, ok := f.sections[name]; ok {
		return s
	}
	s := &Section{name: name, options: make(map[string]string)}
	f.sections[name] = s
	f.order = append(f.order, name)
	return s
}

// HasSection reports whether a section exists.
func (f *File) HasSection(name string) bool {
	_, ok := f.sections[name]
	return ok
}

// Section returns a section or an error naming it.
func (f *File) Section(name string) (*Section, error) {
	if s, ok := f.sections[name]; ok {
		return s, nil
	}
	return nil, ErrMissingSection(name)
}

// SectionNames lists all sections in file order.
func (f *File) SectionNames() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}
