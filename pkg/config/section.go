package config

import (
	"strconv"
	"strings"
)

// Section is one [name] block of a configuration file. Accessors take an
// optional fallback used when the option is absent; without a fallback a
// missing option is an error.
type Section struct {
	name    string
	options map[string]string
}

// Name returns the section name.
func (s *Section) Name() string {
	return s.name
}

// HasOption reports whether an option is set.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// Get returns a string option.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", ErrMissingOption(s.name, option)
}

// GetInt returns an integer option.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "integer")
	}
	return i, nil
}

// GetFloat returns a float option.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "float")
	}
	return f, nil
}

// GetBool returns a boolean option. Klipper accepts 1/0, true/false, yes/no
// and on/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return false, ErrMissingOption(s.name, option)
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, ErrInvalidValue(s.name, option, v, "boolean")
}

// GetChoice returns a string option restricted to choices.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// GetPoints returns an option holding x,y pairs, one pair per line or comma
// separated, e.g. Klipper's probe_points lists.
func (s *Section) GetPoints(option string) ([][2]float64, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		return nil, ErrMissingOption(s.name, option)
	}
	var points [][2]float64
	for _, line := range strings.Split(v, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return nil, ErrInvalidValue(s.name, option, line, "x,y pair")
		}
		var p [2]float64
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, ErrInvalidValue(s.name, option, part, "float")
			}
			p[i] = f
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, ErrInvalidValue(s.name, option, v, "at least one x,y pair")
	}
	return points, nil
}
