package main

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	PatternRegexp = "regexp"
	PatternGlob   = "glob"
)

// Selector decides which remote names are downloaded.
type Selector struct {
	pattern string
	re      *regexp.Regexp
}

// NewSelector compiles pattern once. Regular expressions are anchored at the
// start of the name only, so ".*\.csv" also selects "a.csv.bak".
func NewSelector(pattern, syntax string) (*Selector, error) {
	if pattern == "" {
		return nil, fmt.Errorf("selection pattern is empty")
	}

	switch strings.ToLower(syntax) {
	case PatternRegexp, "":
		re, err := regexp.Compile(`^(?:` + pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("invalid selection pattern %q: %w", pattern, err)
		}
		return &Selector{pattern: pattern, re: re}, nil
	case PatternGlob:
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid selection pattern %q: %w", pattern, err)
		}
		return &Selector{pattern: pattern}, nil
	default:
		return nil, fmt.Errorf("unknown pattern syntax %q", syntax)
	}
}

// Match reports whether the base name of name is selected.
func (s *Selector) Match(name string) bool {
	if s.re != nil {
		return s.re.MatchString(name)
	}
	ok, _ := path.Match(s.pattern, name)
	return ok
}

// Select keeps the downloadable entries that match, in listing order.
func (s *Selector) Select(entries []Entry) []Entry {
	var selected []Entry
	for _, e := range entries {
		name := path.Base(e.Name)
		if name == "." || name == ".." || name == "/" {
			continue
		}
		if e.Kind == EntryFolder {
			continue
		}
		if !s.Match(name) {
			continue
		}
		e.Name = name
		selected = append(selected, e)
	}
	return selected
}

func (s *Selector) String() string {
	return s.pattern
}
