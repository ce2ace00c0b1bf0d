package config

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Selected reports whether the document at uri gets highlighting. Patterns
// are matched against the URI's path without its leading slash, so
// "**/*.go" matches every Go file.
func (f *Files) Selected(uri string) bool {
	if f == nil {
		return true
	}

	name := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		name = u.Path
	}
	name = strings.TrimPrefix(name, "/")

	for _, p := range f.Exclude {
		if match(p, name) {
			return false
		}
	}

	if len(f.Include) == 0 {
		return true
	}

	for _, p := range f.Include {
		if match(p, name) {
			return true
		}
	}
	return false
}

func match(pattern, name string) bool {
	ok, err := doublestar.Match(strings.TrimPrefix(pattern, "/"), name)
	return err == nil && ok
}
