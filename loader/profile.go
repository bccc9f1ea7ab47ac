package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultProfilePath is the run profile looked up next to the features
// when no explicit profile is given.
const DefaultProfilePath = "cuke.yaml"

// Profile is an optional YAML run profile: defaults for the CLI that
// would otherwise be repeated as flags on every invocation.
type Profile struct {
	// Paths are feature files or directories to run.
	Paths []string `yaml:"paths"`

	// Tags filter scenarios: a scenario runs when it carries at least
	// one listed tag; entries prefixed with "~" exclude instead.
	Tags []string `yaml:"tags"`

	// Naming is the snippet naming convention: snake_case or camelCase.
	Naming string `yaml:"naming"`

	// Format is the event output format: pretty or json.
	Format string `yaml:"format"`

	// Store is a SQLite DSN for persisting run events; empty disables
	// persistence.
	Store string `yaml:"store"`

	// LogLevel is the slog level for CLI diagnostics.
	LogLevel string `yaml:"log_level"`
}

// LoadProfile reads a YAML run profile from path. A missing file is not
// an error: it returns an empty profile so callers can layer flags over
// it unconditionally.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loader: profile: %w", err)
	}
	defer f.Close()
	return ParseProfile(f)
}

// ParseProfile decodes a YAML run profile. Unknown fields are rejected so
// typos fail loudly instead of being ignored.
func ParseProfile(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("loader: profile: %w", err)
	}
	return &p, nil
}
