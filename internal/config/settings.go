package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the name of the settings file in the workspace root.
const SettingsFile = ".bootforge.yaml"

// Settings holds the values of .bootforge.yaml. Unset fields are nil so that
// callers can tell them apart from explicit zero values.
type Settings struct {
	// Buildfiles lists .hcl files or directories, relative to the workspace.
	Buildfiles  []string       `yaml:"buildfiles"`
	Registry    *string        `yaml:"registry"`
	Workers     *int           `yaml:"workers"`
	Jobs        *int           `yaml:"jobs"`
	LogLevel    *string        `yaml:"log_level"`
	LogFormat   *string        `yaml:"log_format"`
	Fingerprint *string        `yaml:"fingerprint"`
	FailFast    *bool          `yaml:"fail_fast"`
	Variables   map[string]any `yaml:"variables"`
}

// LoadSettings reads .bootforge.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func LoadSettings(root string) (*Settings, error) {
	path := filepath.Join(root, SettingsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &s, nil
}
