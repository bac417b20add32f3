package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/vk/bootforge/internal/app"
	"github.com/vk/bootforge/internal/config"
)

// options holds the raw flag values shared by every command.
type options struct {
	files       []string
	dir         string
	registry    string
	workers     int
	jobs        int
	logLevel    string
	logFormat   string
	fingerprint string
	failFast    bool
	dryRun      bool
	vars        []string
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.files, "file", "f", nil, "Build file or directory of .hcl files (repeatable).")
	fs.StringVarP(&o.dir, "dir", "C", ".", "Workspace directory.")
	fs.StringVar(&o.registry, "registry", app.DefaultRegistry, "Registry database path, relative to the workspace.")
	fs.IntVar(&o.workers, "workers", app.DefaultWorkers, "Number of targets built concurrently.")
	fs.IntVarP(&o.jobs, "jobs", "j", 0, "Maximum concurrent external commands (default: workers).")
	fs.StringVar(&o.logLevel, "log-level", "info", "Logging level: debug, info, warn or error.")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log output format: text or json.")
	fs.StringVar(&o.fingerprint, "fingerprint", "content", "File fingerprints: content or mtime.")
	fs.BoolVar(&o.failFast, "fail-fast", false, "Stop starting new targets after the first failure.")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Report what would be rebuilt without running recipes.")
	fs.StringArrayVar(&o.vars, "var", nil, "Set a build-file variable as NAME=VALUE; JSON values are decoded (repeatable).")
}

// appConfig layers flags over the settings file over built-in defaults. A
// flag only wins over the settings file when it was given explicitly.
func (o *options) appConfig(fs *pflag.FlagSet, targets []string) (*app.Config, error) {
	settings, err := config.LoadSettings(o.dir)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &config.Settings{}
	}
	cfg := app.Config{
		Root:        o.dir,
		Buildfiles:  settings.Buildfiles,
		Registry:    pick(fs, "registry", o.registry, settings.Registry),
		Targets:     targets,
		Workers:     pick(fs, "workers", o.workers, settings.Workers),
		Jobs:        pick(fs, "jobs", o.jobs, settings.Jobs),
		LogLevel:    pick(fs, "log-level", strings.ToLower(o.logLevel), settings.LogLevel),
		LogFormat:   pick(fs, "log-format", strings.ToLower(o.logFormat), settings.LogFormat),
		Fingerprint: pick(fs, "fingerprint", o.fingerprint, settings.Fingerprint),
		FailFast:    pick(fs, "fail-fast", o.failFast, settings.FailFast),
		DryRun:      o.dryRun,
		Variables:   make(map[string]any, len(settings.Variables)+len(o.vars)),
	}
	if len(o.files) > 0 {
		cfg.Buildfiles = o.files
	}
	for k, v := range settings.Variables {
		cfg.Variables[k] = v
	}
	for _, kv := range o.vars {
		name, value, err := parseVar(kv)
		if err != nil {
			return nil, err
		}
		cfg.Variables[name] = value
	}
	return app.NewConfig(cfg)
}

// pick returns the flag value if it was set explicitly, else the setting if
// present, else the flag default.
func pick[T any](fs *pflag.FlagSet, name string, flag T, setting *T) T {
	if fs.Changed(name) || setting == nil {
		return flag
	}
	return *setting
}

// parseVar splits NAME=VALUE. VALUE is decoded as JSON when it is valid
// JSON, so lists and numbers can be passed; anything else is a string.
func parseVar(kv string) (string, any, error) {
	name, raw, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid --var %q: want NAME=VALUE", kv)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return name, raw, nil
	}
	return name, value, nil
}
