package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/sethvargo/go-envconfig"
	"go.yaml.in/yaml/v3"
)

type LoadOptions struct {
	// File is the optional YAML settings file. When empty the path in
	// QUAYCONF_CONFIG is used, if any.
	File string
	// Lookuper overrides the environment source; tests use a map lookuper.
	Lookuper envconfig.Lookuper
}

// Load resolves the registry settings from the file and the environment.
// Flag overrides are applied by the caller afterwards.
func Load(ctx context.Context, opts LoadOptions) (Registry, error) {
	lookuper := opts.Lookuper
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	cfg := Registry{}

	path := strings.TrimSpace(opts.File)
	if path == "" {
		if value, found := lookuper.Lookup(ConfigFileEnvVar); found {
			path = strings.TrimSpace(value)
		}
	}
	if path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			return Registry{}, err
		}
		cfg = fileCfg
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Registry{}, faults.Validation("invalid registry settings in environment", err)
	}

	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	return cfg, nil
}

func readFile(path string) (Registry, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return Registry{}, err
	}

	content, err := os.ReadFile(expanded)
	if err != nil {
		return Registry{}, faults.Validation(fmt.Sprintf("config file %q could not be read", path), err)
	}

	var cfg Registry
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Registry{}, faults.Validation(fmt.Sprintf("config file %q is invalid", path), err)
	}
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", faults.Validation("cannot resolve home directory", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ParseHost parses the registry host as a URL. A host without scheme is
// assumed to use https.
func ParseHost(host string) (*url.URL, error) {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return nil, faults.Validation("registry host is required", nil)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, faults.Validation(fmt.Sprintf("Unable to parse host as a URL (%s)", host), err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, faults.Validation(fmt.Sprintf("Unable to parse host as a URL (%s): unsupported scheme %q", host, parsed.Scheme), nil)
	}
	if parsed.Hostname() == "" {
		return nil, faults.Validation(fmt.Sprintf("Unable to parse host as a URL (%s): missing hostname", host), nil)
	}
	return parsed, nil
}
