// Copyright 2024 github.com/ucirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config materializes a runner.CommandTable from a declarative YAML
// file, the ambient counterpart to the write-once command registry the core
// consumes but never parses itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/ucirello-labs/replmuxd/internal/envfile"
	"github.com/ucirello-labs/replmuxd/internal/runner"
)

// Config is the materialized form of the daemon's configuration file:
// the working directory, an optional environment overlay, and every
// command's spec.
type Config struct {
	WorkDir         string
	BaseEnvironment []string
	Commands        []runner.CommandSpec
}

type commandFields struct {
	Executable          string `mapstructure:"executable"`
	AutoTrailingNewline bool   `mapstructure:"autoTrailingNewline"`
	JoinNewlinesWith    string `mapstructure:"joinNewlinesWith"`
	TruncateLinePattern string `mapstructure:"truncateLinePattern"`
	RemoveEmptyLine     bool   `mapstructure:"removeEmptyLine"`
	RejectEmptyInput    bool   `mapstructure:"rejectEmptyInput"`
	OverallTimeout      string `mapstructure:"overallTimeout"`
	QuietPeriod         string `mapstructure:"quietPeriod"`
	SignalWait          string `mapstructure:"signalWait"`
}

// Load reads path as a viper-compatible configuration file (YAML by
// default) and builds a Config from it. If the file sets "envfile", that
// path is resolved relative to the config file's directory and parsed with
// envfile.Parse to populate BaseEnvironment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	cfg := &Config{WorkDir: v.GetString("workdir")}

	if ef := v.GetString("envfile"); ef != "" {
		if !filepath.IsAbs(ef) {
			ef = filepath.Join(filepath.Dir(path), ef)
		}
		f, err := os.Open(ef)
		if err != nil {
			return nil, fmt.Errorf("config: opening envfile %q: %w", ef, err)
		}
		defer f.Close()
		env, err := envfile.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("config: parsing envfile %q: %w", ef, err)
		}
		cfg.BaseEnvironment = env
	}

	var raw map[string]commandFields
	if err := v.UnmarshalKey("commands", &raw); err != nil {
		return nil, fmt.Errorf("config: decoding commands: %w", err)
	}

	for name, fields := range raw {
		spec, err := toSpec(name, fields)
		if err != nil {
			return nil, err
		}
		cfg.Commands = append(cfg.Commands, spec)
	}

	return cfg, nil
}

func toSpec(name string, f commandFields) (runner.CommandSpec, error) {
	spec := runner.CommandSpec{
		Name:                name,
		Executable:          f.Executable,
		AutoTrailingNewline: f.AutoTrailingNewline,
		RemoveEmptyLine:     f.RemoveEmptyLine,
		RejectEmptyInput:    f.RejectEmptyInput,
	}
	if f.Executable == "" {
		return spec, fmt.Errorf("config: command %q has no executable", name)
	}
	if f.JoinNewlinesWith != "" {
		s := f.JoinNewlinesWith
		spec.JoinNewlinesWith = &s
	}
	if f.TruncateLinePattern != "" {
		re, err := regexp.Compile(f.TruncateLinePattern)
		if err != nil {
			return spec, &runner.InvalidPatternError{Name: name, Pattern: f.TruncateLinePattern, Err: err}
		}
		spec.TruncateLinePattern = re
	}
	var err error
	if spec.OverallTimeout, err = parseDuration(f.OverallTimeout); err != nil {
		return spec, fmt.Errorf("config: command %q overallTimeout: %w", name, err)
	}
	if spec.QuietPeriod, err = parseDuration(f.QuietPeriod); err != nil {
		return spec, fmt.Errorf("config: command %q quietPeriod: %w", name, err)
	}
	if spec.SignalWait, err = parseDuration(f.SignalWait); err != nil {
		return spec, fmt.Errorf("config: command %q signalWait: %w", name, err)
	}
	return spec, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Install builds a runner.CommandTable from cfg and installs it as the
// process-wide command registry. Every command inherits the daemon-wide
// WorkDir and BaseEnvironment materialized from the config file and its
// envfile overlay.
func (c *Config) Install() error {
	specs := make([]runner.CommandSpec, len(c.Commands))
	for i, spec := range c.Commands {
		spec.WorkDir = c.WorkDir
		spec.BaseEnvironment = c.BaseEnvironment
		specs[i] = spec
	}
	return runner.Install(runner.NewCommandTable(specs...))
}
