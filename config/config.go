// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package config loads the YAML configuration file shared by
// cmd/rted and cmd/rteworker, grounded on the teacher's
// loadConfigYaml helper in cmd/coordinated/main.go generalized from
// an untyped map[string]interface{} into a typed struct.
package config

import (
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the tunables SPEC_FULL.md §6 lists: the heartbeat
// threshold (task_timeout), the server's listen address (bind), and
// the poll interval clients and workers should use (refresh_time).
type Config struct {
	TaskTimeout time.Duration `yaml:"task_timeout"`
	Bind        string        `yaml:"bind"`
	RefreshTime time.Duration `yaml:"refresh_time"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TaskTimeout: 30 * time.Second,
		Bind:        ":5934",
		RefreshTime: 2 * time.Second,
	}
}

// rawConfig mirrors Config but with durations spelled as YAML
// strings ("30s"), since yaml.v2 has no built-in time.Duration
// support the way it does for time.Time.
type rawConfig struct {
	TaskTimeout string `yaml:"task_timeout"`
	Bind        string `yaml:"bind"`
	RefreshTime string `yaml:"refresh_time"`
}

// UnmarshalYAML implements yaml.Unmarshaler, parsing the duration
// fields with time.ParseDuration and leaving any field absent from
// the document at its prior (Default) value.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.TaskTimeout != "" {
		d, err := time.ParseDuration(raw.TaskTimeout)
		if err != nil {
			return err
		}
		c.TaskTimeout = d
	}
	if raw.Bind != "" {
		c.Bind = raw.Bind
	}
	if raw.RefreshTime != "" {
		d, err := time.ParseDuration(raw.RefreshTime)
		if err != nil {
			return err
		}
		c.RefreshTime = d
	}
	return nil
}

// Load reads and parses a YAML configuration file at path. Fields
// absent from the file keep Default's values.
func Load(path string) (Config, error) {
	cfg := Default()
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
