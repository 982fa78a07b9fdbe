/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type BuildConfig struct {
	Comment     bool   `yaml:"comment"`
	Rubi        bool   `yaml:"rubi"`
	TagStage    string `yaml:"tag_stage"`    // "render" | "compile"
	CyclePolicy string `yaml:"cycle_policy"` // "fatal" | "depth"
	MaxDepth    int    `yaml:"max_depth"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"` // "sqlite" | "postgres"
	DSN     string `yaml:"dsn"`
	// The postgres password is not stored on disk; it lives in the OS keychain.
}

type ExportConfig struct {
	FontFile string `yaml:"font_file"`
	Language string `yaml:"language"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Build         BuildConfig   `yaml:"build"`
	Index         IndexConfig   `yaml:"index"`
	Export        ExportConfig  `yaml:"export"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Build:         BuildConfig{Comment: false, Rubi: false, TagStage: "render", CyclePolicy: "fatal", MaxDepth: 32},
		Index:         IndexConfig{Backend: "sqlite"},
		Export:        ExportConfig{Language: "ja"},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBuildComment = "GSB_BUILD_COMMENT"
	EnvBuildRubi    = "GSB_BUILD_RUBI"
	EnvTagStage     = "GSB_TAG_STAGE"
	EnvCyclePolicy  = "GSB_CYCLE_POLICY"
	EnvMaxDepth     = "GSB_MAX_DEPTH"
	EnvIndexBackend = "GSB_INDEX_BACKEND"
	EnvIndexDSN     = "GSB_INDEX_DSN"
	EnvFontFile     = "GSB_FONT_FILE"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSB_LOG_LEVEL"
	EnvLogFormat = "GSB_LOG_FORMAT"
	EnvLogSource = "GSB_LOG_SOURCE"
	EnvLogFile   = "GSB_LOG_FILE"
)

// configPathOverride is set by tests.
var configPathOverride string

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if configPathOverride != "" {
		return configPathOverride, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoStoryBuilder")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoStoryBuilder")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "gostorybuilder")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// It also loads the index password from the keyring (returned separately, never kept in the struct).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringIndexPassword)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the index password into the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringIndexPassword, password); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Build.Comment = src.Build.Comment
	dst.Build.Rubi = src.Build.Rubi
	if v := strings.TrimSpace(src.Build.TagStage); v != "" {
		dst.Build.TagStage = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Build.CyclePolicy); v != "" {
		dst.Build.CyclePolicy = strings.ToLower(v)
	}
	if src.Build.MaxDepth > 0 {
		dst.Build.MaxDepth = src.Build.MaxDepth
	}
	if v := strings.TrimSpace(src.Index.Backend); v != "" {
		dst.Index.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Index.DSN); v != "" {
		dst.Index.DSN = v
	}
	if v := strings.TrimSpace(src.Export.FontFile); v != "" {
		dst.Export.FontFile = v
	}
	if v := strings.TrimSpace(src.Export.Language); v != "" {
		dst.Export.Language = v
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBuildComment)); v != "" {
		cfg.Build.Comment = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBuildRubi)); v != "" {
		cfg.Build.Rubi = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTagStage)); v != "" {
		cfg.Build.TagStage = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCyclePolicy)); v != "" {
		cfg.Build.CyclePolicy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Build.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexBackend)); v != "" {
		cfg.Index.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexDSN)); v != "" {
		cfg.Index.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontFile)); v != "" {
		cfg.Export.FontFile = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"build.comment":      EnvBuildComment,
	"build.rubi":         EnvBuildRubi,
	"build.tag_stage":    EnvTagStage,
	"build.cycle_policy": EnvCyclePolicy,
	"build.max_depth":    EnvMaxDepth,
	"index.backend":      EnvIndexBackend,
	"index.dsn":          EnvIndexDSN,
	"export.font_file":   EnvFontFile,
	"logging.level":      EnvLogLevel,
	"logging.format":     EnvLogFormat,
	"logging.source":     EnvLogSource,
	"logging.file":       EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
