/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version" validate:"min=1"`
	General       GeneralConfig   `yaml:"general"`
	Backend       BackendConfig   `yaml:"backend"`
	Generate      GenerateConfig  `yaml:"generate"`
	Process       ProcessConfig   `yaml:"process"`
	Workspace     WorkspaceConfig `yaml:"workspace"`
	Logging       LoggingConfig   `yaml:"logging"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	TimeoutMs   int    `yaml:"timeout_ms" validate:"min=0"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Strict validates project responses against the embedded JSON Schema.
	Strict bool `yaml:"strict"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme" validate:"omitempty,oneof=system light dark"`
}

// GenerateConfig holds the defaults sent with generate-images.
type GenerateConfig struct {
	ImagesPerProduct int    `yaml:"images_per_product" validate:"min=1,max=50"`
	ImageSize        string `yaml:"image_size" validate:"oneof=small medium large"`
}

// ProcessConfig holds the defaults sent with process.
type ProcessConfig struct {
	RemoveBackground bool   `yaml:"remove_background"`
	AddBackground    bool   `yaml:"add_background"`
	OutputFormat     string `yaml:"output_format" validate:"oneof=png jpg jpeg webp"`
}

// WorkspaceConfig locates the local cache. An empty Dir means the current directory.
type WorkspaceConfig struct {
	Dir           string `yaml:"dir"`
	KeepSnapshots int    `yaml:"keep_snapshots" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8000", TimeoutMs: 60000},
		Generate:      GenerateConfig{ImagesPerProduct: 5, ImageSize: "medium"},
		Process:       ProcessConfig{RemoveBackground: true, AddBackground: true, OutputFormat: "png"},
		Workspace:     WorkspaceConfig{Dir: "", KeepSnapshots: 50},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "BPI_CONFIG"
	EnvBackendURL       = "BPI_BACKEND_URL"
	EnvBackendTimeoutMs = "BPI_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "BPI_TLS_INSECURE"
	EnvBackendStrict    = "BPI_BACKEND_STRICT"
	EnvBackendToken     = "BPI_BACKEND_TOKEN"
	EnvTelemetryOptIn   = "BPI_TELEMETRY_OPT_IN"
	EnvWorkspace        = "BPI_WORKSPACE"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "BPI_LOG_LEVEL"
	EnvLogFormat = "BPI_LOG_FORMAT"
	EnvLogSource = "BPI_LOG_SOURCE"
	EnvLogFile   = "BPI_LOG_FILE"
)

// ConfigPath returns the per-user config file path. BPI_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "BulkImage")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "BulkImage")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "bulkimage")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "bulkimage")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token (env first, then keyring); the token is returned separately.
// A malformed file is reported as an error together with the defaults-plus-env config.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, Token(), loadErr
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
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
	if token != "" {
		return SetToken(token)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and reports every failing field.
func (c AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	dst.Backend.Strict = src.Backend.Strict
	if src.Generate.ImagesPerProduct != 0 {
		dst.Generate.ImagesPerProduct = src.Generate.ImagesPerProduct
	}
	if s := strings.TrimSpace(src.Generate.ImageSize); s != "" {
		dst.Generate.ImageSize = strings.ToLower(s)
	}
	dst.Process.RemoveBackground = src.Process.RemoveBackground
	dst.Process.AddBackground = src.Process.AddBackground
	if s := strings.TrimSpace(src.Process.OutputFormat); s != "" {
		dst.Process.OutputFormat = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Workspace.Dir); s != "" {
		dst.Workspace.Dir = s
	}
	if src.Workspace.KeepSnapshots != 0 {
		dst.Workspace.KeepSnapshots = src.Workspace.KeepSnapshots
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

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendStrict)); v != "" {
		cfg.Backend.Strict = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Workspace.Dir = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"backend.strict":           EnvBackendStrict,
	"backend.token":            EnvBackendToken,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"workspace.dir":            EnvWorkspace,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend timeout, falling back to the default for non-positive values.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// WorkspaceRoot resolves the workspace directory to an absolute path.
func (w WorkspaceConfig) WorkspaceRoot() (string, error) {
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(dir)
}
