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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	// StudioDir is opened by `concepto serve` when no directory is given.
	StudioDir string `yaml:"studio_dir"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AVTimeoutSec   int      `yaml:"av_timeout_sec"`
	// The external API key is not stored on disk; it lives in the OS keychain.
}

type StorageConfig struct {
	BackupsKeep int `yaml:"backups_keep"`
	MaxMediaMB  int `yaml:"max_media_mb"`
	// Mirror saved episodes to Postgres. The DSN comes from CONCEPTO_PG_DSN or DATABASE_URL.
	Postgres bool `yaml:"postgres"`
}

type AIConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	Retries     int     `yaml:"retries"`
	// The Gemini API key is not stored on disk; it lives in the OS keychain.
}

type ExportConfig struct {
	// CaptionFont is a TTF/OTF file for storyboard PNG captions. Empty uses a built-in ASCII face.
	CaptionFont   string  `yaml:"caption_font"`
	CaptionSizePt float64 `yaml:"caption_size_pt"`
}

type AutosaveConfig struct {
	DelayMs int `yaml:"delay_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Server        ServerConfig   `yaml:"server"`
	Storage       StorageConfig  `yaml:"storage"`
	AI            AIConfig       `yaml:"ai"`
	Export        ExportConfig   `yaml:"export"`
	Autosave      AutosaveConfig `yaml:"autosave"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Secrets are read from the keychain, falling back to the environment.
type Secrets struct {
	GeminiAPIKey string
	ExternalKey  string
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Server:        ServerConfig{Addr: ":8080", AVTimeoutSec: 1800},
		Storage:       StorageConfig{BackupsKeep: 50, MaxMediaMB: 20},
		AI:            AIConfig{Model: "gemini-2.5-flash", Temperature: 0.7, TimeoutSec: 300, Retries: 2},
		Export:        ExportConfig{CaptionSizePt: 11},
		Autosave:      AutosaveConfig{DelayMs: 2000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "CONCEPTO_CONFIG"
	EnvTelemetryOptIn = "CONCEPTO_TELEMETRY_OPT_IN"
	EnvStudioDir      = "CONCEPTO_STUDIO_DIR"
	EnvAddr           = "CONCEPTO_ADDR"
	EnvAllowedOrigins = "CONCEPTO_ALLOWED_ORIGINS"
	EnvPostgres       = "CONCEPTO_POSTGRES"
	EnvAIModel        = "CONCEPTO_AI_MODEL"
	EnvAutosaveMs     = "CONCEPTO_AUTOSAVE_MS"
	EnvGeminiKey      = "CONCEPTO_GEMINI_API_KEY"
	EnvExternalKey    = "CONCEPTO_API_KEY"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CONCEPTO_LOG_LEVEL"
	EnvLogFormat = "CONCEPTO_LOG_FORMAT"
	EnvLogSource = "CONCEPTO_LOG_SOURCE"
	EnvLogFile   = "CONCEPTO_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "Concepto"
	KeyGemini      = "gemini_api_key"
	KeyExternal    = "external_api_key"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path. CONCEPTO_CONFIG overrides it.
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
		base = filepath.Join(base, "Concepto")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Concepto")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "concepto")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding variables that
// are already set. Missing files are ignored; with no paths ".env" is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// Secrets come from the keyring, or from the environment when the keyring has none.
func Load() (AppConfig, Secrets, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, Secrets{}, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, Secrets{}, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, loadSecrets(), nil
}

func loadSecrets() Secrets {
	return Secrets{
		GeminiAPIKey: secret(KeyGemini, EnvGeminiKey, "GEMINI_API_KEY"),
		ExternalKey:  secret(KeyExternal, EnvExternalKey),
	}
}

// secret prefers the environment so deployments can override what a workstation keychain holds.
func secret(key string, envs ...string) string {
	for _, e := range envs {
		if v := strings.TrimSpace(os.Getenv(e)); v != "" {
			return v
		}
	}
	v, _ := tokenStore.Get(keyringService, key)
	return v
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
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
	return os.WriteFile(path, data, 0o600)
}

// SetSecret stores one of KeyGemini or KeyExternal in the keychain. An empty value deletes it.
func SetSecret(key, value string) error {
	if key != KeyGemini && key != KeyExternal {
		return fmt.Errorf("unknown secret %q", key)
	}
	if value == "" {
		if err := tokenStore.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}
	return tokenStore.Set(keyringService, key, value)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.StudioDir) != "" {
		dst.General.StudioDir = strings.TrimSpace(src.General.StudioDir)
	}
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
	if src.Server.AVTimeoutSec > 0 {
		dst.Server.AVTimeoutSec = src.Server.AVTimeoutSec
	}
	if src.Storage.BackupsKeep > 0 {
		dst.Storage.BackupsKeep = src.Storage.BackupsKeep
	}
	if src.Storage.MaxMediaMB > 0 {
		dst.Storage.MaxMediaMB = src.Storage.MaxMediaMB
	}
	dst.Storage.Postgres = src.Storage.Postgres
	if strings.TrimSpace(src.AI.Model) != "" {
		dst.AI.Model = strings.TrimSpace(src.AI.Model)
	}
	if src.AI.Temperature > 0 {
		dst.AI.Temperature = src.AI.Temperature
	}
	if src.AI.TimeoutSec > 0 {
		dst.AI.TimeoutSec = src.AI.TimeoutSec
	}
	if src.AI.Retries > 0 {
		dst.AI.Retries = src.AI.Retries
	}
	if strings.TrimSpace(src.Export.CaptionFont) != "" {
		dst.Export.CaptionFont = strings.TrimSpace(src.Export.CaptionFont)
	}
	if src.Export.CaptionSizePt > 0 {
		dst.Export.CaptionSizePt = src.Export.CaptionSizePt
	}
	if src.Autosave.DelayMs > 0 {
		dst.Autosave.DelayMs = src.Autosave.DelayMs
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
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStudioDir)); v != "" {
		cfg.General.StudioDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgres)); v != "" {
		cfg.Storage.Postgres = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAIModel)); v != "" {
		cfg.AI.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutosaveMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Autosave.DelayMs = n
		}
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

var overrides = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.studio_dir":       EnvStudioDir,
	"server.addr":              EnvAddr,
	"server.allowed_origins":   EnvAllowedOrigins,
	"storage.postgres":         EnvPostgres,
	"ai.model":                 EnvAIModel,
	"autosave.delay_ms":        EnvAutosaveMs,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrides[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// AutosaveDelay returns the quiet period before an automatic save.
func (c AppConfig) AutosaveDelay() time.Duration {
	if c.Autosave.DelayMs <= 0 {
		return time.Duration(Defaults().Autosave.DelayMs) * time.Millisecond
	}
	return time.Duration(c.Autosave.DelayMs) * time.Millisecond
}

// AVTimeout bounds background AV generation.
func (s ServerConfig) AVTimeout() time.Duration {
	if s.AVTimeoutSec <= 0 {
		return time.Duration(Defaults().Server.AVTimeoutSec) * time.Second
	}
	return time.Duration(s.AVTimeoutSec) * time.Second
}

// CallTimeout bounds a single model call.
func (a AIConfig) CallTimeout() time.Duration {
	if a.TimeoutSec <= 0 {
		return time.Duration(Defaults().AI.TimeoutSec) * time.Second
	}
	return time.Duration(a.TimeoutSec) * time.Second
}

