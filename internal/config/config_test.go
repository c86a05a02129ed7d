/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memStore) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memStore) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config file into a temp dir and swaps the keyring for memory.
func isolate(t *testing.T) (string, memStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	store := memStore{}
	old := tokenStore
	tokenStore = store
	t.Cleanup(func() { tokenStore = old })
	return path, store
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, sec, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Storage.BackupsKeep != 50 || cfg.AutosaveDelay() != 2*time.Second {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if sec.GeminiAPIKey != "" || sec.ExternalKey != "" {
		t.Fatalf("unexpected secrets: %#v", sec)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Server.Addr = "127.0.0.1:9000"
	cfg.Server.AllowedOrigins = []string{"https://studio.test"}
	cfg.Storage.Postgres = true
	cfg.AI.Model = "gemini-test"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Server.Addr != "127.0.0.1:9000" || len(got.Server.AllowedOrigins) != 1 || !got.Storage.Postgres || got.AI.Model != "gemini-test" {
		t.Fatalf("round trip lost fields: %#v", got)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverridesServer(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvAllowedOrigins, "https://a.test, https://b.test ,")
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":9999" || len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("server overrides not applied: %#v", cfg.Server)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
	if env, ok := EnvOverrideFor("server.addr"); !ok || env != EnvAddr {
		t.Fatalf("EnvOverrideFor(server.addr) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("ai.model"); ok {
		t.Fatalf("ai.model reported as overridden")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/concepto.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/concepto.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/concepto.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/concepto.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSecretsPreferEnvironment(t *testing.T) {
	_, store := isolate(t)
	if err := SetSecret(KeyGemini, "from-keychain"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if err := SetSecret(KeyExternal, "ext-keychain"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	t.Setenv(EnvExternalKey, "ext-env")
	_, sec, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if sec.GeminiAPIKey != "from-keychain" || sec.ExternalKey != "ext-env" {
		t.Fatalf("unexpected secrets: %#v", sec)
	}
	if err := SetSecret(KeyGemini, ""); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	if err := SetSecret(KeyGemini, ""); err != nil {
		t.Fatalf("deleting a missing secret should be a no-op: %v", err)
	}
	if _, ok := store["Concepto/"+KeyGemini]; ok {
		t.Fatalf("secret not deleted")
	}
	if err := SetSecret("other", "x"); err == nil {
		t.Fatalf("expected error for unknown secret")
	}
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("CONCEPTO_ADDR=:7000\nCONCEPTO_AI_MODEL=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAIModel, "from-env")
	t.Setenv(EnvAddr, "")
	os.Unsetenv(EnvAddr)
	if err := LoadDotEnv(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvAddr); got != ":7000" {
		t.Fatalf("CONCEPTO_ADDR = %q", got)
	}
	if got := os.Getenv(EnvAIModel); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}
