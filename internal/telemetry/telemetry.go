/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Events carry counts only, never screenplay text or names.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "concepto/internal/log"
	"concepto/internal/version"

	"github.com/google/uuid"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
//   - CONCEPTO_TELEMETRY_OPT_IN: "1", "true", "yes" to enable
//   - CONCEPTO_TELEMETRY_URL: endpoint receiving JSON event batches
//   - CONCEPTO_CRASH_UPLOAD_URL: endpoint receiving crash reports
//   - CONCEPTO_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - CONCEPTO_TELEMETRY_DEBUG: if set, logs send attempts
//
// Without URLs nothing is sent, even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
	// BatchSize and FlushEvery bound how long events wait in memory. Defaults 16 and 2 s.
	BatchSize  int
	FlushEvery time.Duration
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("CONCEPTO_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("CONCEPTO_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("CONCEPTO_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("CONCEPTO_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("CONCEPTO_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Payload is one event as sent on the wire.
type Payload struct {
	Name    string         `json:"name"`
	TS      time.Time      `json:"ts"`
	Session string         `json:"session"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them in batches from one goroutine. It never blocks
// callers: events are dropped when the queue is full or sending fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	session string
	q       chan Payload
	flushes chan chan struct{}
	once    sync.Once
	closed  chan struct{}
	done    chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

func defaultC() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault installs c as the package-level client, closing the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil && prev != c {
		prev.Close()
	}
}

// New constructs a client. Each client reports under a fresh random session id, so events of
// one process can be grouped without identifying the user.
func New(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
		q:       make(chan Payload, 64),
		flushes: make(chan chan struct{}),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether anonymous telemetry is enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client sends events.
func Enabled() bool { return defaultC().Enabled() }

// Event queues an event if enabled. Props must hold counts and flags only.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	p := Payload{
		Name:    name,
		TS:      time.Now().UTC(),
		Session: c.session,
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		p.Props = make(map[string]any, len(props))
		for k, v := range props {
			p.Props[k] = v
		}
	}
	select {
	case c.q <- p:
	default:
	}
}

// Event using default client.
func Event(name string, props map[string]any) { defaultC().Event(name, props) }

// Flush sends the pending batch and waits until it is out or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	ack := make(chan struct{})
	select {
	case c.flushes <- ack:
	case <-c.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Close sends what is queued and stops the background goroutine.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	<-c.done
}

func (c *Client) loop() {
	defer close(c.done)
	tick := time.NewTicker(c.cfg.FlushEvery)
	defer tick.Stop()
	var batch []Payload
	drain := func() {
		for {
			select {
			case p := <-c.q:
				batch = append(batch, p)
			default:
				return
			}
		}
	}
	for {
		select {
		case <-c.closed:
			drain()
			c.send(batch)
			return
		case p := <-c.q:
			batch = append(batch, p)
			if len(batch) >= c.cfg.BatchSize {
				c.send(batch)
				batch = nil
			}
		case ack := <-c.flushes:
			drain()
			c.send(batch)
			batch = nil
			close(ack)
		case <-tick.C:
			c.send(batch)
			batch = nil
		}
	}
}

// send posts batch in requests of at most BatchSize events.
func (c *Client) send(batch []Payload) {
	size := max(c.cfg.BatchSize, 1)
	for len(batch) > 0 {
		n := min(len(batch), size)
		if buf, err := json.Marshal(batch[:n]); err == nil {
			c.post(c.cfg.EventsURL, "application/json", buf, "telemetry batch")
		}
		batch = batch[n:]
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report to the configured crash URL if opted in. It waits for the
// request, since the process is usually about to exit.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report, "crash upload")
}

// UploadCrash using default client.
func UploadCrash(report []byte) { defaultC().UploadCrash(report) }
