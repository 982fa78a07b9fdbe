/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in build events and crash reports to
// user-configured endpoints. Nothing is sent unless GSB_TELEMETRY_OPT_IN is
// set and an endpoint URL is present.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/version"
)

// Config holds runtime configuration for events and crash uploads.
//
// Environment variables (read by FromEnv):
// - GSB_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
// - GSB_TELEMETRY_URL: URL to POST JSON events to
// - GSB_CRASH_UPLOAD_URL: URL to POST crash reports to
// - GSB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
// - GSB_TELEMETRY_DEBUG: if set, logs send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GSB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GSB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GSB_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GSB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GSB_TELEMETRY_TIMEOUT_MS")); ms != "" {
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

// BuildEvent is the payload recorded after a build. It carries counts only,
// never story text or file names.
type BuildEvent struct {
	Targets  int           `json:"targets"`
	Written  int           `json:"written"`
	Scenes   int           `json:"scenes"`
	Warnings int           `json:"warnings"`
	Failed   bool          `json:"failed"`
	Duration time.Duration `json:"duration_ms"`
}

// Client is a small async event sender; it drops events on errors and when
// its bounded queue is full.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan map[string]any
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// Default returns the package-level client configured from the environment.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = New(FromEnv())
	})
	return defaultClient
}

// New constructs a client and starts its sender goroutine.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// CrashEnabled reports whether crash reports are uploaded.
func (c *Client) CrashEnabled() bool { return c != nil && c.cfg.OptIn && c.cfg.CrashURL != "" }

// Event queues a JSON event. Safe to call on a nil or disabled client.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	c.wg.Add(1)
	select {
	case c.q <- payload:
	default:
		c.wg.Done()
	}
}

// Build queues a "build" event.
func (c *Client) Build(ev BuildEvent) {
	c.Event("build", map[string]any{
		"targets":     ev.Targets,
		"written":     ev.Written,
		"scenes":      ev.Scenes,
		"warnings":    ev.Warnings,
		"failed":      ev.Failed,
		"duration_ms": ev.Duration.Milliseconds(),
	})
}

// Flush waits until queued events are sent or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops the sender goroutine.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
			c.wg.Done()
		}
	}
}

func (c *Client) send(item map[string]any) {
	buf, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.post(context.Background(), c.cfg.EventsURL, "application/json", buf); err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent", slog.Any("name", item["name"]))
	}
}

// UploadCrash posts a serialized crash report and waits for the answer, since
// the process exits right after. It is a no-op unless crash upload is enabled.
func (c *Client) UploadCrash(ctx context.Context, report []byte) error {
	if !c.CrashEnabled() {
		return nil
	}
	err := c.post(ctx, c.cfg.CrashURL, "text/plain; charset=utf-8", report)
	if c.cfg.DebugLogging {
		if err != nil {
			c.log.Debug("crash upload failed", slog.Any("err", err))
		} else {
			c.log.Debug("crash report uploaded")
		}
	}
	return err
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: %s returned %s", url, resp.Status)
	}
	return nil
}
