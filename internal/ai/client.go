/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ai holds the generative collaborators of the studio: screenplay translation,
// element enhancement, screenplay drafting and AV shot generation.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"concepto/internal/avscript"
	"concepto/internal/domain"
	applog "concepto/internal/log"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Options tune a Client.
type Options struct {
	CacheTTL time.Duration
	Retries  int
	Backoff  time.Duration
	// Timeout bounds each model call; zero means no extra bound beyond ctx.
	Timeout time.Duration
}

// DefaultOptions mirror the AV runner: two retries, 2 s backoff, 5 minute calls, one hour cache.
func DefaultOptions() Options {
	return Options{CacheTTL: time.Hour, Retries: 2, Backoff: 2 * time.Second, Timeout: 5 * time.Minute}
}

// Client implements translation, enhancement and shot generation on top of a Model.
// Identical translation requests are served from cache and concurrent duplicates share one call.
type Client struct {
	model Model
	opts  Options
	cache *cache.Cache
	group singleflight.Group
	log   *slog.Logger
	now   func() time.Time
}

// NewClient wraps model.
func NewClient(model Model, opts Options) *Client {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Client{
		model: model,
		opts:  opts,
		cache: cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		log:   applog.WithComponent("ai"),
		now:   time.Now,
	}
}

// Translate sends screenplay markup for translation from one language into another and returns
// the translated markup.
func (c *Client) Translate(ctx context.Context, markup string, from, to domain.Lang) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return "", nil
	}
	key := cacheKey("translate", string(from), string(to), markup)
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}
	// The shared call outlives any single caller; each caller waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		prompt, err := render(translateTmpl, map[string]string{"From": langName(from), "To": langName(to), "Markup": markup})
		if err != nil {
			return nil, err
		}
		out, err := c.call(shared, "translate", translateSystem, prompt)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("translate %s->%s: %w", from, to, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("translate %s->%s: %w", from, to, res.Err)
		}
		if res.Shared {
			c.log.Debug("translation shared with concurrent request")
		}
		return res.Val.(string), nil
	}
}

// Enhance rewrites one element following instruction. The returned thread records the exchange
// and continues prev when given.
func (c *Client) Enhance(ctx context.Context, t domain.ElementType, content, instruction string, prev *domain.EnhancementThread) (string, *domain.EnhancementThread, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", nil, errors.New("enhance: empty instruction")
	}
	prompt, err := render(enhanceTmpl, map[string]string{"Instruction": instruction, "Type": string(t), "Content": content})
	if err != nil {
		return "", nil, err
	}
	out, err := c.call(ctx, "enhance", enhanceSystem, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("enhance: %w", err)
	}
	out = strings.Trim(strings.TrimSpace(out), "\"")
	th := prev.Clone()
	if th == nil {
		th = &domain.EnhancementThread{CreatedAt: domain.TS(c.now())}
	}
	th.Instruction = instruction
	th.Model = c.model.Name()
	th.Turns = append(th.Turns,
		domain.ThreadTurn{Role: "user", Text: prompt},
		domain.ThreadTurn{Role: "model", Text: out},
	)
	return out, th, nil
}

// DraftScreenplay asks the model for a new screenplay as markup blocks.
func (c *Client) DraftScreenplay(ctx context.Context, lang domain.Lang, title, brief string) (string, error) {
	prompt, err := render(screenplayTmpl, map[string]string{"Lang": langName(lang), "Title": title, "Brief": brief})
	if err != nil {
		return "", err
	}
	out, err := c.call(ctx, "draft", screenplaySystem, prompt)
	if err != nil {
		return "", fmt.Errorf("draft screenplay: %w", err)
	}
	return out, nil
}

// GenerateShots implements avscript.Generator. Retrying is left to the avscript.Runner.
func (c *Client) GenerateShots(ctx context.Context, req avscript.Request) (string, error) {
	prompt, err := render(shotsTmpl, map[string]any{
		"Lang":       langName(req.Lang),
		"StartScene": req.StartScene,
		"LastShot":   req.LastShot,
		"Text":       req.Text,
	})
	if err != nil {
		return "", err
	}
	return c.model.Generate(ctx, shotsSystem, prompt)
}

// call runs one model request with the configured retries and per-call timeout.
func (c *Client) call(ctx context.Context, op, system, prompt string) (string, error) {
	l := applog.WithOperation(c.log, op)
	attempts := 1 + max(c.opts.Retries, 0)
	var lastErr error
	for a := 1; a <= attempts; a++ {
		cctx, cancel := ctx, context.CancelFunc(func() {})
		if c.opts.Timeout > 0 {
			cctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		}
		start := c.now()
		out, err := c.model.Generate(cctx, system, prompt)
		cancel()
		if err == nil {
			l.Debug("model call ok", slog.Int("attempt", a), slog.Duration("took", c.now().Sub(start)))
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		l.Warn("model call failed", slog.Int("attempt", a), slog.Any("err", err))
		if a < attempts && c.opts.Backoff > 0 {
			t := time.NewTimer(c.opts.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
	}
	return "", lastErr
}

func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
