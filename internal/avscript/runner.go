/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package avscript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"concepto/internal/domain"
	applog "concepto/internal/log"
)

// Request is one generation call.
type Request struct {
	Segment    int
	Text       string
	Lang       domain.Lang
	StartScene int
	// LastShot is the dotted number of the last shot emitted so far ("" for the first segment).
	LastShot string
}

// Generator produces pipe-separated shot rows for one script segment.
type Generator interface {
	GenerateShots(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// GenerateShots implements Generator.
func (f GeneratorFunc) GenerateShots(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Failure reports a segment that produced no shots after all attempts.
type Failure struct {
	Segment    int    `json:"segment"`
	StartScene int    `json:"startScene"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
}

// Result is the outcome of a generation run. Script holds the shots of all segments that
// succeeded; Failures lists the others.
type Result struct {
	Script   domain.AVScript `json:"avScript"`
	Failures []Failure       `json:"failures,omitempty"`
}

// ErrNoRows is returned for a response without a single usable shot row.
var ErrNoRows = errors.New("avscript: response contained no shot rows")

// Runner drives segment-by-segment generation.
type Runner struct {
	Gen      Generator
	MaxChars int
	Retries  int
	Backoff  time.Duration
	Timeout  time.Duration
	// Progress, when set, is called after every segment with the number of segments handled.
	Progress func(done, total int)
	Log      *slog.Logger
}

// NewRunner returns a Runner with the default limits: 3000 characters per segment, two
// retries with a 2 s pause and a 5 minute timeout per attempt.
func NewRunner(gen Generator) *Runner {
	return &Runner{
		Gen:      gen,
		MaxChars: DefaultMaxChars,
		Retries:  2,
		Backoff:  2 * time.Second,
		Timeout:  5 * time.Minute,
		Log:      applog.WithComponent("avscript"),
	}
}

// Run generates the AV script for elements in lang. A failing segment is reported in the result
// and does not stop the others. The returned error is non-nil only when ctx ends the run early;
// the partial result is still returned.
func (r *Runner) Run(ctx context.Context, elements []domain.Element, lang domain.Lang) (Result, error) {
	l := r.Log
	if l == nil {
		l = applog.WithComponent("avscript")
	}
	l = applog.WithOperation(l, "generate")

	segs := Split(elements, r.MaxChars)
	titles := map[int]string{}
	var parts []SegmentRows
	var res Result
	lastShot := ""
	var runErr error
	for i, seg := range segs {
		for n, t := range seg.SceneTitles {
			titles[n] = t
		}
		if runErr == nil && ctx.Err() != nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			res.Failures = append(res.Failures, Failure{Segment: seg.Index, StartScene: seg.StartScene, Error: runErr.Error()})
			continue
		}
		req := Request{Segment: seg.Index, Text: seg.Text, Lang: lang, StartScene: seg.StartScene, LastShot: lastShot}
		rows, attempts, err := r.generate(ctx, req, l)
		if err != nil {
			l.Warn("segment failed", slog.Int("segment", seg.Index), slog.Int("attempts", attempts), slog.Any("err", err))
			res.Failures = append(res.Failures, Failure{Segment: seg.Index, StartScene: seg.StartScene, Attempts: attempts, Error: err.Error()})
			if ctx.Err() != nil {
				runErr = ctx.Err()
			}
		} else {
			parts = append(parts, SegmentRows{Segment: seg, Rows: rows})
			if shots := Renumber(parts); len(shots) > 0 {
				lastShot = shots[len(shots)-1].ShotNumber
			}
		}
		if r.Progress != nil {
			r.Progress(i+1, len(segs))
		}
	}

	shots := Renumber(parts)
	res.Script = domain.AVScript{
		Lang:        lang,
		Segments:    GroupByScene(shots, titles),
		GeneratedAt: domain.Now(),
	}
	for _, f := range res.Failures {
		res.Script.FailedSegments = append(res.Script.FailedSegments, f.Segment)
	}
	l.Info("av script generated", slog.Int("segments", len(segs)), slog.Int("shots", len(shots)), slog.Int("failed", len(res.Failures)))
	return res, runErr
}

func (r *Runner) generate(ctx context.Context, req Request, l *slog.Logger) ([]Row, int, error) {
	attempts := 1 + max(r.Retries, 0)
	var lastErr error
	for a := 1; a <= attempts; a++ {
		rows, err := r.attempt(ctx, req)
		if err == nil {
			return rows, a, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, a, fmt.Errorf("segment %d: %w", req.Segment, ctx.Err())
		}
		if a == attempts {
			break
		}
		l.Debug("retrying segment", slog.Int("segment", req.Segment), slog.Int("attempt", a), slog.Any("err", err))
		if r.Backoff > 0 {
			t := time.NewTimer(r.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, a, fmt.Errorf("segment %d: %w", req.Segment, ctx.Err())
			case <-t.C:
			}
		}
	}
	return nil, attempts, fmt.Errorf("segment %d: %w", req.Segment, lastErr)
}

func (r *Runner) attempt(ctx context.Context, req Request) ([]Row, error) {
	actx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	text, err := r.Gen.GenerateShots(actx, req)
	if err != nil {
		return nil, err
	}
	rows := ParseRows(text)
	for _, row := range rows {
		if row.Audio != "" || row.Visual != "" {
			return rows, nil
		}
	}
	return nil, ErrNoRows
}
