/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"concepto/internal/avscript"
	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/screenplay"
	"concepto/internal/telemetry"
)

// Translator translates screenplay markup between languages.
type Translator interface {
	Translate(ctx context.Context, markup string, from, to domain.Lang) (string, error)
}

// Enhancer rewrites one element following a free-form instruction.
type Enhancer interface {
	Enhance(ctx context.Context, t domain.ElementType, content, instruction string, prev *domain.EnhancementThread) (string, *domain.EnhancementThread, error)
}

// Drafter writes a new screenplay as markup.
type Drafter interface {
	DraftScreenplay(ctx context.Context, lang domain.Lang, title, brief string) (string, error)
}

// ErrNothingToTranslate is returned when the source language has no content.
var ErrNothingToTranslate = errors.New("studio: source language has no content")

// TranslateEpisode translates the other language of the document into target and ingests the
// result. No lock is held while the translator runs; edits made meanwhile are overwritten in
// the target language only.
func (w *Workspace) TranslateEpisode(ctx context.Context, episodeID, sessionID string, target domain.Lang) (screenplay.IngestReport, Change, error) {
	if w.opts.Translator == nil {
		return screenplay.IngestReport{}, Change{}, fmt.Errorf("translate: %w", ErrUnavailable)
	}
	var source domain.Lang
	var markup string
	var langErr error
	err := w.View(episodeID, sessionID, func(e *screenplay.Engine, _ *screenplay.Session) {
		d := e.Document()
		switch target {
		case d.PrimaryLang:
			source = d.SecondaryLang
		case d.SecondaryLang:
			source = d.PrimaryLang
		default:
			langErr = fmt.Errorf("%w: language %q is not part of episode %s", ErrInvalid, target, episodeID)
			return
		}
		markup = e.Markup(source)
	})
	if err == nil {
		err = langErr
	}
	if err != nil {
		return screenplay.IngestReport{}, Change{}, err
	}
	if strings.TrimSpace(markup) == "" {
		return screenplay.IngestReport{}, Change{}, ErrNothingToTranslate
	}
	out, err := w.opts.Translator.Translate(ctx, markup, source, target)
	if err != nil {
		return screenplay.IngestReport{}, Change{}, err
	}
	var rep screenplay.IngestReport
	ch, err := w.Mutate(episodeID, sessionID, "translate", func(e *screenplay.Engine, s *screenplay.Session) bool {
		rep = e.IngestTranslation(s, target, out)
		return true
	})
	if err != nil {
		return rep, ch, err
	}
	applog.WithEpisode(applog.WithOperation(w.log, "translate"), episodeID).Info("translation ingested",
		slog.String("from", string(source)), slog.String("to", string(target)),
		slog.Int("matched", rep.Matched), slog.Int("fallbacks", rep.Fallbacks), slog.Int("missing", len(rep.Missing)))
	return rep, ch, nil
}

// EnhanceElement asks the enhancer to rewrite one element and stores the answer with its thread.
// It returns the new text.
func (w *Workspace) EnhanceElement(ctx context.Context, episodeID, sessionID, elementID, instruction string) (string, Change, error) {
	if w.opts.Enhancer == nil {
		return "", Change{}, fmt.Errorf("enhance: %w", ErrUnavailable)
	}
	var (
		found   bool
		typ     domain.ElementType
		content string
		thread  *domain.EnhancementThread
	)
	err := w.View(episodeID, sessionID, func(e *screenplay.Engine, s *screenplay.Session) {
		slot, ok := e.Slot(elementID)
		if !ok {
			return
		}
		found, typ = true, slot.Type
		p := slot.Primary
		lang, _, tagged := domain.SplitElementID(elementID)
		if !tagged {
			lang = s.Lang
		}
		d := e.Document()
		if lang == d.SecondaryLang && lang != d.PrimaryLang {
			p = slot.Secondary
		}
		content, thread = p.Content, p.EnhancementThread.Clone()
	})
	if err != nil {
		return "", Change{}, err
	}
	if !found {
		return "", Change{}, fmt.Errorf("element %s: %w", elementID, ErrNotFound)
	}
	text, th, err := w.opts.Enhancer.Enhance(ctx, typ, content, instruction, thread)
	if err != nil {
		return "", Change{}, err
	}
	ch, err := w.Mutate(episodeID, sessionID, "enhance", func(e *screenplay.Engine, s *screenplay.Session) bool {
		return e.IngestEnhancement(s, elementID, text, th)
	})
	return text, ch, err
}

// DraftScreenplay replaces the document body with a generated draft written in lang.
func (w *Workspace) DraftScreenplay(ctx context.Context, episodeID, sessionID string, lang domain.Lang, brief string) (Change, error) {
	if w.opts.Drafter == nil {
		return Change{}, fmt.Errorf("draft: %w", ErrUnavailable)
	}
	ep, err := w.Episode(episodeID)
	if err != nil {
		return Change{}, err
	}
	title := ep.Screenplay.Title(lang)
	if title == "" {
		title = ep.Title
	}
	out, err := w.opts.Drafter.DraftScreenplay(ctx, lang, title, brief)
	if err != nil {
		return Change{}, err
	}
	blocks := screenplay.ParseMarkup(out)
	if len(blocks) == 0 {
		return Change{}, errors.New("draft: response contained no screenplay blocks")
	}
	return w.Mutate(episodeID, sessionID, "draft", func(e *screenplay.Engine, s *screenplay.Session) bool {
		e.ReplaceAll(s, lang, blocks)
		return true
	})
}

// GenerateAV builds the AV script of the episode from the screenplay in lang. Segments that
// fail are reported in the result while the shots of the others are kept; the script is
// stored whenever at least one shot was produced.
func (w *Workspace) GenerateAV(ctx context.Context, episodeID string, lang domain.Lang) (avscript.Result, error) {
	if w.opts.Shots == nil {
		return avscript.Result{}, fmt.Errorf("generate av: %w", ErrUnavailable)
	}
	var elems []domain.Element
	if err := w.View(episodeID, "", func(e *screenplay.Engine, _ *screenplay.Session) {
		if lang == "" {
			lang = e.Document().PrimaryLang
		}
		elems = e.Elements(lang)
	}); err != nil {
		return avscript.Result{}, err
	}
	r := avscript.NewRunner(w.opts.Shots)
	if w.opts.Runner != nil {
		cp := *w.opts.Runner
		cp.Gen = w.opts.Shots
		r = &cp
	}
	r.Progress = func(done, total int) {
		w.publish(Event{Type: EventAVProgress, EpisodeID: episodeID, Done: done, Total: total})
	}
	res, runErr := r.Run(ctx, elems, lang)
	shots := len(res.Script.Shots())
	if shots > 0 {
		oe, err := w.episode(episodeID)
		if err != nil {
			return res, err
		}
		oe.mu.Lock()
		oe.ep.AVScript = res.Script
		oe.avRev++
		oe.ep.UpdatedAt = domain.TS(w.opts.Now())
		oe.mu.Unlock()
		oe.saver.Touch()
	}
	telemetry.Event("av_generated", map[string]any{"shots": shots, "failed": len(res.Failures)})
	ev := Event{Type: EventAVGenerated, EpisodeID: episodeID, Total: shots}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	w.publish(ev)
	return res, runErr
}

// Coverage compares the screenplay scenes in lang with the AV shots. An empty lang selects
// the primary language.
func (w *Workspace) Coverage(episodeID string, lang domain.Lang) ([]avscript.SceneCoverage, error) {
	ep, err := w.Episode(episodeID)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = ep.Screenplay.PrimaryLang
	}
	return avscript.Coverage(ep.Screenplay.Elements(lang), ep.AVScript), nil
}
