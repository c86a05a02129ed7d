/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package studio is the service layer over an opened studio directory. A Workspace owns the
// episodes being edited: every change goes through it so that undo history, debounced
// autosave, the search index and live subscribers stay in step with the document.
package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concepto/internal/autosave"
	"concepto/internal/avscript"
	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/screenplay"
	"concepto/internal/storage"
	"concepto/internal/telemetry"
	"concepto/internal/undo"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font"
)

// ErrNotFound is returned for unknown shows, episodes, assets, shots and backups.
var ErrNotFound = storage.ErrNotFound

// ErrUnavailable is returned when an operation needs a collaborator that is not configured.
var ErrUnavailable = errors.New("studio: collaborator not configured")

// ErrInvalid marks requests rejected because of their arguments.
var ErrInvalid = errors.New("invalid request")

// DefaultSession names the session used when a caller does not identify itself.
const DefaultSession = "default"

// RemoteStore mirrors saved episodes to shared storage.
type RemoteStore interface {
	SaveEpisode(ctx context.Context, ep domain.Episode) (int64, error)
}

// Options configure a Workspace. Zero values select the defaults.
type Options struct {
	AutosaveDelay   time.Duration
	UndoMaxBytes    int
	UndoMaxPerKey   int
	UndoMinInterval time.Duration
	// BackupsKeep is the number of document backups kept per episode. Default 50.
	BackupsKeep     int
	ExportCacheSize int
	MaxMediaBytes   int64
	// CaptionFace draws storyboard PNG captions; nil uses the built-in face.
	CaptionFace font.Face

	Translator Translator
	Enhancer   Enhancer
	Drafter    Drafter
	Shots      avscript.Generator
	// Runner overrides the AV generation runner; its Gen is replaced by Shots.
	Runner *avscript.Runner
	Remote RemoteStore

	Now func() time.Time
}

// Change reports the outcome of a mutation.
type Change struct {
	Applied  bool  `json:"applied"`
	Revision int64 `json:"revision"`
}

// Workspace serves one studio. It is safe for concurrent use; mutations of one episode are
// serialized, different episodes proceed independently.
type Workspace struct {
	h    *storage.StudioHandle
	opts Options
	log  *slog.Logger
	undo *undo.Manager

	// guards h.Studio and open; never held together with an episode lock
	mu   sync.Mutex
	open map[string]*openEpisode

	subMu sync.Mutex
	subs  map[string]map[chan Event]struct{}

	exports *lru.Cache[exportKey, []byte]
}

type openEpisode struct {
	mu       sync.Mutex
	id       string
	ep       domain.Episode
	eng      *screenplay.Engine
	sessions map[string]*screenplay.Session
	// avRev counts AV script changes, which do not move the document revision
	avRev int64
	saver *autosave.Debouncer
}

// Open loads the studio at root.
func Open(root string, opts Options) (*Workspace, error) {
	h, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	return New(h, opts)
}

// New wraps an already opened studio.
func New(h *storage.StudioHandle, opts Options) (*Workspace, error) {
	if h == nil {
		return nil, errors.New("studio handle is nil")
	}
	if opts.BackupsKeep == 0 {
		opts.BackupsKeep = 50
	}
	if opts.ExportCacheSize <= 0 {
		opts.ExportCacheSize = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cache, err := lru.New[exportKey, []byte](opts.ExportCacheSize)
	if err != nil {
		return nil, fmt.Errorf("export cache: %w", err)
	}
	return &Workspace{
		h:       h,
		opts:    opts,
		log:     applog.WithComponent("studio"),
		undo:    undo.NewManager(undo.Config{MaxBytes: opts.UndoMaxBytes, MaxPerKey: opts.UndoMaxPerKey, MinInterval: opts.UndoMinInterval}),
		open:    map[string]*openEpisode{},
		subs:    map[string]map[chan Event]struct{}{},
		exports: cache,
	}, nil
}

// Handle exposes the underlying studio handle (crash recovery, CLI).
func (w *Workspace) Handle() *storage.StudioHandle { return w.h }

// Root returns the studio directory.
func (w *Workspace) Root() string { return w.h.Root }

// Close saves every episode with pending changes.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	eps := make([]*openEpisode, 0, len(w.open))
	for _, oe := range w.open {
		eps = append(eps, oe)
	}
	w.mu.Unlock()
	var errs []error
	for _, oe := range eps {
		if err := oe.saver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("episode %s: %w", oe.id, err))
		}
	}
	return errors.Join(errs...)
}

// episode returns the open state of id, loading it from the studio on first use.
func (w *Workspace) episode(id string) (*openEpisode, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if oe, ok := w.open[id]; ok {
		return oe, nil
	}
	src := w.h.Studio.FindEpisode(id)
	if src == nil {
		return nil, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	oe := &openEpisode{id: id, ep: cloneEpisode(*src), sessions: map[string]*screenplay.Session{}}
	oe.eng = screenplay.New(&oe.ep.Screenplay)
	oe.saver = autosave.New(func(ctx context.Context) error { return w.saveEpisode(ctx, oe) }, autosave.Options{
		Delay: w.opts.AutosaveDelay,
		OnError: func(err error) {
			w.publish(Event{Type: EventSaveFailed, EpisodeID: id, Error: err.Error()})
		},
	})
	w.open[id] = oe
	return oe, nil
}

func (oe *openEpisode) session(id string) *screenplay.Session {
	if id == "" {
		id = DefaultSession
	}
	s, ok := oe.sessions[id]
	if !ok {
		s = screenplay.NewSession(oe.ep.Screenplay.PrimaryLang)
		oe.sessions[id] = s
	}
	return s
}

// Mutate runs fn against the episode's engine with the caller's session. When the document
// revision moves, the previous state is pushed onto the undo history, autosave is scheduled
// and subscribers are notified. op names the operation in events and logs.
func (w *Workspace) Mutate(episodeID, sessionID, op string, fn func(*screenplay.Engine, *screenplay.Session) bool) (Change, error) {
	oe, err := w.episode(episodeID)
	if err != nil {
		return Change{}, err
	}
	oe.mu.Lock()
	before, err := json.Marshal(oe.ep.Screenplay)
	if err != nil {
		oe.mu.Unlock()
		return Change{}, fmt.Errorf("snapshot episode %s: %w", episodeID, err)
	}
	rev := oe.eng.Revision()
	ch := Change{Applied: fn(oe.eng, oe.session(sessionID))}
	ch.Revision = oe.eng.Revision()
	changed := ch.Revision != rev
	if changed {
		w.undo.Push(undo.Snapshot{Key: episodeID, Blob: before, TS: w.opts.Now()})
		oe.ep.UpdatedAt = domain.TS(w.opts.Now())
	}
	oe.mu.Unlock()
	if changed {
		w.changed(oe, op, ch.Revision)
	}
	return ch, nil
}

// View runs fn against the episode's engine without recording a change. fn must not mutate.
func (w *Workspace) View(episodeID, sessionID string, fn func(*screenplay.Engine, *screenplay.Session)) error {
	oe, err := w.episode(episodeID)
	if err != nil {
		return err
	}
	oe.mu.Lock()
	defer oe.mu.Unlock()
	fn(oe.eng, oe.session(sessionID))
	return nil
}

// SetSessionLang switches the language a session edits in.
func (w *Workspace) SetSessionLang(episodeID, sessionID string, lang domain.Lang) error {
	oe, err := w.episode(episodeID)
	if err != nil {
		return err
	}
	oe.mu.Lock()
	defer oe.mu.Unlock()
	d := oe.ep.Screenplay
	if lang != d.PrimaryLang && lang != d.SecondaryLang {
		return fmt.Errorf("%w: language %q is not part of episode %s", ErrInvalid, lang, episodeID)
	}
	oe.session(sessionID).Lang = lang
	return nil
}

// Episode returns a copy of the episode including unsaved edits.
func (w *Workspace) Episode(id string) (domain.Episode, error) {
	w.mu.Lock()
	src := w.h.Studio.FindEpisode(id)
	if src == nil {
		w.mu.Unlock()
		return domain.Episode{}, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	out := cloneEpisode(*src)
	oe := w.open[id]
	w.mu.Unlock()
	if oe != nil {
		oe.mu.Lock()
		out.Screenplay = oe.ep.Screenplay.Clone()
		out.AVScript = cloneAV(oe.ep.AVScript)
		out.UpdatedAt = oe.ep.UpdatedAt
		oe.mu.Unlock()
	}
	return out, nil
}

// Save writes the episode now, superseding any pending autosave. On failure the in-memory
// document is kept and the call can be retried.
func (w *Workspace) Save(ctx context.Context, episodeID string) error {
	oe, err := w.episode(episodeID)
	if err != nil {
		return err
	}
	return oe.saver.Flush(ctx)
}

// Dirty reports whether the episode has changes not yet written.
func (w *Workspace) Dirty(episodeID string) bool {
	w.mu.Lock()
	oe := w.open[episodeID]
	w.mu.Unlock()
	return oe != nil && oe.saver.Pending()
}

func (w *Workspace) saveEpisode(ctx context.Context, oe *openEpisode) error {
	l := applog.WithEpisode(applog.WithOperation(w.log, "save"), oe.id)
	oe.mu.Lock()
	doc := oe.ep.Screenplay.Clone()
	av := cloneAV(oe.ep.AVScript)
	updated := oe.ep.UpdatedAt
	oe.mu.Unlock()

	w.mu.Lock()
	dst := w.h.Studio.FindEpisode(oe.id)
	if dst == nil {
		w.mu.Unlock()
		return fmt.Errorf("episode %s: %w", oe.id, ErrNotFound)
	}
	dst.Screenplay, dst.AVScript, dst.UpdatedAt = doc, av, updated
	if err := storage.Save(w.h); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("save episode %s: %w", oe.id, err)
	}
	ep := cloneEpisode(*dst)
	if err := storage.RefreshEpisode(ctx, w.h.Root, w.h.Studio, oe.id); err != nil {
		l.Warn("index refresh failed", slog.Any("err", err))
	}
	w.mu.Unlock()

	if data, err := json.Marshal(doc); err == nil {
		if err := storage.SaveDocumentBackup(ctx, w.h, oe.id, doc.Revision, data, w.opts.Now()); err != nil {
			l.Warn("document backup failed", slog.Any("err", err))
		} else if w.opts.BackupsKeep > 0 {
			if _, err := storage.PruneDocumentBackups(ctx, w.h, oe.id, w.opts.BackupsKeep); err != nil {
				l.Warn("backup prune failed", slog.Any("err", err))
			}
		}
	}
	if w.opts.Remote != nil {
		if v, err := w.opts.Remote.SaveEpisode(ctx, ep); err != nil {
			l.Warn("remote save failed", slog.Any("err", err))
		} else {
			l.Debug("remote save ok", slog.Int64("version", v))
		}
	}
	l.Info("episode saved", slog.Int64("revision", doc.Revision), slog.Int("elements", len(doc.Slots)))
	telemetry.Event("episode_saved", map[string]any{"elements": len(doc.Slots), "shots": len(av.Shots())})
	w.publish(Event{Type: EventSaved, EpisodeID: oe.id, Revision: doc.Revision})
	return nil
}

// changed schedules autosave and notifies subscribers.
func (w *Workspace) changed(oe *openEpisode, op string, rev int64) {
	oe.saver.Touch()
	w.publish(Event{Type: EventChanged, EpisodeID: oe.id, Revision: rev, Op: op})
}

func cloneEpisode(ep domain.Episode) domain.Episode {
	ep.Screenplay = ep.Screenplay.Clone()
	ep.AVScript = cloneAV(ep.AVScript)
	return ep
}

func cloneAV(av domain.AVScript) domain.AVScript {
	if av.Segments != nil {
		segs := make([]domain.AVSegment, len(av.Segments))
		for i, s := range av.Segments {
			s.Shots = append([]domain.AVShot(nil), s.Shots...)
			segs[i] = s
		}
		av.Segments = segs
	}
	av.FailedSegments = append([]int(nil), av.FailedSegments...)
	return av
}
