/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"concepto/internal/ai"
	"concepto/internal/api"
	"concepto/internal/backend"
	"concepto/internal/config"
	"concepto/internal/crash"
	"concepto/internal/domain"
	"concepto/internal/export"
	applog "concepto/internal/log"
	"concepto/internal/screenplay"
	"concepto/internal/storage"
	"concepto/internal/studio"
	"concepto/internal/telemetry"
	"concepto/internal/textlayout"
	"concepto/internal/version"

	"github.com/gin-gonic/gin"
	"golang.org/x/image/font"
)

func usage() {
	fmt.Println("Concepto studio server")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  concepto version|-v|--version                     Show version")
	fmt.Println("  concepto init <dir> <name>                        Create a new studio at <dir>")
	fmt.Println("  concepto open <dir>                               Print a studio summary")
	fmt.Println("  concepto serve [<dir>]                            Serve the studio over HTTP")
	fmt.Println("  concepto import <dir> <showID> <file> [title]     Add an episode from .txt, .fountain or .json")
	fmt.Println("  concepto export <dir> <episodeID> <view|web|print> [format] [lang] [out]")
	fmt.Println("  concepto pack <dir> <episodeID> <out.zip>         Write an episode and its images to a zip")
	fmt.Println("  concepto unpack <dir> <showID> <pack.zip>         Add a packed episode to a show")
	fmt.Println("  concepto pull <dir> <baseURL> <episodeID>         Copy an episode from another studio's external API")
	fmt.Println("  concepto mirror list|search <text>                List or search episodes mirrored to Postgres")
	fmt.Println("  concepto mirror restore <dir> <episodeID>         Replace a local screenplay with its mirrored copy")
	fmt.Println("  concepto secret <gemini|external> [value]         Store or clear a secret in the OS keychain")
}

func fatal(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func need(args []string, n int, what string) {
	if len(args) < n {
		fmt.Println(what)
		usage()
		os.Exit(2)
	}
}

func main() {
	_ = config.LoadDotEnv()
	cfg, secrets, err := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	if cfg.General.TelemetryOptIn {
		tc := telemetry.FromEnv()
		tc.OptIn = true
		telemetry.SetDefault(telemetry.New(tc))
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Concepto studio server")
		fmt.Println(version.String())
	case "init":
		need(args, 4, "init requires <dir> and <name>")
		abs, _ := filepath.Abs(args[2])
		l.Info("init studio", slog.String("root", abs), slog.String("name", args[3]))
		if _, err := storage.InitStudio(abs, domain.Studio{Name: args[3]}); err != nil {
			fatal(l, "init failed", err)
		}
		fmt.Println("Created studio at", abs)
	case "open":
		need(args, 3, "open requires <dir>")
		abs, _ := filepath.Abs(args[2])
		h, err := storage.Open(abs)
		if err != nil {
			fatal(l, "open failed", err)
		}
		fmt.Printf("Opened studio: %s\n", h.Studio.Name)
		fmt.Printf("Shows: %d  Episodes: %d  Assets: %d\n", len(h.Studio.Shows), len(h.Studio.Episodes), len(h.Studio.Assets))
		for _, ep := range h.Studio.Episodes {
			fmt.Printf("  %s  #%d %s (%d elements, %d shots)\n", ep.ID, ep.Number, ep.Title, len(ep.Screenplay.Slots), len(ep.AVScript.Shots()))
		}
		fmt.Println("Root:", h.Root)
	case "serve":
		dir := cfg.General.StudioDir
		if len(args) >= 3 {
			dir = args[2]
		}
		if dir == "" {
			fmt.Println("serve requires <dir> or general.studio_dir in the config")
			usage()
			os.Exit(2)
		}
		if err := serve(cfg, secrets, dir); err != nil {
			fatal(l, "serve failed", err)
		}
	case "import":
		need(args, 5, "import requires <dir> <showID> <file>")
		title := ""
		if len(args) >= 6 {
			title = args[5]
		}
		withWorkspace(l, args[2], studio.Options{}, func(ctx context.Context, ws *studio.Workspace) error {
			ep, n, err := importEpisode(ctx, ws, args[3], args[4], title)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d elements into episode %s (%s)\n", n, ep.ID, ep.Title)
			return nil
		})
	case "export":
		need(args, 5, "export requires <dir> <episodeID> <view|web|print>")
		opt := func(i int, def string) string {
			if len(args) > i {
				return args[i]
			}
			return def
		}
		withWorkspace(l, args[2], studio.Options{CaptionFace: captionFace(l, cfg.Export)}, func(ctx context.Context, ws *studio.Workspace) error {
			return exportEpisode(ctx, ws, args[3], args[4], opt(5, "pdf"), domain.Lang(opt(6, "")), opt(7, ""))
		})
	case "pack":
		need(args, 5, "pack requires <dir> <episodeID> <out.zip>")
		withWorkspace(l, args[2], studio.Options{}, func(ctx context.Context, ws *studio.Workspace) error {
			f, err := os.Create(args[4])
			if err != nil {
				return err
			}
			n, err := ws.ExportPackage(args[3], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Printf("Packed episode %s with %d images into %s\n", args[3], n, args[4])
			return nil
		})
	case "unpack":
		need(args, 5, "unpack requires <dir> <showID> <pack.zip>")
		withWorkspace(l, args[2], studio.Options{}, func(ctx context.Context, ws *studio.Workspace) error {
			f, err := os.Open(args[4])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}
			ep, err := ws.InstallPackage(ctx, args[3], f, st.Size())
			if err != nil {
				return err
			}
			fmt.Printf("Installed episode %s (#%d %s)\n", ep.ID, ep.Number, ep.Title)
			return nil
		})
	case "pull":
		need(args, 5, "pull requires <dir> <baseURL> <episodeID>")
		withWorkspace(l, args[2], studio.Options{}, func(ctx context.Context, ws *studio.Workspace) error {
			return pull(ctx, ws, backend.NewClient(args[3], secrets.ExternalKey), args[4])
		})
	case "mirror":
		need(args, 3, "mirror requires list, search or restore")
		if err := mirror(l, args[2:]); err != nil {
			fatal(l, "mirror failed", err)
		}
	case "secret":
		need(args, 3, "secret requires <gemini|external>")
		key := map[string]string{"gemini": config.KeyGemini, "external": config.KeyExternal}[args[2]]
		value := ""
		if len(args) >= 4 {
			value = args[3]
		}
		if err := config.SetSecret(key, value); err != nil {
			fatal(l, "secret failed", err)
		}
		if value == "" {
			fmt.Println("Removed", args[2], "secret")
		} else {
			fmt.Println("Stored", args[2], "secret")
		}
	default:
		usage()
	}
}

// withWorkspace opens the studio at dir, runs fn and saves everything it changed.
func withWorkspace(l *slog.Logger, dir string, opts studio.Options, fn func(context.Context, *studio.Workspace) error) {
	abs, _ := filepath.Abs(dir)
	ws, err := studio.Open(abs, opts)
	if err != nil {
		fatal(l, "open failed", err)
	}
	defer crash.Recover(ws.Handle(), ws.Close)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := fn(ctx, ws)
	if err := ws.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		fatal(l, "command failed", runErr)
	}
}

func serve(cfg config.AppConfig, secrets config.Secrets, dir string) error {
	l := applog.WithComponent("server")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := studio.Options{
		AutosaveDelay: cfg.AutosaveDelay(),
		BackupsKeep:   cfg.Storage.BackupsKeep,
		MaxMediaBytes: int64(cfg.Storage.MaxMediaMB) << 20,
		CaptionFace:   captionFace(l, cfg.Export),
	}
	if secrets.GeminiAPIKey != "" {
		model, err := ai.NewGenAI(ctx, secrets.GeminiAPIKey, cfg.AI.Model, cfg.AI.Temperature)
		if err != nil {
			return fmt.Errorf("connect model: %w", err)
		}
		aiOpts := ai.DefaultOptions()
		aiOpts.Retries = cfg.AI.Retries
		aiOpts.Timeout = cfg.AI.CallTimeout()
		client := ai.NewClient(model, aiOpts)
		opts.Translator, opts.Enhancer, opts.Drafter, opts.Shots = client, client, client, client
		l.Info("generative features enabled", slog.String("model", cfg.AI.Model))
	} else {
		l.Warn("no Gemini API key configured; translation, enhancement and generation are disabled")
	}

	var pg *backend.PGStore
	if dsn := backend.DSNFromEnv(); cfg.Storage.Postgres && dsn != "" {
		var err error
		if pg, err = backend.Open(ctx, dsn); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		opts.Remote = pg
	} else if cfg.Storage.Postgres {
		l.Warn("storage.postgres is set but CONCEPTO_PG_DSN and DATABASE_URL are empty")
	}

	abs, _ := filepath.Abs(dir)
	ws, err := studio.Open(abs, opts)
	if err != nil {
		return err
	}
	defer crash.Recover(ws.Handle(), ws.Close)

	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	apiOpts := api.Options{APIKey: secrets.ExternalKey, AllowedOrigins: cfg.Server.AllowedOrigins, AVTimeout: cfg.Server.AVTimeout()}
	if pg != nil {
		apiOpts.Ready = pg.Ready
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(ws, apiOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		l.Info("listening", slog.String("addr", srv.Addr), slog.String("studio", ws.Handle().Studio.Name))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = ws.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		l.Info("shutting down")
	}
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		l.Warn("http shutdown", slog.Any("err", err))
	}
	return ws.Close(sctx)
}

func captionFace(l *slog.Logger, c config.ExportConfig) font.Face {
	if c.CaptionFont == "" {
		return nil
	}
	face, err := textlayout.LoadFace(c.CaptionFont, c.CaptionSizePt)
	if err != nil {
		l.Warn("caption font not loaded, using the built-in face", slog.Any("err", err))
		return nil
	}
	return face
}

func importEpisode(ctx context.Context, ws *studio.Workspace, showID, file, title string) (domain.Episode, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return domain.Episode{}, 0, err
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	if strings.EqualFold(filepath.Ext(file), ".json") {
		doc, err := storage.DecodeDocument(data, "pl", "en")
		if err != nil {
			return domain.Episode{}, 0, err
		}
		ep, err := ws.AddEpisodeWithDocument(ctx, showID, title, 0, doc)
		return ep, len(doc.Slots), err
	}
	blocks, problems := screenplay.ImportPlainText(string(data))
	for _, p := range problems {
		fmt.Printf("line %d: %s\n", p.Line, p.Message)
	}
	if len(blocks) == 0 {
		return domain.Episode{}, 0, errors.New("no screenplay content found")
	}
	ep, err := ws.AddEpisode(ctx, showID, title, 0, "", "")
	if err != nil {
		return ep, 0, err
	}
	if _, err := ws.Mutate(ep.ID, "", "import", func(e *screenplay.Engine, s *screenplay.Session) bool {
		e.ReplaceAll(s, ep.Screenplay.PrimaryLang, blocks)
		return true
	}); err != nil {
		return ep, 0, err
	}
	return ep, len(blocks), nil
}

func exportEpisode(ctx context.Context, ws *studio.Workspace, episodeID, what, format string, lang domain.Lang, out string) error {
	if out == "" {
		out = filepath.Join(ws.Root(), storage.ExportsDirName)
	}
	if what == string(export.PresetWeb) || what == string(export.PresetPrint) {
		paths, err := ws.ExportPreset(ctx, episodeID, lang, export.PresetName(what), out)
		for _, p := range paths {
			fmt.Println("Wrote", p)
		}
		return err
	}
	view, err := export.ParseView(what)
	if err != nil {
		return err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	b, err := ws.Export(ctx, episodeID, lang, view, f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	path := filepath.Join(out, fmt.Sprintf("%s-%s.%s", episodeID, view, f))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

// pull replaces a local episode with the remote one, or adds it to the first show.
func pull(ctx context.Context, ws *studio.Workspace, c *backend.Client, episodeID string) error {
	remote, err := c.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if _, err := ws.Episode(episodeID); err == nil {
		if _, err := ws.ReplaceDocument(episodeID, remote.Screenplay); err != nil {
			return err
		}
		fmt.Printf("Updated episode %s from %s\n", episodeID, c.BaseURL)
		return nil
	}
	shows := ws.Studio().Shows
	if len(shows) == 0 {
		return errors.New("studio has no show to add the episode to")
	}
	ep, err := ws.AddEpisodeWithDocument(ctx, shows[0].ID, remote.Title, 0, remote.Screenplay)
	if err != nil {
		return err
	}
	fmt.Printf("Added episode %s (%s) to show %s\n", ep.ID, ep.Title, shows[0].Name)
	return nil
}

// mirror runs the read side of the Postgres mirror.
func mirror(l *slog.Logger, args []string) error {
	dsn := backend.DSNFromEnv()
	if dsn == "" {
		return errors.New("set CONCEPTO_PG_DSN or DATABASE_URL")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pg, err := backend.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer pg.Close()

	switch args[0] {
	case "list":
		infos, err := pg.ListEpisodes(ctx)
		if err != nil {
			return err
		}
		for _, in := range infos {
			fmt.Printf("  %s  #%d %s (v%d, %s)\n", in.ID, in.Number, in.Title, in.Version, in.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Printf("%d mirrored episodes\n", len(infos))
	case "search":
		need(args, 2, "mirror search requires <text>")
		res, err := pg.Search(ctx, storage.SearchQuery{Text: strings.Join(args[1:], " "), Limit: 50})
		if err != nil {
			return err
		}
		for _, r := range res {
			fmt.Printf("  %s  %s  %s  %s\n", r.EpisodeID, r.Type, r.Path, r.Snippet)
		}
	case "restore":
		need(args, 3, "mirror restore requires <dir> <episodeID>")
		ep, v, err := pg.LoadEpisode(ctx, args[2])
		if err != nil {
			return err
		}
		withWorkspace(l, args[1], studio.Options{}, func(ctx context.Context, ws *studio.Workspace) error {
			ch, err := ws.ReplaceDocument(ep.ID, ep.Screenplay)
			if err != nil {
				return err
			}
			fmt.Printf("Restored episode %s from mirror version %d (revision %d)\n", ep.ID, v, ch.Revision)
			return nil
		})
	default:
		return fmt.Errorf("unknown mirror command %q", args[0])
	}
	return nil
}
