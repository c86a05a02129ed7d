/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package api exposes a studio over HTTP: the editing API used by the web client, the
// external API for companion tools and live change notifications over WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	applog "concepto/internal/log"
	"concepto/internal/storage"
	"concepto/internal/studio"
	"concepto/internal/version"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Options configure the HTTP surface.
type Options struct {
	// APIKey guards /api/external. Empty disables the external API.
	APIKey string
	// Ready reports whether optional dependencies (the Postgres mirror) are reachable.
	Ready func(ctx context.Context) error
	// AllowedOrigins restricts WebSocket origins; empty allows any.
	AllowedOrigins []string
	// AVTimeout bounds background AV generation. Default 30 minutes.
	AVTimeout time.Duration
}

// Server holds the handlers.
type Server struct {
	ws       *studio.Workspace
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewRouter builds the gin engine serving ws.
func NewRouter(ws *studio.Workspace, opts Options) *gin.Engine {
	if opts.AVTimeout <= 0 {
		opts.AVTimeout = 30 * time.Minute
	}
	s := &Server{ws: ws, opts: opts, log: applog.WithComponent("api")}
	s.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: s.checkOrigin}

	r := gin.New()
	r.Use(requestID(), recovery(s.log), accessLog(s.log))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{"^/ws/", "^/media/"})))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", s.ready)
	r.GET("/version", func(c *gin.Context) { c.String(http.StatusOK, version.String()) })
	r.GET("/media/*path", s.media)
	r.GET("/ws/episodes/:id", s.watch)

	api := r.Group("/api")
	{
		api.GET("/studio", s.getStudio)
		api.GET("/search", s.search)

		shows := api.Group("/shows")
		{
			shows.GET("", s.listShows)
			shows.POST("", s.createShow)
			shows.PUT("/:id", s.updateShow)
			shows.DELETE("/:id", s.deleteShow)
			shows.GET("/:id/episodes", s.listEpisodes)
			shows.POST("/:id/episodes", s.createEpisode)
			shows.POST("/:id/packages", s.installPackage)
		}

		assets := api.Group("/assets")
		{
			assets.GET("", s.listAssets)
			assets.POST("", s.createAsset)
			assets.PUT("/:id", s.updateAsset)
			assets.DELETE("/:id", s.deleteAsset)
			assets.GET("/:id/usage", s.whereUsed)
		}

		ep := api.Group("/episodes/:id")
		{
			ep.GET("", s.getEpisode)
			ep.PATCH("", s.updateEpisode)
			ep.DELETE("", s.deleteEpisode)
			ep.POST("/move", s.moveEpisode)
			ep.POST("/import", s.importDocument)
			ep.POST("/save", s.save)
			ep.GET("/history", s.history)
			ep.POST("/undo", s.undo)
			ep.POST("/redo", s.redo)
			ep.GET("/backups", s.listBackups)
			ep.POST("/backups/:backupID/restore", s.restoreBackup)

			ep.PUT("/session", s.setSession)
			ep.PUT("/title", s.setTitle)
			ep.GET("/elements", s.listElements)
			ep.POST("/elements", s.addElement)
			ep.PUT("/elements/:eid", s.updateElement)
			ep.DELETE("/elements/:eid", s.deleteElement)
			ep.PUT("/elements/:eid/type", s.changeType)
			ep.POST("/elements/:eid/review", s.markReviewed)
			ep.POST("/elements/:eid/edit", s.beginEdit)
			ep.DELETE("/elements/:eid/edit", s.endEdit)
			ep.POST("/elements/:eid/comments", s.addComment)
			ep.DELETE("/elements/:eid/comments/:cid", s.deleteComment)
			ep.POST("/elements/:eid/enhance", s.enhance)

			ep.GET("/versions", s.listVersions)
			ep.POST("/versions", s.saveVersion)
			ep.PUT("/versions/:vid", s.renameVersion)
			ep.DELETE("/versions/:vid", s.deleteVersion)
			ep.POST("/versions/:vid/restore", s.restoreVersion)

			ep.POST("/translate", s.translate)
			ep.POST("/draft", s.draft)
			ep.GET("/av", s.getAV)
			ep.POST("/av", s.generateAV)
			ep.GET("/coverage", s.coverage)
			ep.PUT("/shots/:shotID", s.updateShot)
			ep.POST("/shots/:shotID/images", s.uploadShotImages)

			ep.GET("/export", s.export)
			ep.GET("/package", s.exportPackage)
		}

		ext := api.Group("/external", requireAPIKey(s.opts.APIKey))
		{
			ext.GET("/episodes/:id", s.extEpisode)
			ext.GET("/shots/:id", s.extShot)
			ext.PUT("/shots/:id", s.extUpdateShot)
			ext.POST("/shots/:id/images", s.extUploadImages)
		}
	}
	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, CodeNotFound, "no such route") })
	return r
}

func (s *Server) ready(c *gin.Context) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "not ready: %v", err)
			return
		}
	}
	c.String(http.StatusOK, "ready")
}

// media serves stored images. Paths outside the media directory are refused.
func (s *Server) media(c *gin.Context) {
	rel := "media" + c.Param("path")
	abs, err := storage.MediaPath(s.ws.Root(), rel)
	if err != nil {
		fail(c, http.StatusNotFound, CodeNotFound, "no such media")
		return
	}
	if _, err := os.Stat(abs); err != nil {
		fail(c, http.StatusNotFound, CodeNotFound, "no such media")
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(abs)
}

// session names the caller's editing session.
func session(c *gin.Context) string {
	if v := c.GetHeader("X-Session-ID"); v != "" {
		return v
	}
	if v := c.Query("session"); v != "" {
		return v
	}
	return studio.DefaultSession
}
