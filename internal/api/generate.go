/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"concepto/internal/domain"
	"concepto/internal/export"
	applog "concepto/internal/log"
	"concepto/internal/studio"

	"github.com/gin-gonic/gin"
)

func (s *Server) translate(c *gin.Context) {
	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	rep, ch, err := s.ws.TranslateEpisode(c.Request.Context(), c.Param("id"), session(c), domain.Lang(req.Target))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"report": rep, "change": ch})
}

func (s *Server) enhance(c *gin.Context) {
	var req struct {
		Instruction string `json:"instruction" binding:"required,max=4000"`
	}
	if !bind(c, &req) {
		return
	}
	text, ch, err := s.ws.EnhanceElement(c.Request.Context(), c.Param("id"), session(c), c.Param("eid"), req.Instruction)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"content": text, "change": ch})
}

func (s *Server) draft(c *gin.Context) {
	var req struct {
		Lang  string `json:"lang"`
		Brief string `json:"brief" binding:"required,max=20000"`
	}
	if !bind(c, &req) {
		return
	}
	ch, err := s.ws.DraftScreenplay(c.Request.Context(), c.Param("id"), session(c), domain.Lang(req.Lang), req.Brief)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ch)
}

// generateAV regenerates the AV script. With async=true the run continues in the background
// and progress is reported over the episode's WebSocket.
func (s *Server) generateAV(c *gin.Context) {
	id := c.Param("id")
	lang := domain.Lang(c.Query("lang"))
	if _, err := s.ws.Episode(id); err != nil {
		failErr(c, err)
		return
	}
	if c.Query("async") == "true" {
		l := applog.WithOperation(s.log, "generate-av").With(slog.String("episode", id))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.AVTimeout)
			defer cancel()
			if _, err := s.ws.GenerateAV(ctx, id, lang); err != nil {
				l.Warn("background generation ended early", slog.Any("err", err))
			}
		}()
		c.JSON(http.StatusAccepted, Envelope{Success: true, Data: gin.H{"episodeId": id, "status": "running"}})
		return
	}
	res, err := s.ws.GenerateAV(c.Request.Context(), id, lang)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) getAV(c *gin.Context) {
	ep, err := s.ws.Episode(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"avScript": ep.AVScript, "shots": len(ep.AVScript.Shots()), "runtime": ep.AVScript.TotalRuntime()})
}

func (s *Server) coverage(c *gin.Context) {
	cov, err := s.ws.Coverage(c.Param("id"), domain.Lang(c.Query("lang")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, nonNil(cov))
}

func (s *Server) updateShot(c *gin.Context) {
	var p studio.ShotPatch
	if !bind(c, &p) {
		return
	}
	sh, err := s.ws.UpdateShot(c.Param("id"), c.Param("shotID"), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, sh)
}

// imageFields maps multipart field names to shot image roles.
var imageFields = []struct{ field, role string }{
	{"mainImage", studio.ImageMain},
	{"startFrame", studio.ImageStart},
	{"endFrame", studio.ImageEnd},
}

func (s *Server) uploadShotImages(c *gin.Context) {
	sh, stored, done := s.storeImages(c, c.Param("id"), c.Param("shotID"))
	if done {
		ok(c, gin.H{"images": stored, "shot": sh})
	}
}

// storeImages saves every image part of a multipart request onto the shot. At least one of
// mainImage, startFrame and endFrame must be present.
func (s *Server) storeImages(c *gin.Context, episodeID, shotID string) (domain.AVShot, map[string]string, bool) {
	if _, err := s.ws.FindShotIn(episodeID, shotID); err != nil {
		failErr(c, err)
		return domain.AVShot{}, nil, false
	}
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "expected multipart form", err.Error())
		return domain.AVShot{}, nil, false
	}
	stored := map[string]string{}
	for _, f := range imageFields {
		files := form.File[f.field]
		if len(files) == 0 {
			continue
		}
		src, err := files[0].Open()
		if err != nil {
			fail(c, http.StatusBadRequest, CodeBadRequest, "read "+f.field, err.Error())
			return domain.AVShot{}, nil, false
		}
		mf, err := s.ws.SetShotImage(c.Request.Context(), episodeID, shotID, f.role, src)
		src.Close()
		if err != nil {
			failErr(c, fmt.Errorf("%s: %w", f.field, err))
			return domain.AVShot{}, nil, false
		}
		stored[f.field] = "/" + mf.Path
	}
	if len(stored) == 0 {
		fail(c, http.StatusBadRequest, CodeBadRequest, "no image provided", "use mainImage, startFrame or endFrame")
		return domain.AVShot{}, nil, false
	}
	sh, err := s.ws.FindShotIn(episodeID, shotID)
	if err != nil {
		failErr(c, err)
		return domain.AVShot{}, nil, false
	}
	return sh, stored, true
}

func (s *Server) export(c *gin.Context) {
	view, err := export.ParseView(c.DefaultQuery("view", string(export.ViewFull)))
	if err != nil {
		failErr(c, err)
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatHTML)))
	if err != nil {
		failErr(c, err)
		return
	}
	id := c.Param("id")
	b, err := s.ws.Export(c.Request.Context(), id, domain.Lang(c.Query("lang")), view, format)
	if err != nil {
		failErr(c, err)
		return
	}
	if c.Query("download") == "true" {
		name := fmt.Sprintf("%s-%s.%s", strings.ReplaceAll(id, "/", "_"), view, format)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	c.Data(http.StatusOK, export.ContentType(format), b)
}

// exportPackage streams the episode and its shot images as a zip.
func (s *Server) exportPackage(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := s.ws.ExportPackage(c.Param("id"), &buf); err != nil {
		failErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Param("id")+".zip"))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

const maxPackageBytes = 512 << 20

// installPackage adds a packed episode, sent as the raw request body, to the show.
func (s *Server) installPackage(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPackageBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "read body", err.Error())
		return
	}
	if len(data) > maxPackageBytes {
		fail(c, http.StatusRequestEntityTooLarge, CodeBadRequest, "package too large")
		return
	}
	ep, err := s.ws.InstallPackage(c.Request.Context(), c.Param("id"), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, summarize(ep))
}
