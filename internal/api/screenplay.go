/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"io"
	"net/http"

	"concepto/internal/domain"
	"concepto/internal/screenplay"
	"concepto/internal/storage"
	"concepto/internal/studio"

	"github.com/gin-gonic/gin"
)

const maxImportBytes = 10 << 20

// mutate runs fn through the workspace and answers with the change and extra fields.
func (s *Server) mutate(c *gin.Context, op string, fn func(*screenplay.Engine, *screenplay.Session) bool) (studio.Change, bool) {
	ch, err := s.ws.Mutate(c.Param("id"), session(c), op, fn)
	if err != nil {
		failErr(c, err)
		return ch, false
	}
	return ch, true
}

// element checks that the element in the path exists and answers 404 otherwise.
func (s *Server) element(c *gin.Context) (string, bool) {
	id := c.Param("eid")
	found := false
	err := s.ws.View(c.Param("id"), session(c), func(e *screenplay.Engine, _ *screenplay.Session) {
		found = e.Index(id) >= 0
	})
	if err != nil {
		failErr(c, err)
		return "", false
	}
	if !found {
		fail(c, http.StatusNotFound, CodeNotFound, "element "+id+" not found")
		return "", false
	}
	return id, true
}

type elementsView struct {
	Lang     domain.Lang      `json:"lang"`
	Title    string           `json:"title"`
	Revision int64            `json:"revision"`
	Editing  string           `json:"editing,omitempty"`
	Elements []domain.Element `json:"elements"`
}

func (s *Server) listElements(c *gin.Context) {
	var out elementsView
	known := true
	err := s.ws.View(c.Param("id"), session(c), func(e *screenplay.Engine, ss *screenplay.Session) {
		lang := domain.Lang(c.Query("lang"))
		if lang == "" {
			lang = ss.Lang
		}
		d := e.Document()
		if lang != d.PrimaryLang && lang != d.SecondaryLang {
			known = false
			return
		}
		out = elementsView{Lang: lang, Title: d.Title(lang), Revision: e.Revision(), Editing: ss.Editing}
		out.Elements = e.Elements(lang)
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if !known {
		fail(c, http.StatusBadRequest, CodeBadRequest, "language "+c.Query("lang")+" is not part of this episode")
		return
	}
	ok(c, out)
}

func (s *Server) setSession(c *gin.Context) {
	var req struct {
		Lang string `json:"lang" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := s.ws.SetSessionLang(c.Param("id"), session(c), domain.Lang(req.Lang)); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"session": session(c), "lang": req.Lang})
}

func (s *Server) setTitle(c *gin.Context) {
	var req struct {
		Lang  string `json:"lang" binding:"required"`
		Title string `json:"title" binding:"max=300"`
	}
	if !bind(c, &req) {
		return
	}
	ch, done := s.mutate(c, "title", func(e *screenplay.Engine, _ *screenplay.Session) bool {
		e.SetTitle(domain.Lang(req.Lang), req.Title)
		return true
	})
	if done {
		ok(c, ch)
	}
}

func (s *Server) addElement(c *gin.Context) {
	var req struct {
		Type    string `json:"type" binding:"required,oneof=scene-setting character action dialogue parenthetical general"`
		AfterID string `json:"afterId"`
		Content string `json:"content"`
	}
	if !bind(c, &req) {
		return
	}
	var id string
	ch, done := s.mutate(c, "add", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		id = e.AddElement(ss, domain.ElementType(req.Type), req.AfterID)
		if id != "" && req.Content != "" {
			e.UpdateContent(ss, id, req.Content)
		}
		return id != ""
	})
	if !done {
		return
	}
	if id == "" {
		fail(c, http.StatusNotFound, CodeNotFound, "element "+req.AfterID+" not found")
		return
	}
	created(c, gin.H{"id": id, "change": ch})
}

func (s *Server) updateElement(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	var req struct {
		Content *string `json:"content" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	ch, done := s.mutate(c, "update", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		return e.UpdateContent(ss, id, *req.Content)
	})
	if done {
		ok(c, ch)
	}
}

// deleteElement removes an element from both languages. The caller must confirm with
// confirm=true; otherwise the request is refused with 409 and nothing changes.
func (s *Server) deleteElement(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	confirmed := c.Query("confirm") == "true"
	if !confirmed {
		fail(c, http.StatusConflict, CodeConflict, "deleting an element removes it in both languages; repeat with confirm=true")
		return
	}
	ch, done := s.mutate(c, "delete", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		prev := ss.Confirm
		ss.Confirm = func(string) bool { return confirmed }
		defer func() { ss.Confirm = prev }()
		return e.DeleteElement(ss, id)
	})
	if done {
		ok(c, ch)
	}
}

func (s *Server) changeType(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	var req struct {
		Type string `json:"type" binding:"required,oneof=scene-setting character action dialogue parenthetical general"`
	}
	if !bind(c, &req) {
		return
	}
	ch, done := s.mutate(c, "retype", func(e *screenplay.Engine, _ *screenplay.Session) bool {
		return e.ChangeType(id, domain.ElementType(req.Type))
	})
	if done {
		ok(c, ch)
	}
}

func (s *Server) markReviewed(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	ch, done := s.mutate(c, "review", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		return e.MarkReviewed(ss, id)
	})
	if done {
		ok(c, ch)
	}
}

func (s *Server) beginEdit(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	ch, done := s.mutate(c, "begin-edit", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		return e.BeginEdit(ss, id)
	})
	if done {
		ok(c, ch)
	}
}

// endEdit closes the edit session on an element; Applied tells whether the net edit flagged it.
func (s *Server) endEdit(c *gin.Context) {
	id := c.Param("eid")
	ch, done := s.mutate(c, "end-edit", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		return e.EndEdit(ss, id)
	})
	if done {
		ok(c, ch)
	}
}

func (s *Server) addComment(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	var req struct {
		Author string   `json:"author" binding:"max=120"`
		Text   string   `json:"text" binding:"required,max=10000"`
		Images []string `json:"images" binding:"max=10"`
	}
	if !bind(c, &req) {
		return
	}
	var cid string
	ch, done := s.mutate(c, "comment", func(e *screenplay.Engine, _ *screenplay.Session) bool {
		cid = e.AddComment(id, req.Author, req.Text, req.Images)
		return cid != ""
	})
	if !done {
		return
	}
	if cid == "" {
		fail(c, http.StatusBadRequest, CodeBadRequest, "comment text is blank")
		return
	}
	created(c, gin.H{"commentId": cid, "change": ch})
}

func (s *Server) deleteComment(c *gin.Context) {
	id, found := s.element(c)
	if !found {
		return
	}
	ch, done := s.mutate(c, "uncomment", func(e *screenplay.Engine, _ *screenplay.Session) bool {
		return e.DeleteComment(id, c.Param("cid"))
	})
	if !done {
		return
	}
	if !ch.Applied {
		fail(c, http.StatusNotFound, CodeNotFound, "comment "+c.Param("cid")+" not found")
		return
	}
	ok(c, ch)
}

func (s *Server) listVersions(c *gin.Context) {
	var out []domain.StableVersion
	err := s.ws.View(c.Param("id"), session(c), func(e *screenplay.Engine, _ *screenplay.Session) {
		out = e.StableVersions()
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, nonNil(out))
}

type versionRequest struct {
	Name string `json:"name" binding:"max=200"`
}

func (s *Server) saveVersion(c *gin.Context) {
	var req versionRequest
	if !bind(c, &req) {
		return
	}
	var vid string
	ch, done := s.mutate(c, "save-version", func(e *screenplay.Engine, _ *screenplay.Session) bool {
		vid = e.SaveStableVersion(req.Name)
		return true
	})
	if done {
		created(c, gin.H{"versionId": vid, "change": ch})
	}
}

func (s *Server) renameVersion(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=200"`
	}
	if !bind(c, &req) {
		return
	}
	s.versionOp(c, "rename-version", func(e *screenplay.Engine, _ *screenplay.Session, vid string) bool {
		return e.RenameStableVersion(vid, req.Name)
	})
}

func (s *Server) deleteVersion(c *gin.Context) {
	s.versionOp(c, "delete-version", func(e *screenplay.Engine, _ *screenplay.Session, vid string) bool {
		return e.DeleteStableVersion(vid)
	})
}

func (s *Server) restoreVersion(c *gin.Context) {
	s.versionOp(c, "restore-version", func(e *screenplay.Engine, ss *screenplay.Session, vid string) bool {
		return e.RestoreStableVersion(ss, vid)
	})
}

func (s *Server) versionOp(c *gin.Context, op string, fn func(*screenplay.Engine, *screenplay.Session, string) bool) {
	vid := c.Param("vid")
	ch, done := s.mutate(c, op, func(e *screenplay.Engine, ss *screenplay.Session) bool {
		return fn(e, ss, vid)
	})
	if !done {
		return
	}
	if !ch.Applied {
		fail(c, http.StatusNotFound, CodeNotFound, "version "+vid+" not found")
		return
	}
	ok(c, ch)
}

func (s *Server) history(c *gin.Context) {
	if _, err := s.ws.Episode(c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, s.ws.History(c.Param("id")))
}

func (s *Server) undo(c *gin.Context) {
	ch, err := s.ws.Undo(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"change": ch, "history": s.ws.History(c.Param("id"))})
}

func (s *Server) redo(c *gin.Context) {
	ch, err := s.ws.Redo(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"change": ch, "history": s.ws.History(c.Param("id"))})
}

func (s *Server) save(c *gin.Context) {
	if err := s.ws.Save(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"saved": true})
}

func (s *Server) listBackups(c *gin.Context) {
	limit, _ := paging(c)
	bs, err := s.ws.Backups(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	type item struct {
		ID        int64            `json:"id"`
		Revision  int64            `json:"revision"`
		CreatedAt domain.Timestamp `json:"createdAt"`
		Size      int              `json:"size"`
	}
	out := make([]item, 0, len(bs))
	for _, b := range bs {
		out = append(out, item{ID: b.ID, Revision: b.Revision, CreatedAt: domain.TS(b.TS), Size: len(b.Data)})
	}
	ok(c, out)
}

func (s *Server) restoreBackup(c *gin.Context) {
	id := int64(atoi(c.Param("backupID")))
	if id <= 0 {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid backup id")
		return
	}
	ch, err := s.ws.RestoreBackup(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ch)
}

// importDocument replaces the screenplay from an upload. format=json takes a document in
// either stored format, format=markup takes translation markup and anything else is read
// as plain text in lang.
func (s *Server) importDocument(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "read body", err.Error())
		return
	}
	if len(data) > maxImportBytes {
		fail(c, http.StatusRequestEntityTooLarge, CodeBadRequest, "import too large")
		return
	}
	ep, err := s.ws.Episode(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	lang := domain.Lang(c.DefaultQuery("lang", string(ep.Screenplay.PrimaryLang)))
	switch c.DefaultQuery("format", "plain") {
	case "json":
		doc, err := storage.DecodeDocument(data, ep.Screenplay.PrimaryLang, ep.Screenplay.SecondaryLang)
		if err != nil {
			failErr(c, err)
			return
		}
		ch, err := s.ws.ReplaceDocument(ep.ID, doc)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, gin.H{"change": ch, "elements": len(doc.Slots)})
	case "markup":
		blocks := screenplay.ParseMarkup(string(data))
		if len(blocks) == 0 {
			fail(c, http.StatusBadRequest, CodeBadRequest, "no screenplay blocks found")
			return
		}
		s.replaceBlocks(c, lang, blocks, nil)
	default:
		blocks, problems := screenplay.ImportPlainText(string(data))
		if len(blocks) == 0 {
			fail(c, http.StatusBadRequest, CodeBadRequest, "no screenplay content found")
			return
		}
		s.replaceBlocks(c, lang, blocks, problems)
	}
}

func (s *Server) replaceBlocks(c *gin.Context, lang domain.Lang, blocks []screenplay.Block, problems []screenplay.ImportError) {
	ch, done := s.mutate(c, "import", func(e *screenplay.Engine, ss *screenplay.Session) bool {
		e.ReplaceAll(ss, lang, blocks)
		return true
	})
	if done {
		ok(c, gin.H{"change": ch, "elements": len(blocks), "problems": nonNil(problems)})
	}
}
