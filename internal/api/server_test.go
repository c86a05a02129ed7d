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
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concepto/internal/avscript"
	"concepto/internal/domain"
	"concepto/internal/storage"
	"concepto/internal/studio"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

const testKey = "secret-key"

func shotRows(_ context.Context, req avscript.Request) (string, error) {
	return "1.1 | SC01T01 | ada waits in the dark | wide kitchen | 00:03:00\n" +
		"1.2 | SC01T02 | the phone rings | close on phone | 2", nil
}

func newServer(t *testing.T, opts Options) (*gin.Engine, *studio.Workspace, string) {
	t.Helper()
	h, err := storage.InitStudio(t.TempDir(), domain.Studio{Name: "Test Studio"})
	if err != nil {
		t.Fatalf("init studio: %v", err)
	}
	ws, err := studio.New(h, studio.Options{AutosaveDelay: time.Hour, Shots: avscript.GeneratorFunc(shotRows)})
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	ctx := context.Background()
	sh, err := ws.AddShow(ctx, "Pilot Show", "")
	if err != nil {
		t.Fatalf("add show: %v", err)
	}
	ep, err := ws.AddEpisode(ctx, sh.ID, "Night Garden", 0, "", "")
	if err != nil {
		t.Fatalf("add episode: %v", err)
	}
	return NewRouter(ws, opts), ws, ep.ID
}

type response struct {
	Code int
	Body []byte
}

func (r response) data(t *testing.T, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil {
		t.Fatalf("decode envelope %s: %v", r.Body, err)
	}
	if !env.Success {
		t.Fatalf("response not successful: %s", r.Body)
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
}

func (r response) errorBody(t *testing.T) ErrorBody {
	t.Helper()
	var eb ErrorBody
	if err := json.Unmarshal(r.Body, &eb); err != nil {
		t.Fatalf("decode error %s: %v", r.Body, err)
	}
	return eb
}

func call(r http.Handler, method, path string, body any, header ...string) response {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return response{Code: w.Code, Body: w.Body.Bytes()}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	r, _, _ := newServer(t, Options{})
	if res := call(r, http.MethodGet, "/healthz", nil); res.Code != http.StatusOK {
		t.Fatalf("healthz: %d", res.Code)
	}
	res := call(r, http.MethodGet, "/api/nothing", nil)
	if res.Code != http.StatusNotFound || res.errorBody(t).Code != CodeNotFound {
		t.Fatalf("unknown route: %d %s", res.Code, res.Body)
	}
	if res := call(r, http.MethodGet, "/api/episodes/missing", nil); res.Code != http.StatusNotFound {
		t.Fatalf("missing episode: %d", res.Code)
	}
}

func TestElementLifecycle(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	base := "/api/episodes/" + epID

	res := call(r, http.MethodPost, base+"/elements", map[string]string{"type": "scene-setting", "content": "int. kitchen - night"})
	if res.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", res.Code, res.Body)
	}
	var added struct {
		ID string `json:"id"`
	}
	res.data(t, &added)

	res = call(r, http.MethodPost, base+"/elements", map[string]string{"type": "monologue"})
	if res.Code != http.StatusBadRequest || res.errorBody(t).Code != CodeValidation {
		t.Fatalf("bad type: %d %s", res.Code, res.Body)
	}

	res = call(r, http.MethodPut, base+"/elements/"+added.ID, map[string]string{"content": "INT. KITCHEN - NIGHT"})
	if res.Code != http.StatusOK {
		t.Fatalf("update: %d %s", res.Code, res.Body)
	}

	var view elementsView
	call(r, http.MethodGet, base+"/elements", nil).data(t, &view)
	if len(view.Elements) != 1 || view.Elements[0].Content != "INT. KITCHEN - NIGHT" || view.Lang != "pl" {
		t.Fatalf("unexpected elements: %+v", view)
	}

	if res := call(r, http.MethodDelete, base+"/elements/"+added.ID, nil); res.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete: %d", res.Code)
	}
	if res := call(r, http.MethodDelete, base+"/elements/nope?confirm=true", nil); res.Code != http.StatusNotFound {
		t.Fatalf("missing delete: %d", res.Code)
	}
	if res := call(r, http.MethodDelete, base+"/elements/"+added.ID+"?confirm=true", nil); res.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", res.Code, res.Body)
	}
	call(r, http.MethodGet, base+"/elements", nil).data(t, &view)
	if len(view.Elements) != 0 {
		t.Fatalf("element survived delete: %+v", view.Elements)
	}

	var step struct {
		Change studio.Change `json:"change"`
	}
	call(r, http.MethodPost, base+"/undo", nil).data(t, &step)
	if !step.Change.Applied {
		t.Fatalf("undo not applied")
	}
	call(r, http.MethodGet, base+"/elements", nil).data(t, &view)
	if len(view.Elements) != 1 {
		t.Fatalf("undo did not restore the element: %+v", view.Elements)
	}
}

func TestSessionsSeeTheirLanguage(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	base := "/api/episodes/" + epID
	if res := call(r, http.MethodPut, base+"/session", map[string]string{"lang": "en"}, "X-Session-ID", "translator"); res.Code != http.StatusOK {
		t.Fatalf("set session: %d %s", res.Code, res.Body)
	}
	if res := call(r, http.MethodPut, base+"/session", map[string]string{"lang": "de"}); res.Code != http.StatusBadRequest {
		t.Fatalf("unknown language: %d", res.Code)
	}
	var view elementsView
	call(r, http.MethodGet, base+"/elements", nil, "X-Session-ID", "translator").data(t, &view)
	if view.Lang != "en" {
		t.Fatalf("translator session sees %s", view.Lang)
	}
	call(r, http.MethodGet, base+"/elements", nil).data(t, &view)
	if view.Lang != "pl" {
		t.Fatalf("default session sees %s", view.Lang)
	}
	if res := call(r, http.MethodGet, base+"/elements?lang=de", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("listing a foreign language: %d %s", res.Code, res.Body)
	}
}

func TestReadingSecondaryLeavesDocumentUnchanged(t *testing.T) {
	r, ws, epID := newServer(t, Options{})
	base := "/api/episodes/" + epID
	if res := call(r, http.MethodPost, base+"/elements", map[string]string{"type": "action"}); res.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", res.Code, res.Body)
	}
	var pl elementsView
	call(r, http.MethodGet, base+"/elements", nil).data(t, &pl)
	id := "en-" + strings.TrimPrefix(pl.Elements[0].ID, "pl-")
	dirty := ws.Dirty(epID)

	var en elementsView
	call(r, http.MethodGet, base+"/elements?lang=en", nil).data(t, &en)
	if res := call(r, http.MethodPost, base+"/elements/"+id+"/edit", nil); res.Code != http.StatusOK {
		t.Fatalf("begin edit on secondary: %d %s", res.Code, res.Body)
	}
	var after elementsView
	call(r, http.MethodGet, base+"/elements", nil).data(t, &after)
	if len(en.Elements) != 1 || en.Revision != pl.Revision || after.Revision != pl.Revision {
		t.Fatalf("reading the secondary language changed the document: %d/%d vs %d", en.Revision, after.Revision, pl.Revision)
	}
	ep, err := ws.Episode(epID)
	if err != nil {
		t.Fatalf("episode: %v", err)
	}
	if ep.Screenplay.HasSecondary || ws.Dirty(epID) != dirty {
		t.Fatalf("read path initialized the secondary language")
	}
}

func TestImportPlainTextAndExport(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	base := "/api/episodes/" + epID
	text := "INT. KITCHEN - NIGHT\n\nAda waits.\n\nADA\nWho is there?\n"
	res := call(r, http.MethodPost, base+"/import?format=plain", text)
	if res.Code != http.StatusOK {
		t.Fatalf("import: %d %s", res.Code, res.Body)
	}
	var out struct {
		Elements int `json:"elements"`
	}
	res.data(t, &out)
	if out.Elements == 0 {
		t.Fatalf("nothing imported")
	}

	res = call(r, http.MethodGet, base+"/export?view=full&format=html&download=true", nil)
	if res.Code != http.StatusOK || !strings.Contains(string(res.Body), "Who is there?") {
		t.Fatalf("export: %d %.200s", res.Code, res.Body)
	}
	if res := call(r, http.MethodGet, base+"/export?format=docx", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format: %d", res.Code)
	}
}

func generate(t *testing.T, r http.Handler, epID string) domain.AVShot {
	t.Helper()
	base := "/api/episodes/" + epID
	call(r, http.MethodPost, base+"/elements", map[string]string{"type": "scene-setting", "content": "INT. KITCHEN - NIGHT"})
	call(r, http.MethodPost, base+"/elements", map[string]string{"type": "action", "content": "Ada waits in the dark."})
	res := call(r, http.MethodPost, base+"/av", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", res.Code, res.Body)
	}
	var out avscript.Result
	res.data(t, &out)
	shots := out.Script.Shots()
	if len(shots) != 2 {
		t.Fatalf("expected 2 shots, got %+v", shots)
	}
	return shots[0]
}

func TestShotEditing(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	sh := generate(t, r, epID)
	path := "/api/episodes/" + epID + "/shots/" + sh.ID

	res := call(r, http.MethodPut, path, map[string]string{"audio": "one two three", "duration": "1"})
	if res.Code != http.StatusOK {
		t.Fatalf("update: %d %s", res.Code, res.Body)
	}
	var got domain.AVShot
	res.data(t, &got)
	if got.WordCount != 3 || got.Duration != "00:02:00" || got.Runtime != 2 {
		t.Fatalf("unexpected shot: %+v", got)
	}
	if res := call(r, http.MethodPut, "/api/episodes/"+epID+"/shots/missing", map[string]string{"audio": "x"}); res.Code != http.StatusNotFound {
		t.Fatalf("missing shot: %d", res.Code)
	}
}

func multipartImage(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "frame.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if err := png.Encode(fw, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestExternalAPI(t *testing.T) {
	r, _, epID := newServer(t, Options{APIKey: testKey})
	sh := generate(t, r, epID)
	path := "/api/external/shots/" + sh.ID

	if res := call(r, http.MethodGet, path, nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("no key: %d", res.Code)
	}
	if res := call(r, http.MethodGet, path, nil, "X-API-Key", "wrong"); res.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", res.Code)
	}
	var ref studio.ShotRef
	call(r, http.MethodGet, path, nil, "X-API-Key", testKey).data(t, &ref)
	if ref.EpisodeID != epID || ref.Shot.ID != sh.ID {
		t.Fatalf("unexpected shot ref: %+v", ref)
	}

	res := call(r, http.MethodPut, path, map[string]any{"visual": "extreme close up", "runtime": 4.5}, "X-API-Key", testKey)
	if res.Code != http.StatusOK {
		t.Fatalf("external update: %d %s", res.Code, res.Body)
	}
	var got domain.AVShot
	res.data(t, &got)
	if got.Visual != "extreme close up" || got.Runtime != 4.5 {
		t.Fatalf("unexpected shot: %+v", got)
	}
	if res := call(r, http.MethodPut, path, map[string]any{"wordCount": -1}, "X-API-Key", testKey); res.Code != http.StatusBadRequest {
		t.Fatalf("negative word count: %d", res.Code)
	}

	body, ct := multipartImage(t, "startFrame")
	req := httptest.NewRequest(http.MethodPost, path+"/images", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	response{Code: rec.Code, Body: rec.Body.Bytes()}.data(t, &got)
	if !strings.HasPrefix(got.StartFrameURL, "/media/") {
		t.Fatalf("start frame not stored: %+v", got)
	}
	if res := call(r, http.MethodGet, got.StartFrameURL, nil); res.Code != http.StatusOK {
		t.Fatalf("serve media: %d", res.Code)
	}
}

func TestExternalAPIDisabledWithoutKey(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	res := call(r, http.MethodGet, "/api/external/episodes/"+epID, nil, "X-API-Key", "anything")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	r, _, epID := newServer(t, Options{})
	res := call(r, http.MethodPost, "/api/shows", map[string]string{"name": "Second"})
	if res.Code != http.StatusCreated {
		t.Fatalf("create show: %d %s", res.Code, res.Body)
	}
	if res := call(r, http.MethodPost, "/api/shows", map[string]string{}); res.Code != http.StatusBadRequest {
		t.Fatalf("nameless show: %d", res.Code)
	}
	var st studioSummary
	call(r, http.MethodGet, "/api/studio", nil).data(t, &st)
	if len(st.Shows) != 2 || len(st.Episodes) != 1 || st.Episodes[0].ID != epID {
		t.Fatalf("unexpected studio: %+v", st)
	}
	if res := call(r, http.MethodDelete, "/api/episodes/"+epID, nil); res.Code != http.StatusConflict {
		t.Fatalf("unconfirmed episode delete: %d", res.Code)
	}
	if res := call(r, http.MethodDelete, "/api/episodes/"+epID+"?confirm=true", nil); res.Code != http.StatusOK {
		t.Fatalf("episode delete: %d %s", res.Code, res.Body)
	}
	if res := call(r, http.MethodGet, "/api/episodes/"+epID, nil); res.Code != http.StatusNotFound {
		t.Fatalf("deleted episode still served: %d", res.Code)
	}
}
