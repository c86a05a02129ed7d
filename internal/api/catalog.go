/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"net/http"
	"strconv"
	"strings"

	"concepto/internal/domain"
	"concepto/internal/storage"

	"github.com/gin-gonic/gin"
)

type studioSummary struct {
	Name     string               `json:"name"`
	Metadata domain.Metadata      `json:"metadata"`
	Shows    []domain.Show        `json:"shows"`
	Assets   []domain.GlobalAsset `json:"assets"`
	Episodes []episodeSummary     `json:"episodes"`
}

type episodeSummary struct {
	ID        string           `json:"id"`
	ShowID    string           `json:"showId"`
	Number    int              `json:"episodeNumber"`
	Title     string           `json:"title"`
	Elements  int              `json:"elements"`
	Shots     int              `json:"shots"`
	UpdatedAt domain.Timestamp `json:"updatedAt"`
}

func summarize(ep domain.Episode) episodeSummary {
	return episodeSummary{
		ID: ep.ID, ShowID: ep.ShowID, Number: ep.Number, Title: ep.Title,
		Elements: len(ep.Screenplay.Slots), Shots: len(ep.AVScript.Shots()), UpdatedAt: ep.UpdatedAt,
	}
}

func (s *Server) getStudio(c *gin.Context) {
	st := s.ws.Studio()
	out := studioSummary{Name: st.Name, Metadata: st.Metadata, Shows: st.Shows, Assets: st.Assets}
	for _, ep := range st.Episodes {
		out.Episodes = append(out.Episodes, summarize(ep))
	}
	ok(c, out)
}

func (s *Server) listShows(c *gin.Context) { ok(c, s.ws.Studio().Shows) }

type showRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=4000"`
}

func (s *Server) createShow(c *gin.Context) {
	var req showRequest
	if !bind(c, &req) {
		return
	}
	sh, err := s.ws.AddShow(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, sh)
}

func (s *Server) updateShow(c *gin.Context) {
	var req showRequest
	if !bind(c, &req) {
		return
	}
	if err := s.ws.UpdateShow(c.Request.Context(), c.Param("id"), req.Name, req.Description); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

func (s *Server) deleteShow(c *gin.Context) {
	cascade := c.Query("cascade") == "true"
	if err := s.ws.RemoveShow(c.Request.Context(), c.Param("id"), cascade); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func (s *Server) listEpisodes(c *gin.Context) {
	eps := s.ws.Episodes(c.Param("id"))
	out := make([]episodeSummary, 0, len(eps))
	for _, ep := range eps {
		out = append(out, summarize(ep))
	}
	ok(c, out)
}

type episodeRequest struct {
	Title         string `json:"title" binding:"required,max=300"`
	Number        int    `json:"episodeNumber" binding:"min=0"`
	PrimaryLang   string `json:"primaryLang" binding:"omitempty,alpha,min=2,max=8"`
	SecondaryLang string `json:"secondaryLang" binding:"omitempty,alpha,min=2,max=8"`
}

func (s *Server) createEpisode(c *gin.Context) {
	var req episodeRequest
	if !bind(c, &req) {
		return
	}
	ep, err := s.ws.AddEpisode(c.Request.Context(), c.Param("id"), req.Title, req.Number, domain.Lang(req.PrimaryLang), domain.Lang(req.SecondaryLang))
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, ep)
}

func (s *Server) getEpisode(c *gin.Context) {
	ep, err := s.ws.Episode(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"episode": ep, "dirty": s.ws.Dirty(ep.ID), "history": s.ws.History(ep.ID)})
}

type episodeMetaRequest struct {
	Title  string `json:"title" binding:"max=300"`
	Number int    `json:"episodeNumber" binding:"min=0"`
}

func (s *Server) updateEpisode(c *gin.Context) {
	var req episodeMetaRequest
	if !bind(c, &req) {
		return
	}
	if err := s.ws.UpdateEpisode(c.Request.Context(), c.Param("id"), req.Title, req.Number); err != nil {
		failErr(c, err)
		return
	}
	ep, err := s.ws.Episode(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, summarize(ep))
}

func (s *Server) moveEpisode(c *gin.Context) {
	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := s.ws.MoveEpisode(c.Request.Context(), c.Param("id"), req.Delta); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

func (s *Server) deleteEpisode(c *gin.Context) {
	if c.Query("confirm") != "true" {
		if _, err := s.ws.Episode(c.Param("id")); err != nil {
			failErr(c, err)
			return
		}
		fail(c, http.StatusConflict, CodeConflict, "deleting an episode needs confirm=true")
		return
	}
	if err := s.ws.RemoveEpisode(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func (s *Server) listAssets(c *gin.Context) {
	assets := s.ws.Studio().Assets
	if show := c.Query("show"); show != "" {
		kept := assets[:0]
		for _, a := range assets {
			if a.ShowID == show || a.ShowID == "" {
				kept = append(kept, a)
			}
		}
		assets = kept
	}
	if assets == nil {
		assets = []domain.GlobalAsset{}
	}
	ok(c, assets)
}

type assetRequest struct {
	ShowID      string   `json:"showId"`
	Kind        string   `json:"category" binding:"required,oneof=character location vehicle gadget"`
	Name        string   `json:"name" binding:"required,max=200"`
	Description string   `json:"description" binding:"max=4000"`
	Tags        []string `json:"tags" binding:"max=50,dive,max=60"`
	ImageURLs   []string `json:"images" binding:"max=20"`
}

func (r assetRequest) asset(id string) domain.GlobalAsset {
	return domain.GlobalAsset{ID: id, ShowID: r.ShowID, Kind: domain.AssetKind(r.Kind), Name: r.Name, Description: r.Description, Tags: r.Tags, ImageURLs: r.ImageURLs}
}

func (s *Server) createAsset(c *gin.Context) {
	var req assetRequest
	if !bind(c, &req) {
		return
	}
	a, err := s.ws.AddAsset(c.Request.Context(), req.asset(""))
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, a)
}

func (s *Server) updateAsset(c *gin.Context) {
	var req assetRequest
	if !bind(c, &req) {
		return
	}
	if err := s.ws.UpdateAsset(c.Request.Context(), req.asset(c.Param("id"))); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

func (s *Server) deleteAsset(c *gin.Context) {
	if err := s.ws.RemoveAsset(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func (s *Server) whereUsed(c *gin.Context) {
	limit, offset := paging(c)
	res, err := s.ws.WhereUsed(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, nonNil(res))
}

func (s *Server) search(c *gin.Context) {
	limit, offset := paging(c)
	q := storage.SearchQuery{
		Text:      c.Query("q"),
		Character: c.Query("character"),
		EpisodeID: c.Query("episode"),
		Lang:      c.Query("lang"),
		SceneFrom: atoi(c.Query("sceneFrom")),
		SceneTo:   atoi(c.Query("sceneTo")),
		Limit:     limit,
		Offset:    offset,
	}
	for _, t := range c.QueryArray("type") {
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				q.Types = append(q.Types, p)
			}
		}
	}
	res, err := s.ws.Search(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "search failed", err.Error())
		return
	}
	ok(c, nonNil(res))
}

func paging(c *gin.Context) (int, int) {
	limit := atoi(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return limit, max(atoi(c.Query("offset")), 0)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
