/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"concepto/internal/studio"

	"github.com/gin-gonic/gin"
)

// The external API addresses shots by id alone, so companion tools need not know episodes.

func (s *Server) extEpisode(c *gin.Context) {
	ep, err := s.ws.Episode(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ep)
}

func (s *Server) extShot(c *gin.Context) {
	ref, err := s.ws.FindShot(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ref)
}

// extUpdateShot accepts audio, visual, wordCount and runtime. Duration stays owned by the
// studio.
func (s *Server) extUpdateShot(c *gin.Context) {
	var req struct {
		Audio     *string  `json:"audio"`
		Visual    *string  `json:"visual"`
		WordCount *int     `json:"wordCount" binding:"omitempty,min=0"`
		Runtime   *float64 `json:"runtime" binding:"omitempty,min=0"`
	}
	if !bind(c, &req) {
		return
	}
	ref, err := s.ws.FindShot(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	sh, err := s.ws.UpdateShot(ref.EpisodeID, ref.Shot.ID, studio.ShotPatch{
		Audio:     req.Audio,
		Visual:    req.Visual,
		WordCount: req.WordCount,
		Runtime:   req.Runtime,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, sh)
}

func (s *Server) extUploadImages(c *gin.Context) {
	ref, err := s.ws.FindShot(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	sh, _, done := s.storeImages(c, ref.EpisodeID, ref.Shot.ID)
	if done {
		ok(c, sh)
	}
}
