/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"concepto/internal/domain"
)

// Client calls the external API of a studio server.
type Client struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewClient creates a client for baseURL; a trailing slash is dropped.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is an error response of the external API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("server %d %s: %s (%s)", e.Status, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("server %d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	u, err := url.Parse(c.BaseURL + "/api/external" + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("server %s %s: request not successful", method, u.Path)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(env.Data, dest)
}

// GetEpisode fetches an episode with its screenplay and AV script.
func (c *Client) GetEpisode(ctx context.Context, id string) (domain.Episode, error) {
	var ep domain.Episode
	err := c.do(ctx, http.MethodGet, "/episodes/"+url.PathEscape(id), nil, "", &ep)
	return ep, err
}

// RemoteShot is a shot together with the episode holding it.
type RemoteShot struct {
	EpisodeID string        `json:"episodeId"`
	Shot      domain.AVShot `json:"shot"`
}

// GetShot fetches one shot.
func (c *Client) GetShot(ctx context.Context, id string) (RemoteShot, error) {
	var s RemoteShot
	err := c.do(ctx, http.MethodGet, "/shots/"+url.PathEscape(id), nil, "", &s)
	return s, err
}

// ShotUpdate lists the shot fields to change; nil fields are left alone.
type ShotUpdate struct {
	Audio     *string  `json:"audio,omitempty"`
	Visual    *string  `json:"visual,omitempty"`
	WordCount *int     `json:"wordCount,omitempty"`
	Runtime   *float64 `json:"runtime,omitempty"`
}

// UpdateShot changes fields of a shot and returns the stored result.
func (c *Client) UpdateShot(ctx context.Context, id string, u ShotUpdate) (domain.AVShot, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return domain.AVShot{}, err
	}
	var sh domain.AVShot
	err = c.do(ctx, http.MethodPut, "/shots/"+url.PathEscape(id), bytes.NewReader(b), "application/json", &sh)
	return sh, err
}

// UploadShotImages sends images for a shot. Keys of files are the form fields mainImage,
// startFrame and endFrame.
func (c *Client) UploadShotImages(ctx context.Context, id string, files map[string]io.Reader) (domain.AVShot, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, r := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			return domain.AVShot{}, err
		}
		if _, err := io.Copy(fw, r); err != nil {
			return domain.AVShot{}, fmt.Errorf("copy %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return domain.AVShot{}, err
	}
	var sh domain.AVShot
	err := c.do(ctx, http.MethodPost, "/shots/"+url.PathEscape(id)+"/images", &buf, mw.FormDataContentType(), &sh)
	return sh, err
}
