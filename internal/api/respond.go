/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"concepto/internal/export"
	"concepto/internal/storage"
	"concepto/internal/studio"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error codes carried in error responses.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeInternal         = "INTERNAL_ERROR"
)

// Envelope wraps every successful JSON response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ok(c *gin.Context, data any) { c.JSON(http.StatusOK, Envelope{Success: true, Data: data}) }

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, msg string, details ...string) {
	body := ErrorBody{Error: msg, Code: code}
	if len(details) > 0 {
		body.Details = details[0]
	}
	c.AbortWithStatusJSON(status, body)
}

// failErr maps service errors onto HTTP statuses.
func failErr(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fail(c, http.StatusBadRequest, CodeValidation, "request validation failed", describe(verrs))
	case errors.Is(err, studio.ErrNotFound):
		fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, studio.ErrInvalid), errors.Is(err, export.ErrUnsupported), errors.Is(err, storage.ErrInvalidDocument):
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, studio.ErrNothingToTranslate):
		fail(c, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, studio.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	case errors.Is(err, storage.ErrUnsupportedMedia):
		fail(c, http.StatusUnsupportedMediaType, CodeUnsupportedMedia, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, CodeInternal, "internal error", err.Error())
	}
}

// bind decodes a JSON body and reports binding problems as a 400.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fail(c, http.StatusBadRequest, CodeValidation, "request validation failed", describe(verrs))
		} else {
			fail(c, http.StatusBadRequest, CodeBadRequest, "malformed request body", err.Error())
		}
		return false
	}
	return true
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
