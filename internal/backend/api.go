/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
)

// GenerateRequest is the body of the generate-images call.
type GenerateRequest struct {
	NumImagesPerProduct int    `json:"num_images_per_product"`
	ImageSize           string `json:"image_size"`
}

// ProcessRequest holds the process form fields.
type ProcessRequest struct {
	RemoveBackground bool
	AddBackground    bool
	OutputFormat     string
}

type projectEnvelope struct {
	Project *domain.Project `json:"project"`
}

func projectPath(id string, suffix string) string {
	return "/api/projects/" + url.PathEscape(id) + "/" + suffix
}

func cardPath(id string, suffix string) string {
	return "/api/cards/" + url.PathEscape(id) + "/" + suffix
}

func (c *Client) projectCall(ctx context.Context, r request) (*domain.Project, error) {
	data, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if c.strict {
		if err := ValidateProjectEnvelope(data); err != nil {
			return nil, fmt.Errorf("%s: %w", r.op, err)
		}
	}
	var env projectEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: decode project: %w", r.op, err)
	}
	if env.Project == nil {
		return nil, fmt.Errorf("%s: response has no project", r.op)
	}
	return env.Project, nil
}

func (c *Client) ackCall(ctx context.Context, r request) (Ack, error) {
	data, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeAck(r.op, data)
}

// CreateProject posts a new project with optional raw text and input images.
func (c *Client) CreateProject(ctx context.Context, name, rawText string, images []imaging.Upload) (*domain.Project, error) {
	f := (&form{}).text("name", name).text("raw_input_text", rawText).file("input_images", images...)
	return c.projectCall(ctx, request{op: "create project", method: http.MethodPost, path: "/api/projects/", form: f})
}

// ParseInput asks the service to turn text and images into product cards.
func (c *Client) ParseInput(ctx context.Context, projectID, rawText string, images []imaging.Upload) (*domain.Project, error) {
	f := (&form{}).text("raw_text", rawText).file("images", images...)
	return c.projectCall(ctx, request{op: "parse input", method: http.MethodPost, path: projectPath(projectID, "parse-input/"), form: f})
}

// GenerateImages starts the image search for every card that needs images.
func (c *Client) GenerateImages(ctx context.Context, projectID string, req GenerateRequest) (Ack, error) {
	return c.ackCall(ctx, request{op: "generate images", method: http.MethodPost, path: projectPath(projectID, "generate-images/"), json: req})
}

// GetProject fetches the full project snapshot.
func (c *Client) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	return c.projectCall(ctx, request{op: "refresh project", method: http.MethodGet, path: projectPath(projectID, "")})
}

// ProcessProject starts batch processing of every card with a chosen image.
func (c *Client) ProcessProject(ctx context.Context, projectID string, req ProcessRequest) (Ack, error) {
	f := (&form{}).
		boolean("remove_background", req.RemoveBackground).
		boolean("add_background", req.AddBackground).
		text("output_format", req.OutputFormat)
	return c.ackCall(ctx, request{op: "process project", method: http.MethodPost, path: projectPath(projectID, "process/"), form: f})
}

// SelectImage marks one option of a card as selected.
func (c *Client) SelectImage(ctx context.Context, cardID, optionID string) (Ack, error) {
	body := map[string]string{"image_option_id": optionID}
	return c.ackCall(ctx, request{op: "select image", method: http.MethodPost, path: cardPath(cardID, "select-image/"), json: body})
}

// UploadImage replaces a card's selection with a custom image.
func (c *Client) UploadImage(ctx context.Context, cardID string, img imaging.Upload) (Ack, error) {
	f := (&form{}).file("image", img)
	return c.ackCall(ctx, request{op: "upload image", method: http.MethodPost, path: cardPath(cardID, "upload-image/"), form: f})
}

// Fetch downloads a media URL. Relative URLs are resolved against the base URL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := c.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Op: "fetch image", Method: http.MethodGet, Path: req.URL.Path, Status: resp.StatusCode}
	}
	return readLimited(resp.Body, maxMediaSize)
}

// ResolveURL turns a server relative media reference into an absolute URL.
func (c *Client) ResolveURL(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
