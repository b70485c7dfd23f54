/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package workflow

import (
	"context"
	"errors"
	"strings"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
)

// DefaultProjectName is used when the form creates a project.
const DefaultProjectName = "Bulk Product Processing"

// ErrEmptyInput is returned when neither text nor images were provided.
var ErrEmptyInput = errors.New("Please enter product names or upload images with product names.")

// Orchestrator is the part of the session the input form drives.
type Orchestrator interface {
	Current() *domain.Project
	CreateProject(ctx context.Context, name, rawText string, images []imaging.Upload) (*domain.Project, error)
	ParseInput(ctx context.Context, projectID, rawText string, images []imaging.Upload) (*domain.Project, error)
}

// InputForm collects raw product names and images with product names.
type InputForm struct {
	RawText string
	Images  []imaging.Upload
}

// Text returns the trimmed raw text.
func (f InputForm) Text() string { return strings.TrimSpace(f.RawText) }

// Validate fails with ErrEmptyInput when there is nothing to parse.
func (f InputForm) Validate() error {
	if f.Text() == "" && len(f.Images) == 0 {
		return ErrEmptyInput
	}
	return nil
}

// RemoveImage drops the image at index i; out-of-range indexes are ignored.
func (f *InputForm) RemoveImage(i int) {
	if i < 0 || i >= len(f.Images) {
		return
	}
	f.Images = append(f.Images[:i:i], f.Images[i+1:]...)
}

// Submit creates a project when none is cached yet and then always parses the
// form input into it. Nothing is sent when validation fails.
func (f InputForm) Submit(ctx context.Context, o Orchestrator) (*domain.Project, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	text := f.Text()
	project := o.Current()
	if project == nil {
		created, err := o.CreateProject(ctx, DefaultProjectName, text, f.Images)
		if err != nil {
			return nil, err
		}
		project = created
	}
	return o.ParseInput(ctx, project.ID, text, f.Images)
}
