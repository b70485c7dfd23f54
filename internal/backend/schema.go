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
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/project.schema.json
var projectSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// ErrContract is wrapped by validation failures of a response envelope.
var ErrContract = errors.New("response does not match contract")

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(projectSchema))
	})
	return schema, schemaErr
}

// ValidateProjectEnvelope checks a {project} response body against the
// embedded JSON Schema.
func ValidateProjectEnvelope(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		field := e.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, field+": "+e.Description())
	}
	return fmt.Errorf("%w: %s", ErrContract, strings.Join(msgs, "; "))
}
