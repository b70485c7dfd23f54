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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
)

const projectJSON = `{"project":{"id":"p1","name":"Bulk Product Processing","cards":[
	{"id":"c1","product_name":"Red Mug","status":"images_fetched","image_options":[
		{"id":"o1","source":"stock","thumbnail_url":"/t/1","original_url":"/o/1","is_selected":false}],
	 "selected_image_url":null},
	{"id":"c2","product_name":"Blue Cup","status":"pending","image_options":[]}]}}`

type recorded struct {
	method, path, contentType, auth string
	fields                          map[string][]string
	files                           map[string][]string
	body                            []byte
}

func recordingServer(t *testing.T, status int, reply string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.contentType = r.Header.Get("Content-Type")
		rec.auth = r.Header.Get("Authorization")
		if strings.HasPrefix(rec.contentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			rec.fields = r.MultipartForm.Value
			rec.files = map[string][]string{}
			for name, fhs := range r.MultipartForm.File {
				for _, fh := range fhs {
					rec.files[name] = append(rec.files[name], fh.Filename)
				}
			}
		} else {
			rec.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func png(name string) imaging.Upload {
	return imaging.Upload{Name: name, ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")}
}

func TestCreateProjectMultipart(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusCreated, projectJSON)
	c := NewClient(srv.URL+"/", "tok")
	p, err := c.CreateProject(context.Background(), "Bulk Product Processing", "", []imaging.Upload{png("a.png"), png("b.png")})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if rec.method != http.MethodPost || rec.path != "/api/projects/" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	if rec.auth != "Bearer tok" {
		t.Fatalf("auth header = %q", rec.auth)
	}
	if got := rec.fields["name"]; len(got) != 1 || got[0] != "Bulk Product Processing" {
		t.Fatalf("name field = %v", got)
	}
	if _, ok := rec.fields["raw_input_text"]; ok {
		t.Fatalf("empty raw_input_text should be omitted")
	}
	if got := rec.files["input_images"]; len(got) != 2 || got[0] != "a.png" || got[1] != "b.png" {
		t.Fatalf("input_images = %v", got)
	}
	if p.ID != "p1" || len(p.Cards) != 2 || p.Cards[0].Status != domain.StatusImagesFetched {
		t.Fatalf("unexpected project %+v", p)
	}
	if p.Cards[0].SelectedImageURL != "" {
		t.Fatalf("null selected_image_url should decode empty")
	}
}

func TestParseInputMultipart(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusOK, projectJSON)
	c := NewClient(srv.URL, "")
	if _, err := c.ParseInput(context.Background(), "p1", "Red Mug\nBlue Cup", []imaging.Upload{png("label.png")}); err != nil {
		t.Fatalf("ParseInput: %v", err)
	}
	if rec.path != "/api/projects/p1/parse-input/" {
		t.Fatalf("path = %s", rec.path)
	}
	if rec.auth != "" {
		t.Fatalf("no token should send no auth header, got %q", rec.auth)
	}
	if got := rec.fields["raw_text"]; len(got) != 1 || got[0] != "Red Mug\nBlue Cup" {
		t.Fatalf("raw_text = %v", got)
	}
	if got := rec.files["images"]; len(got) != 1 {
		t.Fatalf("images = %v", got)
	}
}

func TestGenerateImagesJSON(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusOK, `{"message":"started","count":2}`)
	c := NewClient(srv.URL, "")
	ack, err := c.GenerateImages(context.Background(), "p1", GenerateRequest{NumImagesPerProduct: 5, ImageSize: "medium"})
	if err != nil {
		t.Fatalf("GenerateImages: %v", err)
	}
	if rec.path != "/api/projects/p1/generate-images/" || rec.contentType != "application/json" {
		t.Fatalf("unexpected request %s %s", rec.path, rec.contentType)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["num_images_per_product"] != float64(5) || body["image_size"] != "medium" {
		t.Fatalf("body = %v", body)
	}
	if ack.Message() != "started" {
		t.Fatalf("ack message = %q", ack.Message())
	}
}

func TestProcessProjectBooleans(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusAccepted, ``)
	c := NewClient(srv.URL, "")
	ack, err := c.ProcessProject(context.Background(), "p1", ProcessRequest{RemoveBackground: true, AddBackground: false, OutputFormat: "png"})
	if err != nil {
		t.Fatalf("ProcessProject: %v", err)
	}
	if len(ack) != 0 {
		t.Fatalf("empty body should give empty ack, got %v", ack)
	}
	if rec.path != "/api/projects/p1/process/" {
		t.Fatalf("path = %s", rec.path)
	}
	want := map[string]string{"remove_background": "true", "add_background": "false", "output_format": "png"}
	for k, v := range want {
		if got := rec.fields[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("%s = %v, want %s", k, got, v)
		}
	}
}

func TestCardCalls(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusOK, `{"success":true}`)
	c := NewClient(srv.URL, "")
	if _, err := c.SelectImage(context.Background(), "c1", "o2"); err != nil {
		t.Fatalf("SelectImage: %v", err)
	}
	if rec.path != "/api/cards/c1/select-image/" || !strings.Contains(string(rec.body), `"image_option_id":"o2"`) {
		t.Fatalf("select request %s %s", rec.path, rec.body)
	}
	if _, err := c.UploadImage(context.Background(), "c1", png("mine.png")); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if rec.path != "/api/cards/c1/upload-image/" {
		t.Fatalf("upload path = %s", rec.path)
	}
	if got := rec.files["image"]; len(got) != 1 || got[0] != "mine.png" {
		t.Fatalf("image part = %v", got)
	}
}

func TestNon2xxIsRequestError(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusBadRequest, `{"error":"bad things"}`)
	c := NewClient(srv.URL, "")
	_, err := c.GetProject(context.Background(), "p1")
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if re.Status != http.StatusBadRequest || re.Path != "/api/projects/p1/" || re.Method != http.MethodGet {
		t.Fatalf("unexpected error fields %+v", re)
	}
	if err.Error() != "failed to refresh project" {
		t.Fatalf("message = %q", err.Error())
	}
	if strings.Contains(re.Detail(), "bad things") {
		t.Fatalf("error body must not be parsed: %s", re.Detail())
	}
}

func TestUnknownStatusFailsDecode(t *testing.T) {
	bad := `{"project":{"id":"p1","name":"n","cards":[{"id":"c1","product_name":"x","status":"archived","image_options":[]}]}}`
	srv, _ := recordingServer(t, http.StatusOK, bad)

	if _, err := NewClient(srv.URL, "").GetProject(context.Background(), "p1"); err == nil {
		t.Fatalf("expected decode error for unknown status")
	}
	_, err := New(Options{BaseURL: srv.URL, Strict: true}).GetProject(context.Background(), "p1")
	if !errors.Is(err, ErrContract) {
		t.Fatalf("strict mode should report contract error, got %v", err)
	}
}

func TestStrictAcceptsValidEnvelope(t *testing.T) {
	if err := ValidateProjectEnvelope([]byte(projectJSON)); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}
	if err := ValidateProjectEnvelope([]byte(`{"ok":true}`)); !errors.Is(err, ErrContract) {
		t.Fatalf("missing project should be rejected, got %v", err)
	}
}

func TestMissingProjectInEnvelope(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, `{"ok":true}`)
	if _, err := NewClient(srv.URL, "").GetProject(context.Background(), "p1"); err == nil {
		t.Fatalf("expected error for envelope without project")
	}
}

func TestResolveAndFetch(t *testing.T) {
	srv, rec := recordingServer(t, http.StatusOK, "imagebytes")
	c := NewClient(srv.URL, "")
	u, err := c.ResolveURL("/media/final/a.png")
	if err != nil {
		t.Fatalf("ResolveURL: %v", err)
	}
	if u != srv.URL+"/media/final/a.png" {
		t.Fatalf("resolved = %s", u)
	}
	if abs, _ := c.ResolveURL("https://cdn.example.com/x.png"); abs != "https://cdn.example.com/x.png" {
		t.Fatalf("absolute url changed: %s", abs)
	}
	data, err := c.Fetch(context.Background(), "/media/final/a.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "imagebytes" || rec.path != "/media/final/a.png" {
		t.Fatalf("fetch got %q from %s", data, rec.path)
	}
}
