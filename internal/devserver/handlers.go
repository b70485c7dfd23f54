/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
	"bulkimage/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = "Untitled Project"
	}
	files, ok := readImages(w, r.MultipartForm, "input_images")
	if !ok {
		return
	}
	p := &domain.Project{
		ID:           newID(),
		Name:         name,
		RawInputText: r.FormValue("raw_input_text"),
		Status:       "created",
		Cards:        []domain.ProductCard{},
	}
	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()
	s.log.Debug("project created", slog.String("id", p.ID), slog.Int("input_images", len(files)))
	writeJSON(w, http.StatusCreated, map[string]any{"project": cloneProject(p)})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	files, ok := readImages(w, r.MultipartForm, "images")
	if !ok {
		return
	}
	names := splitProducts(r.FormValue("raw_text"))
	for _, f := range files {
		// image input stands in for OCR: the file name is the product name
		stem := strings.TrimSuffix(f.Name, path.Ext(f.Name))
		if stem = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(stem)); stem != "" {
			names = append(names, stem)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if raw := r.FormValue("raw_text"); raw != "" {
		p.RawInputText = raw
	}
	for _, n := range names {
		c := domain.ProductCard{ID: newID(), ProductName: n, Status: domain.StatusPending, ImageOptions: []domain.ImageOption{}}
		p.Cards = append(p.Cards, c)
		s.cardOf[c.ID] = p.ID
	}
	p.Status = "parsed"
	writeJSON(w, http.StatusOK, map[string]any{"project": cloneProject(p), "parsed": len(names)})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NumImagesPerProduct int    `json:"num_images_per_product"`
		ImageSize           string `json:"image_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.NumImagesPerProduct <= 0 {
		req.NumImagesPerProduct = 5
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	updated := 0
	for i := range p.Cards {
		c := &p.Cards[i]
		// cards that already have options keep them
		if !workflow.CardNeedsImages(*c) {
			continue
		}
		c.ImageOptions = make([]domain.ImageOption, 0, req.NumImagesPerProduct)
		for n := 0; n < req.NumImagesPerProduct; n++ {
			base := fmt.Sprintf("search/%s/%d", c.ID, n)
			s.media[base+".png"] = media{"image/png", placeholderPNG(c.ProductName, n, 480)}
			s.media[base+"_thumb.png"] = media{"image/png", placeholderPNG(c.ProductName, n, 120)}
			c.ImageOptions = append(c.ImageOptions, domain.ImageOption{
				ID:           newID(),
				Source:       "devserver",
				ThumbnailURL: "/media/" + base + "_thumb.png",
				OriginalURL:  "/media/" + base + ".png",
			})
		}
		c.Status = domain.StatusImagesFetched
		updated++
	}
	p.Status = "images_generated"
	writeJSON(w, http.StatusOK, map[string]any{"message": "Image generation completed", "cards_updated": updated, "image_size": req.ImageSize})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": cloneProject(p)})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	format := r.FormValue("output_format")
	if format == "" {
		format = "png"
	}
	removeBG, _ := strconv.ParseBool(r.FormValue("remove_background"))
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	processed := 0
	for i := range p.Cards {
		c := &p.Cards[i]
		if !c.Status.HasChosenImage() {
			continue
		}
		src := strings.TrimPrefix(c.UploadedImage, "/media/")
		if src == "" {
			src = strings.TrimPrefix(c.SelectedImageURL, "/media/")
		}
		m, ok := s.media[src]
		if !ok {
			c.Status = domain.StatusFailed
			continue
		}
		key := fmt.Sprintf("final/%s.%s", c.ID, format)
		s.media[key] = m
		c.FinalImageURL = "/media/" + key
		c.Status = domain.StatusCompleted
		processed++
	}
	p.Status = "completed"
	writeJSON(w, http.StatusOK, map[string]any{"message": "Processing completed", "processed": processed, "remove_background": removeBG})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageOptionID string `json:"image_option_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageOptionID == "" {
		writeError(w, http.StatusBadRequest, "image_option_id is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cardLocked(r.PathValue("id"))
	if c == nil {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	found := false
	for i := range c.ImageOptions {
		o := &c.ImageOptions[i]
		o.IsSelected = o.ID == req.ImageOptionID
		if o.IsSelected {
			found = true
			c.SelectedImageURL = o.OriginalURL
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "image option not found")
		return
	}
	c.UploadedImage = ""
	c.Status = domain.StatusImageSelected
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "card_id": c.ID})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	files, ok := readImages(w, r.MultipartForm, "image")
	if !ok {
		return
	}
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one image is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cardLocked(r.PathValue("id"))
	if c == nil {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	key := fmt.Sprintf("uploads/%s/%s%s", c.ID, newID(), strings.ToLower(path.Ext(files[0].Name)))
	s.media[key] = media{files[0].ContentType, files[0].Data}
	for i := range c.ImageOptions {
		c.ImageOptions[i].IsSelected = false
	}
	c.SelectedImageURL = ""
	c.UploadedImage = "/media/" + key
	c.Status = domain.StatusImageUploaded
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "uploaded_image": c.UploadedImage})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/media/")
	s.mu.Lock()
	m, ok := s.media[key]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", m.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(m.data)))
	_, _ = w.Write(m.data)
}

func (s *Server) cardLocked(id string) *domain.ProductCard {
	p, ok := s.projects[s.cardOf[id]]
	if !ok {
		return nil
	}
	for i := range p.Cards {
		if p.Cards[i].ID == id {
			return &p.Cards[i]
		}
	}
	return nil
}

// readImages validates every file part under field. It writes a 400 and
// reports false on the first bad file.
func readImages(w http.ResponseWriter, form *multipart.Form, field string) ([]imaging.Upload, bool) {
	if form == nil {
		return nil, true
	}
	var out []imaging.Upload
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file")
			return nil, false
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file")
			return nil, false
		}
		u, err := imaging.NewUpload(fh.Filename, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		out = append(out, u)
	}
	return out, true
}

// placeholderPNG renders a flat swatch whose colour derives from the product name.
func placeholderPNG(name string, n, size int) []byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32() + uint32(n)*0x9E3779B9
	c := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < size/8 || y < size/8 {
				img.Set(x, y, color.White)
				continue
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
