/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
	"bulkimage/internal/workflow"
)

// PDFOptions controls the contact sheet layout. Units are millimetres.
type PDFOptions struct {
	Title      string
	ThumbSize  float64 // edge of the square image box
	Margin     float64
	NoImages   bool
	ThumbPixel int // longest edge of embedded thumbnails
}

func (o PDFOptions) withDefaults(p *domain.Project) PDFOptions {
	if o.Title == "" {
		o.Title = p.Name
		if o.Title == "" {
			o.Title = workflow.DefaultProjectName
		}
	}
	if o.ThumbSize <= 0 {
		o.ThumbSize = 36
	}
	if o.Margin <= 0 {
		o.Margin = 15
	}
	if o.ThumbPixel <= 0 {
		o.ThumbPixel = 400
	}
	return o
}

var toneRGB = map[domain.Tone][3]int{
	domain.ToneNeutral: {107, 114, 128},
	domain.ToneInfo:    {37, 99, 235},
	domain.ToneSuccess: {22, 163, 74},
	domain.ToneAccent:  {147, 51, 234},
	domain.ToneDone:    {5, 150, 105},
	domain.ToneDanger:  {220, 38, 38},
}

// ProjectPDF writes an A4 contact sheet with one row per card. downloads maps
// card id to a local image file (see Result.ByCard); cards without one get an
// empty box. Unreadable images are drawn as empty boxes too.
func ProjectPDF(p *domain.Project, downloads map[string]string, outPath string, opt PDFOptions) error {
	if p == nil {
		return errors.New("project is nil")
	}
	opt = opt.withDefaults(p)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(opt.Title), false)
	pdf.SetAuthor("bulkimage", false)
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(false, opt.Margin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-opt.Margin + 5)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*opt.Margin

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(contentW, 10, tr(opt.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(107, 114, 128)
	counts := p.StatusCounts()
	pdf.CellFormat(contentW, 6, fmt.Sprintf("%d products, %d completed, %d failed",
		len(p.Cards), counts[domain.StatusCompleted], counts[domain.StatusFailed]), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	rowH := opt.ThumbSize + 6
	for i, c := range p.Cards {
		y := pdf.GetY()
		if y+rowH > pageH-opt.Margin {
			pdf.AddPage()
			y = pdf.GetY()
		}
		x := opt.Margin

		pdf.SetDrawColor(209, 213, 219)
		pdf.SetLineWidth(0.2)
		pdf.Rect(x, y, opt.ThumbSize, opt.ThumbSize, "D")
		if path, ok := downloads[c.ID]; ok && !opt.NoImages {
			drawThumb(pdf, fmt.Sprintf("card-%d", i), path, x, y, opt)
		}

		tx := x + opt.ThumbSize + 6
		tw := contentW - opt.ThumbSize - 6
		pdf.SetXY(tx, y)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(17, 24, 39)
		pdf.CellFormat(tw, 7, tr(c.ProductName), "", 2, "L", false, 0, "")

		label, tone := c.Status.Badge()
		rgb := toneRGB[tone]
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(pdf.GetStringWidth(label)+6, 6, label, "", 2, "C", true, 0, "")
		pdf.Ln(1)
		pdf.SetX(tx)

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(75, 85, 99)
		if s := workflow.ImageCountLabel(c); s != "" {
			pdf.CellFormat(tw, 5, s, "", 2, "L", false, 0, "")
		}
		if s := workflow.SelectionBadge(c); s != "" {
			pdf.CellFormat(tw, 5, s, "", 2, "L", false, 0, "")
		}
		if c.FinalImageURL != "" {
			pdf.CellFormat(tw, 5, tr(c.FinalImageURL), "", 2, "L", false, 0, "")
		} else if s := workflow.Notice(c, domain.PhaseCompleted); s != "" {
			pdf.CellFormat(tw, 5, s, "", 2, "L", false, 0, "")
		}
		pdf.SetXY(opt.Margin, y+rowH)
	}
	if len(p.Cards) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(contentW, 8, workflow.EmptyGridMessage, "", 1, "L", false, 0, "")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// drawThumb centres a scaled copy of the image file in the row's box.
func drawThumb(pdf *gofpdf.Fpdf, name, path string, x, y float64, opt PDFOptions) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	thumb, err := imaging.ThumbnailPNG(data, opt.ThumbPixel, opt.ThumbPixel)
	if err != nil {
		return
	}
	info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(thumb))
	if info == nil || pdf.Err() {
		pdf.ClearError()
		return
	}
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return
	}
	scale := opt.ThumbSize / w
	if s := opt.ThumbSize / h; s < scale {
		scale = s
	}
	w, h = w*scale, h*scale
	pdf.ImageOptions(name, x+(opt.ThumbSize-w)/2, y+(opt.ThumbSize-h)/2, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}
