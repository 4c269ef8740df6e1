package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Color is an RGB color
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFOptions configures a PDF document
type PDFOptions struct {
	PageSize       string  `json:"page_size"`   // A4, Letter, Legal
	Orientation    string  `json:"orientation"` // portrait, landscape
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle,omitempty"`
	FontFamily     string  `json:"font_family"`
	FontSize       float64 `json:"font_size"`
	TitleFontSize  float64 `json:"title_font_size"`
	HeaderColor    Color   `json:"header_color"`
	AlternateColor Color   `json:"alternate_color"`
	Margin         float64 `json:"margin"`
}

// DefaultPDFOptions returns portrait A4 options with the given title
func DefaultPDFOptions(title string) PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "portrait",
		Title:          title,
		FontFamily:     "Arial",
		FontSize:       10,
		TitleFontSize:  16,
		HeaderColor:    Color{R: 68, G: 114, B: 196},
		AlternateColor: Color{R: 242, G: 242, B: 242},
		Margin:         15,
	}
}

// Field is one labelled value in a details section
type Field struct {
	Label string
	Value interface{}
}

// PDFDocument builds a paginated report out of field sections, tables and
// free text. Sections are rendered in the order they are added.
type PDFDocument struct {
	pdf  *gofpdf.Fpdf
	opts PDFOptions
	tr   func(string) string
}

// NewPDFDocument starts a document with the title block on its first page
func NewPDFDocument(opts PDFOptions, generatedAt time.Time) *PDFDocument {
	orientation := "P"
	if opts.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", opts.PageSize, "")
	pdf.SetMargins(opts.Margin, opts.Margin+5, opts.Margin)
	pdf.SetAutoPageBreak(true, opts.Margin+5)
	pdf.SetTitle(opts.Title, true)

	d := &PDFDocument{pdf: pdf, opts: opts, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(opts.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(opts.FontFamily, "B", opts.TitleFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, d.tr(opts.Title), "", 1, "C", false, 0, "")
	if opts.Subtitle != "" {
		pdf.SetFont(opts.FontFamily, "", opts.FontSize+2)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, d.tr(opts.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.SetFont(opts.FontFamily, "", opts.FontSize-1)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+generatedAt.Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")
	pdf.Ln(4)
	return d
}

func (d *PDFDocument) heading(text string) {
	d.pdf.Ln(4)
	d.pdf.SetFont(d.opts.FontFamily, "B", d.opts.FontSize+2)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 8, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

// AddFields renders a labelled list of values
func (d *PDFDocument) AddFields(heading string, fields []Field) {
	d.heading(heading)
	for _, f := range fields {
		d.pdf.SetFont(d.opts.FontFamily, "B", d.opts.FontSize)
		d.pdf.CellFormat(55, 6, d.tr(f.Label+":"), "", 0, "L", false, 0, "")
		d.pdf.SetFont(d.opts.FontFamily, "", d.opts.FontSize)
		d.pdf.MultiCell(0, 6, d.tr(formatValue(f.Value)), "", "L", false)
	}
}

// AddText renders a block of wrapped text. Empty text is skipped.
func (d *PDFDocument) AddText(heading, text string) {
	if text == "" {
		return
	}
	d.heading(heading)
	d.pdf.SetFont(d.opts.FontFamily, "", d.opts.FontSize)
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
}

// AddTable renders a table with a shaded header that repeats on every page
func (d *PDFDocument) AddTable(heading string, table Table) {
	d.heading(heading)
	if len(table.Rows) == 0 {
		d.pdf.SetFont(d.opts.FontFamily, "I", d.opts.FontSize)
		d.pdf.CellFormat(0, 6, "No entries", "", 1, "L", false, 0, "")
		return
	}

	widths := d.columnWidths(table)
	d.tableHeader(table.Columns, widths)

	_, pageHeight := d.pdf.GetPageSize()
	d.pdf.SetFont(d.opts.FontFamily, "", d.opts.FontSize)
	for i, row := range table.Rows {
		if d.pdf.GetY()+7 > pageHeight-d.opts.Margin-5 {
			d.pdf.AddPage()
			d.tableHeader(table.Columns, widths)
			d.pdf.SetFont(d.opts.FontFamily, "", d.opts.FontSize)
		}

		fill := d.opts.AlternateColor
		if i%2 == 0 {
			fill = Color{R: 255, G: 255, B: 255}
		}
		d.pdf.SetFillColor(fill.R, fill.G, fill.B)
		d.pdf.SetTextColor(0, 0, 0)
		for j, col := range table.Columns {
			text := d.fit(formatValue(row[col.Key]), widths[j]-2)
			d.pdf.CellFormat(widths[j], 7, text, "1", 0, "L", true, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *PDFDocument) tableHeader(columns []Column, widths []float64) {
	c := d.opts.HeaderColor
	d.pdf.SetFont(d.opts.FontFamily, "B", d.opts.FontSize)
	d.pdf.SetFillColor(c.R, c.G, c.B)
	d.pdf.SetTextColor(255, 255, 255)
	for i, col := range columns {
		d.pdf.CellFormat(widths[i], 8, d.fit(col.Title, widths[i]-2), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
}

// columnWidths sizes each column to its widest sampled cell and scales the
// result down to the printable width
func (d *PDFDocument) columnWidths(table Table) []float64 {
	pageWidth, _ := d.pdf.GetPageSize()
	available := pageWidth - 2*d.opts.Margin

	widths := make([]float64, len(table.Columns))
	d.pdf.SetFont(d.opts.FontFamily, "B", d.opts.FontSize)
	for i, col := range table.Columns {
		widths[i] = d.pdf.GetStringWidth(d.tr(col.Title)) + 4
	}

	d.pdf.SetFont(d.opts.FontFamily, "", d.opts.FontSize)
	sample := table.Rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, col := range table.Columns {
			if w := d.pdf.GetStringWidth(d.tr(formatValue(row[col.Key]))) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

// fit translates text for the core fonts and truncates it with an ellipsis
// until it fits the width
func (d *PDFDocument) fit(text string, width float64) string {
	out := d.tr(text)
	if d.pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		out = d.tr(string(runes) + "...")
		if d.pdf.GetStringWidth(out) <= width {
			break
		}
	}
	return out
}

// PageCount returns the number of pages so far
func (d *PDFDocument) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes renders the document
func (d *PDFDocument) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
