// Package export renders tabular admin reports as XLSX workbooks or CSV.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Column is one output column. Key selects the value from a row map.
type Column struct {
	Key   string
	Title string
	// Width is a fixed column width. Zero sizes the column from its content.
	Width float64
}

// Table is one sheet worth of rows
type Table struct {
	Sheet   string
	Columns []Column
	Rows    []map[string]interface{}
}

// ExcelOptions configures workbook rendering
type ExcelOptions struct {
	FreezeHeader bool
	AutoFilter   bool
	NumberFormat string
	HeaderFill   string
	HeaderFont   string
}

// DefaultExcelOptions returns the house style for admin exports
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		HeaderFill:   "4472C4",
		HeaderFont:   "FFFFFF",
	}
}

// ExcelExporter writes one or more tables into a workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	sheets  int
	styles  struct {
		header, cell, number, date int
	}
}

// NewExcelExporter creates an empty workbook
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	e := &ExcelExporter{file: excelize.NewFile(), options: options}
	if err := e.createStyles(); err != nil {
		e.file.Close()
		return nil, err
	}
	return e, nil
}

// AddTable writes the table to a new sheet. The first table reuses the
// workbook's default sheet.
func (e *ExcelExporter) AddTable(table Table) error {
	sheet := table.Sheet
	if sheet == "" {
		sheet = fmt.Sprintf("Sheet%d", e.sheets+1)
	}

	if e.sheets == 0 {
		if err := e.file.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := e.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	e.sheets++

	widths := make([]float64, len(table.Columns))
	for i, col := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col.Title); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		e.file.SetCellStyle(sheet, cell, cell, e.styles.header)
		widths[i] = estimateWidth(col.Title)
	}

	for r, row := range table.Rows {
		for i, col := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			val := row[col.Key]
			if err := e.setCell(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", col.Key, r+1, err)
			}
			if w := estimateWidth(val); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i, col := range table.Columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		width := col.Width
		if width == 0 {
			width = clampWidth(widths[i])
		}
		e.file.SetColWidth(sheet, name, name, width)
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(table.Rows) > 0 && len(table.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), len(table.Rows)+1)
		if err := e.file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}
	return nil
}

// WriteTo writes the workbook
func (e *ExcelExporter) WriteTo(w io.Writer) (int64, error) {
	return e.file.WriteTo(w)
}

// Close releases the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) createStyles() error {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}

	var err error
	e.styles.header, err = e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: e.options.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	e.styles.cell, err = e.file.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}

	numFmt := e.options.NumberFormat
	e.styles.number, err = e.file.NewStyle(&excelize.Style{Border: border, CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	// 22 is the builtin m/d/yy h:mm format
	e.styles.date, err = e.file.NewStyle(&excelize.Style{Border: border, NumFmt: 22})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	return nil
}

func (e *ExcelExporter) setCell(sheet, cell string, val interface{}) error {
	style := e.styles.cell
	switch v := val.(type) {
	case nil:
		val = ""
	case time.Time:
		if v.IsZero() {
			val = ""
		} else {
			style = e.styles.date
		}
	case *time.Time:
		if v == nil || v.IsZero() {
			val = ""
		} else {
			val = *v
			style = e.styles.date
		}
	case float32, float64:
		if e.options.NumberFormat != "" {
			style = e.styles.number
		}
	case []string:
		val = joinTags(v)
	}

	if err := e.file.SetCellValue(sheet, cell, val); err != nil {
		return err
	}
	return e.file.SetCellStyle(sheet, cell, cell, style)
}

func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	if tags, ok := val.([]string); ok {
		val = joinTags(tags)
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

func clampWidth(w float64) float64 {
	switch {
	case w < 10:
		return 10
	case w > 50:
		return 50
	}
	return w
}
