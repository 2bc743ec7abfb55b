package batch

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Decode parses data as csv or xlsx according to ext.
func Decode(data []byte, ext string) (*Table, error) {
	switch ext {
	case ".csv":
		return decodeCSV(data)
	case ".xlsx":
		return decodeXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported input format %q", ext)
	}
}

// Encode serialises t as csv or xlsx according to ext.
func Encode(t *Table, ext string) ([]byte, error) {
	switch ext {
	case ".csv":
		return encodeCSV(t)
	case ".xlsx":
		return encodeXLSX(t)
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}
}

func decodeCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte(utf8BOM))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records), nil
}

func fromRecords(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}
	return &Table{Header: records[0], Rows: records[1:]}
}

func encodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	// Spreadsheet tools need the BOM to read Korean text as UTF-8.
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}
	sheet := sheets[0]
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	t := fromRecords(records)

	// HYPERLINK formulas written by Encode carry no cached value.
	for _, name := range []string{LinkColumn, KoreanLinkColumn} {
		col := t.Column(name)
		if col < 0 {
			continue
		}
		for i := range t.Rows {
			if t.Cell(i, col) != "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(sheet, cell)
			if err != nil || formula == "" {
				continue
			}
			for len(t.Rows[i]) <= col {
				t.Rows[i] = append(t.Rows[i], "")
			}
			t.Rows[i][col] = "=" + formula
		}
	}
	return t, nil
}

func encodeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(rowNum int, cells []string) error {
		for i, v := range cells {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return err
			}
			if formula, ok := strings.CutPrefix(v, "=HYPERLINK("); ok {
				if err := f.SetCellFormula(sheet, cell, "HYPERLINK("+formula); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, t.Header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range t.Rows {
		if err := write(i+2, row); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", i, err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
