package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
)

// utf8BOM lets spreadsheet tools detect the encoding of Cyrillic ad text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV replaces path with a UTF-8 (BOM) comma-separated file of rows.
func WriteCSV(path string, rows []Row) error {
	return writeAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if _, err := bw.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
		cw := csv.NewWriter(bw)
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range rows {
			if err := cw.Write(r.record()); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return bw.Flush()
	})
}

// ReadCSV loads rows written by WriteCSV. The BOM is optional and every value is
// read as a string.
func ReadCSV(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: missing header", path)
	}
	if !slices.Equal(records[0], Header) {
		return nil, fmt.Errorf("parse %s: unexpected header %v", path, records[0])
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, Row{Bank: rec[0], Text: rec[1], Type: rec[2], Date: rec[3]})
	}
	return rows, nil
}
