// Package csvutil turns uploaded CSV bytes into header-keyed records.
package csvutil

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var ErrInvalidCSV = errors.New("invalid csv")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads data as UTF-8 CSV whose first row is the header and returns one map per
// data row, in file order. Keys and values are trimmed; columns with a blank header are
// dropped; short rows simply lack the trailing keys. Blank lines are skipped.
// Quotes inside unquoted fields are taken literally.
func Parse(data []byte) ([]map[string]string, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: content is not valid utf-8", ErrInvalidCSV)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	// a stray quote inside an unquoted field is kept as text
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.TrimSpace(h)
	}

	out := make([]map[string]string, 0)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		row := make(map[string]string, len(keys))
		for i, v := range rec {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			row[keys[i]] = strings.TrimSpace(v)
		}
		out = append(out, row)
	}
	return out, nil
}
