package datasource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// table is a CSV file loaded into memory with trimmed headers and cell values.
type table struct {
	header   []string
	col      map[string]int
	rows     [][]string
	encoding string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readTable loads path, decoding it as UTF-8 when the bytes are valid UTF-8 and as GBK
// otherwise. A missing file yields (nil, nil).
func readTable(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datasource: read %s: %w", path, err)
	}

	enc := "utf-8"
	var r io.Reader
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		enc = "utf-8-sig"
		r = bytes.NewReader(data[len(utf8BOM):])
	case utf8.Valid(data):
		r = bytes.NewReader(data)
	default:
		enc = "gbk"
		r = transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("datasource: parse %s (%s): %w", path, enc, err)
	}
	if len(records) == 0 {
		return &table{col: map[string]int{}, encoding: enc}, nil
	}

	t := &table{col: make(map[string]int, len(records[0])), encoding: enc}
	for i, h := range records[0] {
		h = cleanCell(h)
		t.header = append(t.header, h)
		if _, dup := t.col[h]; !dup {
			t.col[h] = i
		}
	}
	t.rows = make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = cleanCell(v)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func cleanCell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func (t *table) has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.col[name]
	return ok
}

func (t *table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// get returns the first non-empty value among the named columns.
func (t *table) get(row []string, names ...string) string {
	for _, n := range names {
		i, ok := t.col[n]
		if !ok || i >= len(row) {
			continue
		}
		if v := row[i]; v != "" {
			return v
		}
	}
	return ""
}

// containsFold reports whether s contains sub, ignoring case.
func containsFold(s, sub string) bool {
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
