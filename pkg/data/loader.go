package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoHeader is returned for a CSV input without a header row.
var ErrNoHeader = errors.New("data: csv has no header")

// ReadCSVFile reads a CSV file with a header row into a Frame.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := ReadCSV(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ReadCSV reads CSV records with a header row. A column is numeric when every
// non-missing cell parses as a float, so a column of only missing cells ("",
// "NA", "N/A", "null") is numeric and all NaN. Duplicate header names are an
// error.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, len(header))
	copy(names, header)
	if len(names) > 0 {
		names[0] = strings.TrimPrefix(names[0], "\ufeff")
	}

	raw := make([][]string, len(names))
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for j := range names {
			raw[j] = append(raw[j], rec[j])
		}
	}

	n := 0
	if len(raw) > 0 {
		n = len(raw[0])
	}
	f := NewFrame(n)
	for j, name := range names {
		if name == "" {
			// pandas writes its index as an unnamed first column
			name = IndexColumn(j)
		}
		if f.Has(name) {
			return nil, &ColumnError{Name: name, Msg: "duplicate header"}
		}
		if nums, ok := parseFloats(raw[j]); ok {
			err = f.SetFloat(name, nums)
		} else {
			err = f.SetText(name, raw[j])
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// IndexColumn is the name ReadCSV gives the unnamed header cell at position j.
func IndexColumn(j int) string { return fmt.Sprintf("column_%d", j) }

// IsIndexColumn reports whether name was generated for an unnamed header cell.
func IsIndexColumn(name string) bool {
	rest, ok := strings.CutPrefix(name, "column_")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

func parseFloats(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, s := range cells {
		s = strings.TrimSpace(s)
		if isMissing(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func isMissing(s string) bool {
	switch s {
	case "", "NA", "N/A", "null":
		return true
	}
	return false
}

// WriteCSVFile writes f to path, creating parent directories.
func (f *Frame) WriteCSVFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := f.WriteCSV(w); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes a header row and all rows. NaN is written as an empty cell.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return err
	}
	rec := make([]string, len(f.cols))
	for i := 0; i < f.n; i++ {
		for j, c := range f.cols {
			if c.num != nil {
				rec[j] = formatFloat(c.num[i])
			} else {
				rec[j] = c.text[i]
			}
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
