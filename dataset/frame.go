// Package dataset reads tabular CSV data into a column-addressable Frame.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// Frame is a header plus string records. Columns are addressed by name.
type Frame struct {
	header  []string
	records [][]string
	index   map[string]int
}

// NewFrame validates that every record has one cell per header column.
func NewFrame(header []string, records [][]string) (*Frame, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; dup {
			return nil, errors.NewValidationError("header", "duplicate column", name)
		}
		index[name] = i
	}
	for _, rec := range records {
		if len(rec) != len(header) {
			return nil, errors.NewDimensionError("dataset.NewFrame", len(header), len(rec), 1)
		}
	}
	h := make([]string, len(header))
	for i, name := range header {
		h[i] = strings.TrimSpace(name)
	}
	return &Frame{header: h, records: records, index: index}, nil
}

// ReadCSV loads a CSV file whose first row is the header.
func ReadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads CSV data whose first row is the header.
func ParseCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "read csv header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv records")
	}
	return NewFrame(header, records)
}

// WriteCSV writes the frame with its header.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(f.records); err != nil {
		return errors.Wrap(err, "write csv records")
	}
	return nil
}

// SaveCSV writes the frame to path, creating parent directories.
func (f *Frame) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := f.WriteCSV(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Len returns the number of records.
func (f *Frame) Len() int { return len(f.records) }

// Columns returns the column names in file order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.header...)
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "not found", name)
	}
	out := make([]string, len(f.records))
	for i, rec := range f.records {
		out[i] = rec[j]
	}
	return out, nil
}

// Floats parses the named column. Empty cells and NA markers become NaN.
func (f *Frame) Floats(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, s := range col {
		if IsMissing(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.NewValueError("dataset.Floats",
				"column "+strconv.Quote(name)+" row "+strconv.Itoa(i)+": "+strconv.Quote(s)+" is not a number")
		}
		out[i] = v
	}
	return out, nil
}

// Drop returns a frame without the named column. The receiver is unchanged.
func (f *Frame) Drop(name string) (*Frame, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "not found", name)
	}
	header := make([]string, 0, len(f.header)-1)
	header = append(header, f.header[:j]...)
	header = append(header, f.header[j+1:]...)
	records := make([][]string, len(f.records))
	for i, rec := range f.records {
		r := make([]string, 0, len(rec)-1)
		r = append(r, rec[:j]...)
		r = append(r, rec[j+1:]...)
		records[i] = r
	}
	return NewFrame(header, records)
}

// WithColumn returns a frame with values appended as a new last column.
func (f *Frame) WithColumn(name string, values []string) (*Frame, error) {
	if len(values) != f.Len() {
		return nil, errors.NewDimensionError("dataset.WithColumn", f.Len(), len(values), 0)
	}
	header := append(append([]string(nil), f.header...), name)
	records := make([][]string, len(f.records))
	for i, rec := range f.records {
		records[i] = append(append(make([]string, 0, len(rec)+1), rec...), values[i])
	}
	return NewFrame(header, records)
}

// Rows returns a frame holding the given records in order.
func (f *Frame) Rows(idx []int) *Frame {
	records := make([][]string, len(idx))
	for i, r := range idx {
		records[i] = append([]string(nil), f.records[r]...)
	}
	return &Frame{header: f.header, records: records, index: f.index}
}

// TrainTestSplit shuffles the records with seed and holds out testSize of them.
func (f *Frame) TrainTestSplit(testSize float64, seed uint64) (train, test *Frame, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := f.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, errors.NewValueError("dataset.TrainTestSplit", "not enough records to split")
	}
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return f.Rows(perm[nTest:]), f.Rows(perm[:nTest]), nil
}

var missingMarkers = map[string]bool{"": true, "na": true, "nan": true, "null": true, "n/a": true}

// IsMissing reports whether a cell is an empty or NA marker.
func IsMissing(s string) bool {
	return missingMarkers[strings.ToLower(strings.TrimSpace(s))]
}
