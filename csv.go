package sampledb

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/wgdzlh/sampledb/log"
	"github.com/wgdzlh/sampledb/utils"

	"go.uber.org/zap"
)

// TabularDriver reads samples from CSV or JSON row sources.
type TabularDriver struct {
	baseDriver
}

func NewTabularDriver(entries Input, raw RawMappings, opts ...Option) (d *TabularDriver, err error) {
	b, err := newBaseDriver(entries, raw, "TabularDriver:", opts)
	if err != nil {
		return
	}
	d = &TabularDriver{baseDriver: b}
	return
}

// rows is a parsed tabular source.
type rows struct {
	name   string
	header []string
	data   [][]string
	colIdx map[string]int
}

func newRows(name string, header []string, data [][]string) *rows {
	t := &rows{name: name, header: header, data: data, colIdx: make(map[string]int, len(header))}
	for i, h := range header {
		if _, dup := t.colIdx[h]; !dup {
			t.colIdx[h] = i
		}
	}
	return t
}

func (t *rows) index(col string) int {
	if i, ok := t.colIdx[col]; ok {
		return i
	}
	return -1
}

func (d *TabularDriver) declaresJSON() bool {
	mt, _, err := mime.ParseMediaType(d.contentType)
	return err == nil && mt == MIME_JSON
}

func (d *TabularDriver) GetFiles() (files []Input, err error) {
	if d.entries.IsStream() {
		return []Input{d.entries}, nil
	}
	info, err := os.Stat(d.entries.Path)
	if err != nil {
		err = &IOError{Path: d.entries.Path, Err: err}
		return
	}
	if !info.IsDir() {
		return []Input{d.entries}, nil
	}
	exts := []string{FILE_EXT_CSV}
	if d.declaresJSON() {
		exts = append(exts, FILE_EXT_JSON)
	}
	paths, err := utils.ListFilesWithExt(d.entries.Path, exts...)
	if err != nil {
		err = &IOError{Path: d.entries.Path, Err: err}
		return
	}
	for _, p := range paths {
		files = append(files, PathInput(p))
	}
	log.Info(d.logTag+"got files", zap.String("dir", d.entries.Path), zap.Int("cnt", len(files)))
	return
}

func (d *TabularDriver) LoadDataSets(ctx context.Context) error {
	return loadDataSets(ctx, &d.baseDriver, d)
}

func (d *TabularDriver) LoadClasses(ctx context.Context, file Input) (classes []string, err error) {
	t, err := d.read(file)
	if err != nil {
		return
	}
	return d.validateClasses(ctx, t)
}

func (d *TabularDriver) Load(ctx context.Context, file Input) (err error) {
	t, err := d.read(file)
	if err != nil {
		return
	}
	if _, err = d.validateClasses(ctx, t); err != nil {
		return
	}
	samples, err := d.buildDataSet(t)
	if err != nil {
		return
	}
	d.records = append(d.records, samples...)
	return
}

func (d *TabularDriver) validateClasses(ctx context.Context, t *rows) (classes []string, err error) {
	if classes, err = d.uniqueClasses(t); err != nil {
		return
	}
	err = d.resolver.Validate(ctx, classes)
	return
}

// classColumn is the first class candidate present in the header.
func (d *TabularDriver) classColumn(t *rows) (idx int, err error) {
	for _, k := range d.mappings.ClassID.Keys {
		if idx = t.index(k); idx >= 0 {
			return
		}
	}
	err = configErr(nil, ErrColumnMissingTemplate, strings.Join(d.mappings.ClassID.Keys, "|"), t.name)
	return
}

func (d *TabularDriver) uniqueClasses(t *rows) (classes []string, err error) {
	if d.mappings.ClassID.IsLiteral() {
		return []string{d.mappings.ClassID.Value}, nil
	}
	if len(t.data) == 0 {
		return
	}
	idx, err := d.classColumn(t)
	if err != nil {
		return
	}
	values := make([]string, len(t.data))
	for i, row := range t.data {
		values[i] = row[idx]
	}
	classes = distinct(values)
	return
}

func (d *TabularDriver) read(file Input) (t *rows, err error) {
	var r io.Reader = file.Body
	if !file.IsStream() {
		f, e := os.Open(file.Path)
		if e != nil {
			err = &IOError{Path: file.Path, Err: e}
			return
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		err = &IOError{Path: file.String(), Err: err}
		return
	}
	data, enc, err := utils.DecodeText(raw, "")
	if err != nil {
		err = &IOError{Path: file.String(), Err: err}
		return
	}
	switch {
	case utils.HasExt(file.String(), FILE_EXT_JSON):
		t, err = parseJSONRows(file.String(), data)
	case utils.HasExt(file.String(), FILE_EXT_CSV):
		t, err = parseCSVRows(file.String(), data)
	case d.declaresJSON():
		t, err = parseJSONRows(file.String(), data)
	default:
		t, err = parseCSVRows(file.String(), data)
	}
	if err != nil {
		return
	}
	log.Info(d.logTag+"read rows", zap.Stringer("file", file), zap.String("enc", enc), zap.Int("rows", len(t.data)))
	return
}

func parseCSVRows(name string, data []byte) (t *rows, err error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return newRows(name, nil, nil), nil
	}
	if err != nil {
		err = &IOError{Path: name, Err: err}
		return
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	var (
		records [][]string
		row     []string
	)
	for {
		row, err = reader.Read()
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			err = &IOError{Path: name, Err: err}
			return
		}
		if isBlankRow(row) {
			continue
		}
		records = append(records, fitRow(row, len(header)))
	}
	return newRows(name, header, records), nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// fitRow pads or truncates row to n cells.
func fitRow(row []string, n int) []string {
	if len(row) == n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

// parseJSONRows accepts an array of objects or {"records": [...]}.
func parseJSONRows(name string, data []byte) (t *rows, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err = dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return newRows(name, nil, nil), nil
		}
		err = &IOError{Path: name, Err: err}
		return
	}
	if obj, ok := doc.(map[string]any); ok {
		doc = obj[JSON_RECORDS]
	}
	items, ok := doc.([]any)
	if !ok {
		err = &IOError{Path: name, Err: fmt.Errorf("expected an array of records, got %T", doc)}
		return
	}
	objs := make([]map[string]any, 0, len(items))
	cols := map[string]struct{}{}
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			err = &IOError{Path: name, Err: fmt.Errorf("record %d is %T, not an object", i, it)}
			return
		}
		for k := range obj {
			cols[k] = struct{}{}
		}
		objs = append(objs, obj)
	}
	header := make([]string, 0, len(cols))
	for k := range cols {
		header = append(header, k)
	}
	sort.Strings(header)
	records := make([][]string, len(objs))
	for i, obj := range objs {
		row := make([]string, len(header))
		for j, h := range header {
			row[j] = jsonCell(obj[h])
		}
		records[i] = row
	}
	return newRows(name, header, records), nil
}

func jsonCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// tabularColumns are the resolved column positions of a source, -1 when
// absent or literal.
type tabularColumns struct {
	class, geom, lat, lon  int
	start, end, collection int
	dropped                map[int]struct{}
}

func (d *TabularDriver) resolveColumns(t *rows) (c tabularColumns, err error) {
	m := d.mappings
	c = tabularColumns{class: -1, geom: -1, lat: -1, lon: -1, start: -1, end: -1, collection: -1}
	if !m.ClassID.IsLiteral() {
		if c.class, err = d.classColumn(t); err != nil {
			return
		}
	}
	mustIndex := func(col string) (idx int, e error) {
		if idx = t.index(col); idx < 0 {
			e = configErr(nil, ErrColumnMissingTemplate, col, t.name)
		}
		return
	}
	if m.UsesLatLon() {
		if c.lat, err = mustIndex(m.Latitude); err != nil {
			return
		}
		if c.lon, err = mustIndex(m.Longitude); err != nil {
			return
		}
	} else if c.geom, err = mustIndex(m.Geom); err != nil {
		return
	}
	if !m.StartDate.IsLiteral() {
		if c.start, err = mustIndex(m.StartDate.Key); err != nil {
			return
		}
	}
	if !m.EndDate.IsLiteral() {
		if c.end, err = mustIndex(m.EndDate.Key); err != nil {
			return
		}
	}
	if !m.CollectionDate.IsLiteral() {
		c.collection = t.index(m.CollectionDate.Key)
	}
	c.dropped = map[int]struct{}{}
	for _, col := range []string{COLUMN_ID, FIELD_LATITUDE, FIELD_LONGITUDE, FIELD_GEOMETRY, m.Latitude, m.Longitude, m.Geom} {
		if i := t.index(col); i >= 0 {
			c.dropped[i] = struct{}{}
		}
	}
	return
}

func cellOf(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// buildDataSet builds one sample per row. Nothing is returned when any row
// fails.
func (d *TabularDriver) buildDataSet(t *rows) (samples []Sample, err error) {
	if len(t.data) == 0 {
		return
	}
	c, err := d.resolveColumns(t)
	if err != nil {
		return
	}
	m := d.mappings
	samples = make([]Sample, 0, len(t.data))
	for i, row := range t.data {
		var s Sample
		if s.Location, err = d.location(t, c, row, i); err != nil {
			return nil, err
		}
		s.ClassID = m.ClassID.Value
		if !m.ClassID.IsLiteral() {
			s.ClassID = row[c.class]
		}
		if s.StartDate, err = requiredDate(FIELD_START_DATE, literalOr(m.StartDate, row, c.start)); err != nil {
			log.Error(d.logTag+"bad date", zap.String("file", t.name), zap.Int("row", i+1), zap.Error(err))
			return nil, err
		}
		if s.EndDate, err = requiredDate(FIELD_END_DATE, literalOr(m.EndDate, row, c.end)); err != nil {
			log.Error(d.logTag+"bad date", zap.String("file", t.name), zap.Int("row", i+1), zap.Error(err))
			return nil, err
		}
		s.CollectionDate = optionalDate(literalOr(m.CollectionDate, row, c.collection))
		s.Properties = make(map[string]string, len(t.header))
		for j, h := range t.header {
			if _, drop := c.dropped[j]; drop {
				continue
			}
			s.Properties[h] = row[j]
		}
		d.stamp(&s)
		samples = append(samples, s)
	}
	return
}

func literalOr(f FieldRef, row []string, idx int) string {
	if f.IsLiteral() {
		return f.Value
	}
	return cellOf(row, idx)
}

func (d *TabularDriver) location(t *rows, c tabularColumns, row []string, i int) (ewkt string, err error) {
	m := d.mappings
	if !m.UsesLatLon() {
		wkt := cellOf(row, c.geom)
		if wkt == "" {
			return "", configErr(nil, ErrColumnEmptyTemplate, m.Geom, t.name, i+1)
		}
		return d.toolbox.TransformWkt(wkt, m.SourceRef(), UNIVERSAL_SRID)
	}
	lat, err := strconv.ParseFloat(cellOf(row, c.lat), 64)
	if err != nil {
		return "", configErr(err, "invalid %s in %s (record %d)", m.Latitude, t.name, i+1)
	}
	lon, err := strconv.ParseFloat(cellOf(row, c.lon), 64)
	if err != nil {
		return "", configErr(err, "invalid %s in %s (record %d)", m.Longitude, t.name, i+1)
	}
	return d.toolbox.PointEWKT(lon, lat, m.SourceRef(), UNIVERSAL_SRID)
}
