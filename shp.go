package sampledb

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wgdzlh/sampledb/log"
	"github.com/wgdzlh/sampledb/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

var (
	emptyGeometry = gdal.Geometry{}
	emptyLayer    = gdal.Layer{}
)

// VectorDriver reads samples from shapefiles, plain or zipped.
type VectorDriver struct {
	baseDriver
	files []Input
}

func NewVectorDriver(entries Input, raw RawMappings, opts ...Option) (d *VectorDriver, err error) {
	b, err := newBaseDriver(entries, raw, "VectorDriver:", opts)
	if err != nil {
		return
	}
	d = &VectorDriver{baseDriver: b}
	return
}

// GetFiles extracts zipped entries into a scratch dir (removed by Close)
// and lists the shapefiles to load. Archives are extracted once.
func (d *VectorDriver) GetFiles() (files []Input, err error) {
	if d.files != nil {
		return d.files, nil
	}
	var shps []string
	switch {
	case d.entries.IsStream(), utils.HasExt(d.entries.Path, FILE_EXT_ZIP):
		if shps, err = d.extract(d.entries); err != nil {
			return
		}
	default:
		info, e := os.Stat(d.entries.Path)
		if e != nil {
			err = &IOError{Path: d.entries.Path, Err: e}
			return
		}
		if !info.IsDir() {
			return []Input{d.entries}, nil
		}
		if shps, err = utils.ListFilesWithExt(d.entries.Path, FILE_EXT_SHP); err != nil {
			err = &IOError{Path: d.entries.Path, Err: err}
			return
		}
	}
	for _, shp := range shps {
		files = append(files, PathInput(shp))
	}
	d.files = files
	log.Info(d.logTag+"got files", zap.Stringer("entries", d.entries), zap.Int("cnt", len(files)))
	return
}

// Close removes the extracted archives.
func (d *VectorDriver) Close() error {
	d.files = nil
	return d.baseDriver.Close()
}

func (d *VectorDriver) extract(in Input) (shps []string, err error) {
	dir, err := d.scratchDir()
	if err != nil {
		return
	}
	if in.IsStream() {
		shps, err = utils.GetShpInZipStream(in.Body, dir)
	} else {
		shps, err = utils.GetShpInZip(in.Path, dir)
	}
	if err != nil {
		err = &IOError{Path: in.String(), Err: err}
		return
	}
	log.Info(d.logTag+"zip extracted", zap.Stringer("zip", in), zap.String("dir", dir), zap.Int("shps", len(shps)))
	return
}

func (d *VectorDriver) LoadDataSets(ctx context.Context) error {
	return loadDataSets(ctx, &d.baseDriver, d)
}

func (d *VectorDriver) open(file Input) (ds gdal.DataSource, err error) {
	if file.IsStream() {
		err = &IOError{Path: file.String(), Err: fmt.Errorf("shapefile streams must be zipped")}
		return
	}
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(file.Path, 0)
	if !ok {
		err = &IOError{Path: file.Path}
	}
	return
}

func (d *VectorDriver) LoadClasses(ctx context.Context, file Input) (classes []string, err error) {
	ds, err := d.open(file)
	if err != nil {
		return
	}
	defer ds.Destroy()
	return d.validateClasses(ctx, ds, file.Path)
}

// Load validates the classes of the dataset once, then builds a sample per
// feature of every layer.
func (d *VectorDriver) Load(ctx context.Context, file Input) (err error) {
	ds, err := d.open(file)
	if err != nil {
		return
	}
	defer ds.Destroy()
	if _, err = d.validateClasses(ctx, ds, file.Path); err != nil {
		return
	}
	var (
		enc     = utils.GetShpEncoding(file.Path)
		samples []Sample
		layer   []Sample
	)
	for i, n := 0, ds.LayerCount(); i < n; i++ {
		if layer, err = d.buildLayer(ds.LayerByIndex(i), file.Path, enc); err != nil {
			return
		}
		samples = append(samples, layer...)
	}
	d.records = append(d.records, samples...)
	return
}

func (d *VectorDriver) validateClasses(ctx context.Context, ds gdal.DataSource, shp string) (classes []string, err error) {
	if classes, err = d.uniqueClasses(ds, shp); err != nil {
		return
	}
	err = d.resolver.Validate(ctx, classes)
	return
}

// classField is the first class candidate defined in the layer.
func (d *VectorDriver) classField(def gdal.FeatureDefinition, shp string) (name string, idx int, err error) {
	for _, k := range d.mappings.ClassID.Keys {
		if idx = def.FieldIndex(k); idx >= 0 {
			name = k
			return
		}
	}
	err = configErr(nil, ErrColumnMissingTemplate, strings.Join(d.mappings.ClassID.Keys, "|"), shp)
	return
}

// uniqueClasses runs SELECT DISTINCT over the layer named after the dataset
// file; unset values count as "None".
func (d *VectorDriver) uniqueClasses(ds gdal.DataSource, shp string) (classes []string, err error) {
	if d.mappings.ClassID.IsLiteral() {
		return []string{d.mappings.ClassID.Value}, nil
	}
	layerName := utils.GetFilenameWithoutExt(shp)
	layer := ds.LayerByName(layerName)
	if layer == emptyLayer {
		if ds.LayerCount() == 0 {
			return
		}
		layer = ds.LayerByIndex(0)
		layerName = layer.Name()
	}
	if cnt, _ := layer.FeatureCount(true); cnt == 0 {
		return
	}
	field, _, err := d.classField(layer.Definition(), shp)
	if err != nil {
		return
	}
	if !utils.CheckSQLIdent(field) || !utils.CheckSQLIdent(layerName) {
		err = configErr(nil, "unsupported class field %q or layer %q", field, layerName)
		return
	}
	res := ds.ExecuteSQL(fmt.Sprintf(SQL_DISTINCT_T, field, layerName), emptyGeometry, "")
	if res == emptyLayer {
		err = &IOError{Path: shp, Err: fmt.Errorf("distinct %q query failed", field)}
		return
	}
	defer ds.ReleaseResultSet(res)
	enc := utils.GetShpEncoding(shp)
	var feature *gdal.Feature
	for {
		if feature = res.NextFeature(); feature == nil {
			break
		}
		classes = append(classes, classValue(*feature, 0, enc))
		feature.Destroy()
	}
	classes = distinct(classes)
	log.Info(d.logTag+"got classes from shp", zap.String("file", shp), zap.String("field", field), zap.Strings("classes", classes))
	return
}

// layerFields are the field indices of a layer, -1 when absent or literal.
type layerFields struct {
	class, start, end, collection int
}

func (d *VectorDriver) resolveFields(def gdal.FeatureDefinition, shp string) (f layerFields, err error) {
	m := d.mappings
	f = layerFields{class: -1, start: -1, end: -1, collection: -1}
	if !m.ClassID.IsLiteral() {
		if _, f.class, err = d.classField(def, shp); err != nil {
			return
		}
	}
	if !m.StartDate.IsLiteral() {
		if f.start = def.FieldIndex(m.StartDate.Key); f.start < 0 {
			err = configErr(nil, ErrColumnMissingTemplate, m.StartDate.Key, shp)
			return
		}
	}
	if !m.EndDate.IsLiteral() {
		if f.end = def.FieldIndex(m.EndDate.Key); f.end < 0 {
			err = configErr(nil, ErrColumnMissingTemplate, m.EndDate.Key, shp)
			return
		}
	}
	if !m.CollectionDate.IsLiteral() {
		f.collection = def.FieldIndex(m.CollectionDate.Key)
	}
	return
}

func (d *VectorDriver) buildLayer(layer gdal.Layer, shp, enc string) (samples []Sample, err error) {
	ref, e := d.toolbox.LayerRef(layer.SpatialReference())
	if e != nil {
		log.Warn(d.logTag+"layer does not have projection, using EPSG:4326", zap.String("file", shp), zap.String("layer", layer.Name()))
		ref = EPSG(UNIVERSAL_SRID)
	}
	if cnt, ok := layer.FeatureCount(false); ok && cnt > 0 {
		samples = make([]Sample, 0, cnt)
	}
	var (
		f        layerFields
		resolved bool
		feature  *gdal.Feature
		s        Sample
	)
	layer.ResetReading()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		// empty layers need none of the mapped fields
		if !resolved {
			if f, err = d.resolveFields(layer.Definition(), shp); err != nil {
				feature.Destroy()
				return nil, err
			}
			resolved = true
		}
		s, err = d.buildDataSet(*feature, ref, f, shp, enc)
		feature.Destroy()
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return
}

func fieldString(feature gdal.Feature, idx int, enc string) string {
	if idx < 0 || !feature.IsFieldSet(idx) {
		return ""
	}
	return strings.TrimSpace(utils.DecodeString(feature.FieldAsString(idx), enc))
}

// classValue reads a class attribute, null and blank values are "None".
func classValue(feature gdal.Feature, idx int, enc string) string {
	if idx < 0 || !feature.IsFieldSet(idx) {
		return NULL_CLASS
	}
	if v := utils.DecodeString(feature.FieldAsString(idx), enc); v != "" {
		return v
	}
	return NULL_CLASS
}

func (d *VectorDriver) buildDataSet(feature gdal.Feature, ref SpatialRef, f layerFields, shp, enc string) (s Sample, err error) {
	m := d.mappings
	geo := feature.Geometry()
	if geo == emptyGeometry {
		err = configErr(nil, ErrColumnEmptyTemplate, FIELD_GEOMETRY, shp, feature.FID())
		return
	}
	if err = d.toolbox.Reproject(geo, ref, EPSG(UNIVERSAL_SRID)); err != nil {
		return
	}
	if s.Location, err = ToEWKT(geo, UNIVERSAL_SRID); err != nil {
		err = configErr(err, "export geometry of %s (record %d)", shp, feature.FID())
		return
	}
	if s.ClassID = m.ClassID.Value; !m.ClassID.IsLiteral() {
		s.ClassID = classValue(feature, f.class, enc)
	}
	start := m.StartDate.Value
	if !m.StartDate.IsLiteral() {
		start = fieldString(feature, f.start, enc)
	}
	if s.StartDate, err = requiredDate(FIELD_START_DATE, start); err != nil {
		return
	}
	end := m.EndDate.Value
	if !m.EndDate.IsLiteral() {
		end = fieldString(feature, f.end, enc)
	}
	if s.EndDate, err = requiredDate(FIELD_END_DATE, end); err != nil {
		return
	}
	collection := m.CollectionDate.Value
	if !m.CollectionDate.IsLiteral() {
		collection = fieldString(feature, f.collection, enc)
	}
	s.CollectionDate = optionalDate(collection)
	d.stamp(&s)
	return
}
