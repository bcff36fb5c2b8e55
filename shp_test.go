package sampledb

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

var shpFields = []string{"class", "start", "end", "coll"}

var shpMappings = RawMappings{
	"class_id":        "class",
	"start_date":      "start",
	"end_date":        "end",
	"collection_date": "coll",
}

func newTestVector(t *testing.T, in Input, raw RawMappings, store Store, opts ...Option) *VectorDriver {
	t.Helper()
	opts = append([]Option{WithStore(store), WithSystem(1)}, opts...)
	d, err := NewVectorDriver(in, raw, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleFeatures() []testFeature {
	return []testFeature{
		{"POINT (-48 -10)", map[string]string{"class": "Forest", "start": "2020-01-01", "end": "31/12/2020", "coll": "2020-06-05"}},
		{"POINT (-49 -11)", map[string]string{"class": "Water", "start": "2020-01-01", "end": "2020-12-31", "coll": "not a date"}},
		{"POINT (-50 -12)", map[string]string{"start": "2020-01-01", "end": "2020-12-31"}},
	}
}

func TestVectorLoad(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "samples.shp")
	writeShapefile(t, shp, 4326, shpFields, sampleFeatures()...)

	store := newMemStore(1, "Forest", "Water", NULL_CLASS)
	d := newTestVector(t, PathInput(shp), shpMappings, store, WithUser(7))

	classes, err := d.LoadClasses(context.Background(), PathInput(shp))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(classes)
	if want := []string{"Forest", NULL_CLASS, "Water"}; !reflect.DeepEqual(classes, want) {
		t.Errorf("classes = %v, want %v", classes, want)
	}

	if err = d.LoadDataSets(context.Background()); err != nil {
		t.Fatal(err)
	}
	recs := d.Records()
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Location != "SRID=4326;POINT (-48 -10)" {
		t.Errorf("location = %q", recs[0].Location)
	}
	if recs[0].ClassID != "Forest" || recs[0].EndDate != "2020-12-31" {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[0].CollectionDate == nil || *recs[0].CollectionDate != "2020-06-05" {
		t.Errorf("collection date = %v", recs[0].CollectionDate)
	}
	if recs[1].CollectionDate != nil {
		t.Errorf("unparsable collection date kept: %q", *recs[1].CollectionDate)
	}
	if recs[2].ClassID != NULL_CLASS {
		t.Errorf("unset class = %q, want %q", recs[2].ClassID, NULL_CLASS)
	}
	for _, s := range recs {
		if s.UserID == nil || *s.UserID != 7 {
			t.Errorf("user = %v, want 7", s.UserID)
		}
	}
}

func TestVectorLayerNameWithParens(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "amostras (1).shp")
	writeShapefile(t, shp, 4326, shpFields, sampleFeatures()[:2]...)

	d := newTestVector(t, PathInput(shp), shpMappings, newMemStore(1, "Forest", "Water"))
	classes, err := d.LoadClasses(context.Background(), PathInput(shp))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(classes)
	if want := []string{"Forest", "Water"}; !reflect.DeepEqual(classes, want) {
		t.Errorf("classes = %v, want %v", classes, want)
	}
	if err = d.LoadDataSets(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(d.Records()); n != 2 {
		t.Errorf("got %d records, want 2", n)
	}
}

func TestVectorReprojects(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "merc.shp")
	x, y := convert4326To3857(-48, -10)
	writeShapefile(t, shp, 3857, shpFields, testFeature{
		wkt:   fmt.Sprintf("POINT (%f %f)", x, y),
		attrs: map[string]string{"class": "Forest", "start": "2020-01-01", "end": "2020-12-31"},
	})
	d := newTestVector(t, PathInput(shp), shpMappings, newMemStore(1, "Forest"))
	if err := d.LoadDataSets(context.Background()); err != nil {
		t.Fatal(err)
	}
	geo := parseEWKT(t, d.Records()[0].Location, UNIVERSAL_SRID)
	defer geo.Destroy()
	if math.Abs(geo.X(0)+48) > 1e-6 || math.Abs(geo.Y(0)+10) > 1e-6 {
		t.Errorf("point = (%f, %f), want (-48, -10)", geo.X(0), geo.Y(0))
	}
}

func TestVectorNoProjection(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "noprj.shp")
	writeShapefile(t, shp, 0, shpFields, sampleFeatures()[0])
	d := newTestVector(t, PathInput(shp), shpMappings, newMemStore(1, "Forest"))
	if err := d.LoadDataSets(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := d.Records()[0].Location; got != "SRID=4326;POINT (-48 -10)" {
		t.Errorf("location = %q", got)
	}
}

func TestVectorUnregisteredClass(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "samples.shp")
	writeShapefile(t, shp, 4326, shpFields, sampleFeatures()...)
	d := newTestVector(t, PathInput(shp), shpMappings, newMemStore(1, "Forest", "Water"))
	err := d.LoadDataSets(context.Background())
	var ve *ValidationError
	if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Unregistered, []string{NULL_CLASS}) {
		t.Fatalf("LoadDataSets error = %v, want None unregistered", err)
	}
	if len(d.Records()) != 0 {
		t.Errorf("records = %d, want none", len(d.Records()))
	}
}

func TestVectorBadDate(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "dates.shp")
	feats := sampleFeatures()[:1]
	feats = append(feats, testFeature{"POINT (1 1)", map[string]string{"class": "Forest", "start": "yesterday", "end": "2020-12-31"}})
	writeShapefile(t, shp, 4326, shpFields, feats...)
	d := newTestVector(t, PathInput(shp), shpMappings, newMemStore(1, "Forest"))
	err := d.LoadDataSets(context.Background())
	var de *DateFormatError
	if !errors.As(err, &de) || de.Field != FIELD_START_DATE || de.Value != "yesterday" {
		t.Fatalf("LoadDataSets error = %v, want start_date DateFormatError", err)
	}
	if len(d.Records()) != 0 {
		t.Errorf("records = %d, want none", len(d.Records()))
	}
}

func zipDir(t *testing.T, dir string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		w, err := zw.Create("layers/" + e.Name())
		if err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if _, err = io.Copy(w, f); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestVectorZip(t *testing.T) {
	src := t.TempDir()
	writeShapefile(t, filepath.Join(src, "a.shp"), 4326, shpFields, sampleFeatures()[:2]...)
	writeShapefile(t, filepath.Join(src, "b.shp"), 4326, shpFields, sampleFeatures()[:1]...)
	archive := zipDir(t, src)

	work := t.TempDir()
	zipPath := writeFile(t, work, "upload.zip", string(archive))
	scratch := t.TempDir()
	store := newMemStore(1, "Forest", "Water")

	for _, in := range []Input{PathInput(zipPath), StreamInput("upload.zip", bytes.NewReader(archive))} {
		d, err := NewVectorDriver(in, shpMappings, WithStore(store), WithSystem(1), WithTmpDir(scratch))
		if err != nil {
			t.Fatal(err)
		}
		files, err := d.GetFiles()
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 2 {
			t.Errorf("%s: got %d shapefiles, want 2", in, len(files))
		}
		if err = d.LoadDataSets(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(d.Records()) != 3 {
			t.Errorf("%s: got %d records, want 3", in, len(d.Records()))
		}
		if err = d.Close(); err != nil {
			t.Fatal(err)
		}
		left, _ := os.ReadDir(scratch)
		if len(left) != 0 {
			t.Errorf("%s: scratch dir not cleaned: %v", in, left)
		}
	}
}

func TestVectorBadInput(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "broken.shp", "not a shapefile")
	d := newTestVector(t, PathInput(bad), shpMappings, newMemStore(1))
	if err := d.LoadDataSets(context.Background()); !errors.Is(err, ErrIO) {
		t.Errorf("LoadDataSets error = %v, want IOError", err)
	}

	empty := writeFile(t, dir, "empty.zip", string(zipDir(t, t.TempDir())))
	d = newTestVector(t, PathInput(empty), shpMappings, newMemStore(1))
	if _, err := d.GetFiles(); !errors.Is(err, ErrIO) {
		t.Errorf("GetFiles error = %v, want IOError", err)
	}

	d = newTestVector(t, StreamInput("plain.shp", bytes.NewReader(nil)), shpMappings, newMemStore(1))
	if err := d.LoadDataSets(context.Background()); !errors.Is(err, ErrIO) {
		t.Errorf("LoadDataSets on a raw stream = %v, want IOError", err)
	}
}
