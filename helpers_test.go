package sampledb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
)

// memStore is an in-memory Store.
type memStore struct {
	classes  map[int64][]Class
	def      *int64
	inserted map[string][]Sample
	added    []Class
	loads    int
}

func newMemStore(system int64, names ...string) *memStore {
	s := &memStore{
		classes:  map[int64][]Class{},
		inserted: map[string][]Sample{},
	}
	for i, n := range names {
		s.classes[system] = append(s.classes[system], Class{ID: int64(i + 1), Name: n, Code: n, SystemID: system})
	}
	return s
}

func (s *memStore) withDefault(id int64) *memStore {
	s.def = &id
	return s
}

func (s *memStore) LoadClasses(ctx context.Context, systemID int64) ([]Class, error) {
	s.loads++
	return s.classes[systemID], nil
}

func (s *memStore) InsertClasses(ctx context.Context, classes []Class) error {
	s.added = append(s.added, classes...)
	return nil
}

func (s *memStore) InsertSamples(ctx context.Context, table string, samples []Sample) error {
	s.inserted[table] = append(s.inserted[table], samples...)
	return nil
}

func (s *memStore) DefaultSystem() (int64, bool) {
	if s.def == nil {
		return 0, false
	}
	return *s.def, true
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type testFeature struct {
	wkt   string
	attrs map[string]string
}

// writeShapefile writes a point/polygon shapefile with string fields; srid 0
// writes no .prj.
func writeShapefile(t *testing.T, shp string, srid int, fields []string, feats ...testFeature) {
	t.Helper()
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Create(shp, nil)
	if !ok {
		t.Fatalf("create %s failed", shp)
	}
	ref := gdal.SpatialReference{}
	if srid > 0 {
		ref = gdal.CreateSpatialReference("")
		if err := ref.FromEPSG(srid); err != nil {
			t.Fatal(err)
		}
		defer ref.Destroy()
	}
	layer := ds.CreateLayer("", ref, gdal.GT_Unknown, []string{"ENCODING=UTF-8"})
	for _, name := range fields {
		fd := gdal.CreateFieldDefinition(name, gdal.FT_String)
		fd.SetWidth(64)
		if err := layer.CreateField(fd, false); err != nil {
			t.Fatal(err)
		}
		fd.Destroy()
	}
	def := layer.Definition()
	for i, tf := range feats {
		feature := def.Create()
		if err := feature.SetFID(int64(i)); err != nil {
			t.Fatal(err)
		}
		for j, name := range fields {
			if v, ok := tf.attrs[name]; ok {
				feature.SetFieldString(j, v)
			}
		}
		geo, err := gdal.CreateFromWKT(tf.wkt, ref)
		if err != nil {
			t.Fatal(err)
		}
		if err = feature.SetGeometryDirectly(geo); err != nil {
			t.Fatal(err)
		}
		if err = layer.Create(feature); err != nil {
			t.Fatal(err)
		}
		feature.Destroy()
	}
	ds.Destroy()
}
