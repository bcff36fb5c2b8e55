package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err = w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGetShpInZip(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"data/a.shp": "x",
		"data/a.dbf": "x",
		"data/a.cpg": "UTF-8",
		"b.SHP":      "x",
		"readme.txt": "x",
	})
	zipFile := filepath.Join(dir, "in.zip")
	if err := os.WriteFile(zipFile, archive, 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out")
	shps, err := GetShpInZip(zipFile, dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(shps) != 2 {
		t.Fatalf("shps = %v, want 2", shps)
	}
	if enc := GetShpEncoding(filepath.Join(dst, "data", "a.shp")); !IsUtf8Encoding(enc) {
		t.Errorf("encoding = %q, want UTF-8", enc)
	}
	if enc := GetShpEncoding(filepath.Join(dst, "b.SHP")); enc != "" {
		t.Errorf("encoding without cpg = %q", enc)
	}

	dst = filepath.Join(dir, "stream")
	if shps, err = GetShpInZipStream(bytes.NewReader(archive), dst); err != nil || len(shps) != 2 {
		t.Errorf("GetShpInZipStream = %v, %v", shps, err)
	}
	left, _ := os.ReadDir(dst)
	for _, e := range left {
		if HasExt(e.Name(), FILE_EXT_ZIP) {
			t.Errorf("spooled archive %s left behind", e.Name())
		}
	}

	noShp := buildZip(t, map[string]string{"a.txt": "x"})
	if _, err = GetShpInZipStream(bytes.NewReader(noShp), filepath.Join(dir, "none")); !errors.Is(err, ErrNoShpInZip) {
		t.Errorf("error = %v, want ErrNoShpInZip", err)
	}
}

func TestUnzipSlip(t *testing.T) {
	archive := buildZip(t, map[string]string{"../evil.shp": "x"})
	dir := t.TempDir()
	_, err := UnzipStream(bytes.NewReader(archive), filepath.Join(dir, "out"))
	if !errors.Is(err, ErrZipSlip) && !errors.Is(err, zip.ErrInsecurePath) {
		t.Errorf("error = %v, want ErrZipSlip", err)
	}
	if _, err = os.Stat(filepath.Join(dir, "evil.shp")); err == nil {
		t.Error("entry extracted outside the destination")
	}
}

func TestListFilesWithExt(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.csv", "a.CSV", "c.txt", "d.json"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	files, err := ListFilesWithExt(dir, ".csv", ".json")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := []string{"a.CSV", "b.csv", "d.json"}
	if len(names) != len(want) {
		t.Fatalf("files = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("files = %v, want %v", names, want)
			break
		}
	}
}

func TestGetUniqSubDir(t *testing.T) {
	parent := t.TempDir()
	a, err := GetUniqSubDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GetUniqSubDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if a == b || filepath.Dir(a) != parent {
		t.Errorf("sub dirs %s, %s", a, b)
	}
	if GetFilenameWithoutExt("/x/y/layer.name.shp") != "layer.name" {
		t.Error("GetFilenameWithoutExt")
	}
}
