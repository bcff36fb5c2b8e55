package utils

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
	FILE_EXT_CPG = ".cpg"
	FILE_EXT_ZIP = ".zip"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"
)

var (
	ErrNoShpInZip = errors.New("no shp in zip")
	ErrZipSlip    = errors.New("zip entry escapes destination")
)

// GetUniqSubDir creates a uuid named directory under parentPath (the system
// temp dir when empty).
func GetUniqSubDir(parentPath string) (path string, err error) {
	if parentPath == "" {
		parentPath = os.TempDir()
	}
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

func HasExt(path string, exts ...string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// ListFilesWithExt lists the regular files of dir with one of exts, in
// directory listing order.
func ListFilesWithExt(dir string, exts ...string) (files []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !HasExt(e.Name(), exts...) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return
}

// Unzip extracts zipFile into dstDir and returns the extracted file paths in
// archive order.
func Unzip(zipFile, dstDir string) (files []string, err error) {
	zr, err := zip.OpenReader(zipFile)
	if err != nil {
		return
	}
	defer zr.Close()
	if err = os.MkdirAll(dstDir, os.ModePerm); err != nil {
		return
	}
	root, err := filepath.Abs(dstDir)
	if err != nil {
		return
	}
	var path string
	for _, f := range zr.File {
		path = filepath.Join(root, f.Name)
		if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
			err = fmt.Errorf("%w: %s", ErrZipSlip, f.Name)
			return
		}
		if f.FileInfo().IsDir() {
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				return
			}
			continue
		}
		if err = extractFile(f, path); err != nil {
			return
		}
		files = append(files, path)
	}
	return
}

func extractFile(f *zip.File, path string) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return
	}
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	if _, err = io.Copy(out, rc); err != nil {
		out.Close()
		return
	}
	return out.Close()
}

// UnzipStream spools r into dstDir and extracts it there.
func UnzipStream(r io.Reader, dstDir string) (files []string, err error) {
	tmp, err := os.CreateTemp(dstDir, "upload-*"+FILE_EXT_ZIP)
	if err != nil {
		return
	}
	zipFile := tmp.Name()
	defer os.Remove(zipFile)
	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	return Unzip(zipFile, dstDir)
}

// GetShpInZip extracts zipFile and returns every shapefile it holds.
func GetShpInZip(zipFile, dstDir string) (shps []string, err error) {
	files, err := Unzip(zipFile, dstDir)
	if err != nil {
		return
	}
	if shps = FilterExt(files, FILE_EXT_SHP); len(shps) == 0 {
		err = ErrNoShpInZip
	}
	return
}

// GetShpInZipStream is GetShpInZip for an uploaded archive.
func GetShpInZipStream(r io.Reader, dstDir string) (shps []string, err error) {
	files, err := UnzipStream(r, dstDir)
	if err != nil {
		return
	}
	if shps = FilterExt(files, FILE_EXT_SHP); len(shps) == 0 {
		err = ErrNoShpInZip
	}
	return
}

func FilterExt(files []string, exts ...string) (ret []string) {
	for _, f := range files {
		if HasExt(f, exts...) {
			ret = append(ret, f)
		}
	}
	return
}

// GetShpEncoding reads the .cpg sidecar of shp, empty when there is none.
func GetShpEncoding(shp string) (enc string) {
	b, err := os.ReadFile(strings.TrimSuffix(shp, filepath.Ext(shp)) + FILE_EXT_CPG)
	if err != nil {
		return
	}
	return strings.TrimSpace(string(b))
}

func IsUtf8Encoding(enc string) bool {
	enc = strings.ToUpper(enc)
	return enc == UTF_8 || enc == UTF8
}
