package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.csv")
	content := "Name,Description,Code\nForest,Native forest,F\n,skipped,\nWater,,W\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	classes, err := readClasses(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 2 {
		t.Fatalf("classes = %+v", classes)
	}
	if c := classes[0]; c.Name != "Forest" || c.Description != "Native forest" || c.Code != "F" || c.SystemID != 4 {
		t.Errorf("first class = %+v", c)
	}

	noName := filepath.Join(t.TempDir(), "bad.csv")
	if err = os.WriteFile(noName, []byte("code\nF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err = readClasses(noName, 4); err == nil {
		t.Error("csv without name column accepted")
	}
}

func TestReadMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	if err := os.WriteFile(path, []byte(`{"class_name": "cls", "latitude": "y", "longitude": "x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := readMappings("@" + path)
	if err != nil {
		t.Fatal(err)
	}
	if m["class_id"] != "cls" || m["latitude"] != "y" {
		t.Errorf("mappings = %v", m)
	}
	if _, err = readMappings(`{"geom": "g", "longitude": "x"}`); err == nil {
		t.Error("conflicting mappings accepted")
	}
}
