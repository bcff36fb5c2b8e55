package sampledb

import (
	"context"
	"io"
)

// RawMappings is the user supplied field mapping, as decoded from JSON.
type RawMappings = map[string]any

// Sample is the canonical sample record, one per source row/feature.
type Sample struct {
	StartDate      string            `json:"start_date"`
	EndDate        string            `json:"end_date"`
	CollectionDate *string           `json:"collection_date"`
	Location       string            `json:"location"` // EWKT, SRID=4326
	ClassID        string            `json:"class_id"`
	UserID         *int64            `json:"user_id"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// Class is a land-cover class registered in a classification system.
type Class struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
	SystemID    int64  `json:"class_system_id"`
}

// Store persists classes and samples. Implemented by postgis.Accessor.
type Store interface {
	LoadClasses(ctx context.Context, systemID int64) ([]Class, error)
	InsertClasses(ctx context.Context, classes []Class) error
	InsertSamples(ctx context.Context, table string, samples []Sample) error
	// DefaultSystem is the classification system used when a driver has none.
	DefaultSystem() (int64, bool)
}

// Input is a driver entry: a file or directory path, or an uploaded stream.
type Input struct {
	Path string
	Name string // name of an uploaded stream, used for extension checks
	Body io.Reader
}

func PathInput(path string) Input {
	return Input{Path: path}
}

func StreamInput(name string, body io.Reader) Input {
	return Input{Name: name, Body: body}
}

func (in Input) IsStream() bool {
	return in.Body != nil
}

func (in Input) String() string {
	if in.IsStream() {
		if in.Name == "" {
			return "<stream>"
		}
		return in.Name
	}
	return in.Path
}
