package sampledb

import (
	"mime"
	"strings"
	"sync"
)

// Constructor builds a driver variant.
type Constructor func(entries Input, raw RawMappings, opts ...Option) (Driver, error)

var (
	registry = map[string]Constructor{}
	regLock  sync.RWMutex
)

func init() {
	tabular := func(entries Input, raw RawMappings, opts ...Option) (Driver, error) {
		d, err := NewTabularDriver(entries, raw, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	vector := func(entries Input, raw RawMappings, opts ...Option) (Driver, error) {
		d, err := NewVectorDriver(entries, raw, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	for _, mt := range []string{MIME_CSV, MIME_CSV_ALT, MIME_JSON} {
		Register(mt, tabular)
	}
	for _, mt := range []string{MIME_ZIP, MIME_ZIP_WIN, MIME_SHP, MIME_SHP_VND, MIME_SHP_GIS} {
		Register(mt, vector)
	}
}

// Register binds a content type to a driver variant.
func Register(contentType string, c Constructor) {
	regLock.Lock()
	registry[normalizeMediaType(contentType)] = c
	regLock.Unlock()
}

func normalizeMediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// DriverFor returns the driver variant registered for contentType;
// media type parameters are ignored.
func DriverFor(contentType string) (c Constructor, err error) {
	regLock.RLock()
	c, ok := registry[normalizeMediaType(contentType)]
	regLock.RUnlock()
	if !ok {
		err = &ConfigError{Msg: contentType, Err: ErrUnknownMimeType}
	}
	return
}

// NewDriver selects the driver for contentType and builds it.
func NewDriver(contentType string, entries Input, raw RawMappings, opts ...Option) (d Driver, err error) {
	c, err := DriverFor(contentType)
	if err != nil {
		return
	}
	opts = append([]Option{WithContentType(contentType)}, opts...)
	return c(entries, raw, opts...)
}

// ContentTypes lists the registered content types.
func ContentTypes() (types []string) {
	regLock.RLock()
	defer regLock.RUnlock()
	for mt := range registry {
		types = append(types, mt)
	}
	return
}
