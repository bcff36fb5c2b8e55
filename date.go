package sampledb

import (
	"strings"
	"time"
)

const (
	DATE_LAYOUT     = "2006-01-02"
	DATE_LAYOUT_ISO = "2006-1-2"
	DATE_LAYOUT_BR  = "2-1-2006"
)

// NormalizeDate parses YYYY-MM-DD, DD-MM-YYYY or DD/MM/YYYY, with or without
// leading zeros, and returns the date as YYYY-MM-DD.
func NormalizeDate(text string) (date string, err error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "/", "-")
	t, e := time.Parse(DATE_LAYOUT_ISO, s)
	if e != nil {
		if t, e = time.Parse(DATE_LAYOUT_BR, s); e != nil {
			err = &DateFormatError{Value: text}
			return
		}
	}
	date = t.Format(DATE_LAYOUT)
	return
}

// requiredDate normalizes start_date/end_date: a missing or malformed value
// fails the record.
func requiredDate(field, text string) (date string, err error) {
	if date, err = NormalizeDate(text); err != nil {
		err = &DateFormatError{Value: text, Field: field}
	}
	return
}

// optionalDate normalizes collection_date: a missing or malformed value
// leaves the date absent.
func optionalDate(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	date, err := NormalizeDate(text)
	if err != nil {
		return nil
	}
	return &date
}
