package utils

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	ENC_UTF8   = "utf-8"
	ENC_LATIN1 = "latin-1"
)

var (
	cpgDigits = regexp.MustCompile(`^[0-9]+$`)
)

// DecodeText strips a BOM and converts b to UTF-8. Bytes that are not valid
// UTF-8 are decoded with charset, or Latin-1 when charset is empty or unknown.
func DecodeText(b []byte, charset string) (d []byte, used string, err error) {
	reader := transform.NewReader(bytes.NewReader(b), unicode.BOMOverride(encoding.Nop.NewDecoder()))
	if d, err = io.ReadAll(reader); err != nil {
		return
	}
	if utf8.Valid(d) {
		used = ENC_UTF8
		return
	}
	enc, used := LookupEncoding(charset)
	d, err = enc.NewDecoder().Bytes(d)
	return
}

// DecodeString is DecodeText for attribute values; NUL padding is dropped.
func DecodeString(s, charset string) string {
	if !IsUtf8Encoding(charset) && !utf8.ValidString(s) {
		if d, _, err := DecodeText([]byte(s), charset); err == nil {
			s = string(d)
		}
	}
	return PurifyForUtf8(s)
}

// LookupEncoding resolves an IANA name or a shapefile .cpg code page,
// falling back to Latin-1.
func LookupEncoding(charset string) (enc encoding.Encoding, name string) {
	charset = strings.TrimSpace(charset)
	if cpgDigits.MatchString(charset) {
		switch charset {
		case "88591":
			charset = "ISO-8859-1"
		default:
			charset = "windows-" + charset
		}
	}
	if charset != "" {
		if e, err := ianaindex.IANA.Encoding(charset); err == nil && e != nil {
			if n, err := ianaindex.IANA.Name(e); err == nil {
				return e, n
			}
			return e, charset
		}
	}
	return charmap.ISO8859_1, ENC_LATIN1
}

func PurifyForUtf8(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}

// CheckSQLIdent guards names interpolated into OGR SQL as quoted identifiers.
func CheckSQLIdent(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\"\x00")
}
