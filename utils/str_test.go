package utils

import "testing"

func TestDecodeText(t *testing.T) {
	cases := []struct {
		name, in, charset, want, used string
	}{
		{"utf-8", "Pântano", "", "Pântano", ENC_UTF8},
		{"bom", "\xef\xbb\xbfclass", "", "class", ENC_UTF8},
		{"latin-1 fallback", "P\xe2ntano", "", "Pântano", ENC_LATIN1},
		{"cpg code page", "a\x80", "1252", "a€", "windows-1252"},
		{"unknown charset", "\xe9", "no-such-charset", "é", ENC_LATIN1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, used, err := DecodeText([]byte(c.in), c.charset)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != c.want || used != c.used {
				t.Errorf("DecodeText = %q (%s), want %q (%s)", got, used, c.want, c.used)
			}
		})
	}
}

func TestDecodeString(t *testing.T) {
	if got := DecodeString("Forest\x00\x00", UTF_8); got != "Forest" {
		t.Errorf("DecodeString = %q", got)
	}
	if got := DecodeString("\xc7", "88591"); got != "Ç" {
		t.Errorf("DecodeString = %q", got)
	}
}

func TestCheckSQLIdent(t *testing.T) {
	for _, ok := range []string{"class_id", "Classe 2", "área.v1", "my-layer", "amostras (1)", "a'b"} {
		if !CheckSQLIdent(ok) {
			t.Errorf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"", `a"b`, `x" FROM y; --`, "a\x00b"} {
		if CheckSQLIdent(bad) {
			t.Errorf("%q accepted", bad)
		}
	}
}
