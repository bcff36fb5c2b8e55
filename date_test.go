package sampledb

import (
	"errors"
	"testing"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"04-02-2014", "2014-02-04"},
		{"04/02/2014", "2014-02-04"},
		{"2014-02-04", "2014-02-04"},
		{"2014/02/04", "2014-02-04"},
		{" 31/12/1985 ", "1985-12-31"},
		{"4/2/2014", "2014-02-04"},
		{"4-2-2014", "2014-02-04"},
		{"2014-2-4", "2014-02-04"},
		{"1/06/2019", "2019-06-01"},
	}
	for _, c := range cases {
		got, err := NormalizeDate(c.in)
		if err != nil {
			t.Errorf("NormalizeDate(%q) error = %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeDateInvalid(t *testing.T) {
	for _, in := range []string{"not-a-date", "", "2014-13-01", "32/01/2014", "2014"} {
		_, err := NormalizeDate(in)
		var de *DateFormatError
		if !errors.As(err, &de) || !errors.Is(err, ErrDateFormat) {
			t.Errorf("NormalizeDate(%q) error = %v, want DateFormatError", in, err)
		}
	}
}

func TestDatePolicy(t *testing.T) {
	if _, err := requiredDate(FIELD_START_DATE, ""); !errors.Is(err, ErrDateFormat) {
		t.Errorf("requiredDate(\"\") error = %v, want ErrDateFormat", err)
	}
	if d := optionalDate("garbage"); d != nil {
		t.Errorf("optionalDate(garbage) = %q, want nil", *d)
	}
	if d := optionalDate(""); d != nil {
		t.Errorf("optionalDate(\"\") = %q, want nil", *d)
	}
	if d := optionalDate("01/06/2019"); d == nil || *d != "2019-06-01" {
		t.Errorf("optionalDate(01/06/2019) = %v, want 2019-06-01", d)
	}
}
