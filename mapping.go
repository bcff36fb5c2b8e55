package sampledb

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FieldRef locates one sample attribute: a literal Value shared by every
// record, or the Key of the source column holding it. Value wins when set.
type FieldRef struct {
	Key   string
	Value string
}

func (f FieldRef) IsLiteral() bool {
	return f.Value != ""
}

func (f FieldRef) raw() map[string]any {
	raw := map[string]any{}
	if f.Key != "" {
		raw[FIELD_KEY] = f.Key
	}
	if f.Value != "" {
		raw[FIELD_VALUE] = f.Value
	}
	return raw
}

// ClassRef locates the sample class: a literal Value, or the first of Keys
// present in the source.
type ClassRef struct {
	Keys  []string
	Value string
}

func (c ClassRef) IsLiteral() bool {
	return c.Value != ""
}

// Mappings is the normalized field mapping of a driver.
type Mappings struct {
	ClassID        ClassRef
	Geom           string
	Latitude       string
	Longitude      string
	SRID           SpatialRef // source reference of tabular coordinates, nil is EPSG:4326
	StartDate      FieldRef
	EndDate        FieldRef
	CollectionDate FieldRef
}

func (m *Mappings) UsesLatLon() bool {
	return m.Geom == ""
}

// SourceRef is the spatial reference tabular coordinates are declared in.
func (m *Mappings) SourceRef() SpatialRef {
	if m.SRID == nil {
		return EPSG(UNIVERSAL_SRID)
	}
	return m.SRID
}

// Raw renders the normalized mapping back to its JSON form.
// ValidateMappings(m.Raw()) yields m again.
func (m *Mappings) Raw() RawMappings {
	raw := RawMappings{
		FIELD_START_DATE:      m.StartDate.raw(),
		FIELD_END_DATE:        m.EndDate.raw(),
		FIELD_COLLECTION_DATE: m.CollectionDate.raw(),
	}
	switch {
	case m.ClassID.IsLiteral():
		raw[FIELD_CLASS_ID] = map[string]any{FIELD_VALUE: m.ClassID.Value}
	case len(m.ClassID.Keys) == 1:
		raw[FIELD_CLASS_ID] = m.ClassID.Keys[0]
	default:
		keys := make([]any, len(m.ClassID.Keys))
		for i, k := range m.ClassID.Keys {
			keys[i] = k
		}
		raw[FIELD_CLASS_ID] = keys
	}
	if m.UsesLatLon() {
		raw[FIELD_LATITUDE] = m.Latitude
		raw[FIELD_LONGITUDE] = m.Longitude
	} else {
		raw[FIELD_GEOM] = m.Geom
	}
	switch ref := m.SRID.(type) {
	case EPSG:
		raw[FIELD_SRID] = int(ref)
	case Proj4:
		raw[FIELD_SRID] = string(ref)
	}
	return raw
}

// ParseMappings decodes a JSON mapping and validates it.
func ParseMappings(data []byte) (m *Mappings, err error) {
	var raw RawMappings
	if err = json.Unmarshal(data, &raw); err != nil {
		err = configErr(err, "decode mappings")
		return
	}
	return ValidateMappings(raw)
}

// ValidateMappings applies the mapping defaults and returns the normalized
// form. raw is never modified.
//
//   - class_id: source field (or list of candidate fields, or {value: ...}),
//     "class_name" is accepted as a legacy alias, default "class_id"
//   - geom: combined geometry field, default "geometry" unless
//     latitude/longitude are given
//   - srid: EPSG code or proj4 string of latitude/longitude, default 4326
//   - start_date, end_date, collection_date: field name, {key: ...} or
//     {value: ...}, default {key: <name>}
func ValidateMappings(raw RawMappings) (m *Mappings, err error) {
	if len(raw) == 0 {
		err = &ConfigError{Err: ErrNilMappings}
		return
	}
	m = &Mappings{}
	classRaw := raw[FIELD_CLASS_ID]
	if isFalsy(classRaw) {
		classRaw = raw[FIELD_CLASS_NAME]
	}
	if m.ClassID, err = classRefOf(classRaw); err != nil {
		return nil, err
	}

	if m.Geom, err = stringOf(FIELD_GEOM, raw[FIELD_GEOM]); err != nil {
		return nil, err
	}
	if m.Latitude, err = stringOf(FIELD_LATITUDE, raw[FIELD_LATITUDE]); err != nil {
		return nil, err
	}
	if m.Longitude, err = stringOf(FIELD_LONGITUDE, raw[FIELD_LONGITUDE]); err != nil {
		return nil, err
	}
	hasLatLon := m.Latitude != "" || m.Longitude != ""
	switch {
	case m.Geom != "" && hasLatLon:
		return nil, configErr(nil, "mappings declare both %s and %s/%s", FIELD_GEOM, FIELD_LATITUDE, FIELD_LONGITUDE)
	case hasLatLon && (m.Latitude == "" || m.Longitude == ""):
		return nil, configErr(nil, "mappings need both %s and %s", FIELD_LATITUDE, FIELD_LONGITUDE)
	case !hasLatLon && m.Geom == "":
		m.Geom = FIELD_GEOMETRY
	}

	if m.SRID, err = sridOf(raw[FIELD_SRID]); err != nil {
		return nil, err
	}

	if m.StartDate, err = fieldRefOf(FIELD_START_DATE, raw[FIELD_START_DATE]); err != nil {
		return nil, err
	}
	if m.EndDate, err = fieldRefOf(FIELD_END_DATE, raw[FIELD_END_DATE]); err != nil {
		return nil, err
	}
	if m.CollectionDate, err = fieldRefOf(FIELD_COLLECTION_DATE, raw[FIELD_COLLECTION_DATE]); err != nil {
		return nil, err
	}
	return
}

func classRefOf(v any) (ref ClassRef, err error) {
	if isFalsy(v) {
		ref.Keys = []string{FIELD_CLASS_ID}
		return
	}
	switch t := v.(type) {
	case string:
		ref.Keys = []string{t}
	case []string:
		ref.Keys = append(ref.Keys, t...)
	case []any:
		for _, k := range t {
			s, ok := k.(string)
			if !ok || s == "" {
				err = configErr(nil, "%s candidates must be field names, got %v", FIELD_CLASS_ID, k)
				return
			}
			ref.Keys = append(ref.Keys, s)
		}
	case map[string]any:
		if lit, ok := t[FIELD_VALUE]; ok {
			if ref.Value, err = scalarOf(FIELD_CLASS_ID, lit); err == nil && ref.Value == "" {
				err = configErr(nil, "%s value is empty", FIELD_CLASS_ID)
			}
			return
		}
		return classRefOf(t[FIELD_KEY])
	default:
		err = configErr(nil, "unsupported %s mapping %T", FIELD_CLASS_ID, v)
	}
	return
}

func fieldRefOf(name string, v any) (ref FieldRef, err error) {
	if isFalsy(v) {
		ref.Key = name
		return
	}
	switch t := v.(type) {
	case string:
		ref.Key = t
	case map[string]any:
		if lit, ok := t[FIELD_VALUE]; ok && !isFalsy(lit) {
			if ref.Value, err = scalarOf(name, lit); err != nil {
				return
			}
		}
		if key, ok := t[FIELD_KEY]; ok && !isFalsy(key) {
			if ref.Key, err = stringOf(name, key); err != nil {
				return
			}
		}
		if ref.Key == "" && ref.Value == "" {
			err = configErr(nil, "%s mapping needs %q or %q", name, FIELD_KEY, FIELD_VALUE)
		}
	default:
		err = configErr(nil, "unsupported %s mapping %T", name, v)
	}
	return
}

func sridOf(v any) (ref SpatialRef, err error) {
	if isFalsy(v) {
		return
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		code := s
		if len(s) > 5 && strings.EqualFold(s[:5], "EPSG:") {
			code = s[5:]
		}
		if n, e := strconv.Atoi(code); e == nil {
			ref = EPSG(n)
		} else {
			ref = Proj4(s)
		}
	case float64:
		ref = EPSG(int(t))
	case int:
		ref = EPSG(t)
	case int64:
		ref = EPSG(int(t))
	case json.Number:
		code, e := t.Int64()
		if e != nil {
			err = configErr(e, "%s", FIELD_SRID)
			return
		}
		ref = EPSG(int(code))
	default:
		err = configErr(nil, "unsupported %s mapping %T", FIELD_SRID, v)
	}
	return
}

func stringOf(name string, v any) (s string, err error) {
	if isFalsy(v) {
		return
	}
	s, ok := v.(string)
	if !ok {
		err = configErr(nil, "%s must be a field name, got %T", name, v)
	}
	return
}

func scalarOf(name string, v any) (s string, err error) {
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case json.Number:
		s = t.String()
	default:
		err = configErr(nil, "unsupported %s value %T", name, v)
	}
	return
}

// isFalsy mirrors the loose truthiness user mappings are written against:
// nil, "", 0, false and empty collections all mean "not set".
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		return t == "" || t == "0"
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
