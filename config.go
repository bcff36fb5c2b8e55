package sampledb

const (
	FILE_EXT_SHP    = ".shp"
	FILE_EXT_CPG    = ".cpg"
	FILE_EXT_CSV    = ".csv"
	FILE_EXT_JSON   = ".json"
	FILE_EXT_ZIP    = ".zip"
	SHP_DRIVER_NAME = "ESRI Shapefile"
	UNIVERSAL_SRID  = 4326
	EWKT_PREFIX     = "SRID=%d;"

	MIME_CSV       = "text/csv"
	MIME_CSV_ALT   = "application/csv"
	MIME_JSON      = "application/json"
	MIME_ZIP       = "application/zip"
	MIME_ZIP_WIN   = "application/x-zip-compressed"
	MIME_SHP       = "application/x-esri-shape"
	MIME_SHP_VND   = "application/vnd.shp"
	MIME_SHP_GIS   = "x-gis/x-shapefile"
	MIME_OCTET     = "application/octet-stream"
	NULL_CLASS     = "None"
	COLUMN_ID      = "id"
	JSON_RECORDS   = "records"
	SQL_DISTINCT_T = `SELECT DISTINCT "%s" FROM "%s"`

	FIELD_CLASS_ID        = "class_id"
	FIELD_CLASS_NAME      = "class_name"
	FIELD_GEOM            = "geom"
	FIELD_GEOMETRY        = "geometry"
	FIELD_LATITUDE        = "latitude"
	FIELD_LONGITUDE       = "longitude"
	FIELD_SRID            = "srid"
	FIELD_START_DATE      = "start_date"
	FIELD_END_DATE        = "end_date"
	FIELD_COLLECTION_DATE = "collection_date"
	FIELD_KEY             = "key"
	FIELD_VALUE           = "value"

	ErrColumnMissingTemplate = `column %q missing in %s`
	ErrColumnEmptyTemplate   = `column %q is empty in %s (record %d)`
)
