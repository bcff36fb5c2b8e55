package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/log"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	FORM_FILE         = "file"
	FORM_MAPPINGS     = "mappings"
	FORM_CONTENT_TYPE = "content_type"
	FORM_SYSTEM       = "system"
	FORM_USER         = "user"
	FORM_TABLE        = "table"
	FORM_DRY_RUN      = "dry_run"

	multipartMemory = 32 << 20
	previewSize     = 20
)

// ImportResponse reports one import. Preview holds the first samples of a
// dry run, Mappings the normalized mappings it was read with.
type ImportResponse struct {
	ID       string               `json:"id"`
	File     string               `json:"file"`
	Samples  int                  `json:"samples"`
	Stored   bool                 `json:"stored"`
	Table    string               `json:"table,omitempty"`
	Preview  []sampledb.Sample    `json:"preview,omitempty"`
	Mappings sampledb.RawMappings `json:"mappings,omitempty"`
}

var extContentTypes = map[string]string{
	sampledb.FILE_EXT_CSV:  sampledb.MIME_CSV,
	sampledb.FILE_EXT_JSON: sampledb.MIME_JSON,
	sampledb.FILE_EXT_ZIP:  sampledb.MIME_ZIP,
}

// contentTypeOf prefers the declared type, then the part header, then the
// file extension.
func contentTypeOf(declared, part, filename string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if part != "" && !strings.HasPrefix(part, sampledb.MIME_OCTET) {
		if _, err := sampledb.DriverFor(part); err == nil {
			return part
		}
	}
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return part
}

func formInt(r *http.Request, name string) (v *int64, err error) {
	s := strings.TrimSpace(r.FormValue(name))
	if s == "" {
		return
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		err = fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
		return
	}
	return &n, nil
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(FORM_FILE)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: missing %s: %w", errBadRequest, FORM_FILE, err))
		return
	}
	defer file.Close()

	var raw sampledb.RawMappings
	if err = json.Unmarshal([]byte(r.FormValue(FORM_MAPPINGS)), &raw); err != nil {
		respondError(w, r, &sampledb.ConfigError{Msg: "decode " + FORM_MAPPINGS, Err: err})
		return
	}
	system, err := formInt(r, FORM_SYSTEM)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user, err := formInt(r, FORM_USER)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table := strings.TrimSpace(r.FormValue(FORM_TABLE))
	if table == "" {
		table = s.cfg.Import.Table
	}
	dryRun, _ := strconv.ParseBool(r.FormValue(FORM_DRY_RUN))

	opts := []sampledb.Option{
		sampledb.WithToolbox(s.toolbox),
		sampledb.WithTmpDir(s.cfg.Import.TmpDir),
	}
	if store := s.store(); store != nil {
		opts = append(opts, sampledb.WithStore(store))
	}
	if system != nil {
		opts = append(opts, sampledb.WithSystem(*system))
	}
	if user != nil {
		opts = append(opts, sampledb.WithUser(*user))
	}

	ct := contentTypeOf(r.FormValue(FORM_CONTENT_TYPE), header.Header.Get("Content-Type"), header.Filename)
	d, err := sampledb.NewDriver(ct, sampledb.StreamInput(header.Filename, file), raw, opts...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.Info(s.logTag+"import started", zap.String("id", id), zap.String("file", header.Filename),
		zap.String("content_type", ct), zap.Int64("size", header.Size), zap.Bool("dry_run", dryRun))

	resp := ImportResponse{ID: id, File: header.Filename}
	if dryRun {
		err = d.LoadDataSets(r.Context())
		if cErr := d.Close(); err == nil {
			err = cErr
		}
		if err == nil {
			records := d.Records()
			resp.Samples = len(records)
			resp.Preview = records[:min(len(records), previewSize)]
			resp.Mappings = d.Mappings().Raw()
		}
	} else {
		resp.Table = table
		resp.Samples, err = sampledb.Import(r.Context(), d, table)
		resp.Stored = err == nil
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.Info(s.logTag+"import done", zap.String("id", id), zap.Int("samples", resp.Samples), zap.Bool("stored", resp.Stored))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	system, err := strconv.ParseInt(chi.URLParam(r, "system"), 10, 64)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid classification system", errBadRequest))
		return
	}
	store := s.store()
	if store == nil {
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no database configured", Code: "no_store"})
		return
	}
	classes, err := store.LoadClasses(r.Context(), system)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if classes == nil {
		classes = []sampledb.Class{}
	}
	respondJSON(w, http.StatusOK, classes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"store":         s.stores != nil,
		"content_types": sampledb.ContentTypes(),
	})
}
