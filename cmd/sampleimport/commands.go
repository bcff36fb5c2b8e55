package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/log"

	"go.uber.org/zap"
)

var errUsage = errors.New("invalid arguments")

// readMappings accepts inline JSON or @path.
func readMappings(arg string) (m sampledb.RawMappings, err error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		if data, err = os.ReadFile(path); err != nil {
			return
		}
	}
	parsed, err := sampledb.ParseMappings(data)
	if err != nil {
		return
	}
	return parsed.Raw(), nil
}

func (a *app) runImport(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	var (
		contentType = fs.String("type", "", "content type of the source: "+strings.Join(sampledb.ContentTypes(), ", "))
		mappingsArg = fs.String("mappings", "", "field mappings, inline JSON or @file")
		system      = fs.Int64("system", 0, "classification system, the configured default when 0")
		user        = fs.Int64("user", 0, "owner of the samples, none when 0")
		table       = fs.String("table", a.cfg.Import.Table, "sample table")
		dryRun      = fs.Bool("dry-run", false, "validate and load without storing")
	)
	if err = fs.Parse(args); err != nil {
		return
	}
	if fs.NArg() != 1 || *contentType == "" || *mappingsArg == "" {
		fs.Usage()
		return errUsage
	}
	raw, err := readMappings(*mappingsArg)
	if err != nil {
		return
	}
	if err = a.connect(ctx); err != nil {
		return
	}

	opts := []sampledb.Option{sampledb.WithToolbox(a.gdal()), sampledb.WithTmpDir(a.cfg.Import.TmpDir)}
	if store := a.store(); store != nil {
		opts = append(opts, sampledb.WithStore(store))
	}
	if *system > 0 {
		opts = append(opts, sampledb.WithSystem(*system))
	}
	if *user > 0 {
		opts = append(opts, sampledb.WithUser(*user))
	}
	d, err := sampledb.NewDriver(*contentType, sampledb.PathInput(fs.Arg(0)), raw, opts...)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Import.Timeout)
	defer cancel()
	if *dryRun {
		defer d.Close()
		if err = d.LoadDataSets(ctx); err != nil {
			return
		}
		log.Info("dry run done", zap.String("path", fs.Arg(0)), zap.Int("samples", len(d.Records())))
		return
	}
	n, err := sampledb.Import(ctx, d, *table)
	if err != nil {
		return
	}
	log.Info("import done", zap.String("path", fs.Arg(0)), zap.String("table", *table), zap.Int("samples", n))
	return
}

// runClasses registers the classes listed in a name,description,code CSV.
func (a *app) runClasses(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("classes", flag.ContinueOnError)
	system := fs.Int64("system", 0, "classification system")
	if err = fs.Parse(args); err != nil {
		return
	}
	if fs.NArg() != 1 || *system <= 0 {
		fs.Usage()
		return errUsage
	}
	classes, err := readClasses(fs.Arg(0), *system)
	if err != nil {
		return
	}
	if err = a.connect(ctx); err != nil {
		return
	}
	store := a.store()
	if store == nil {
		return &sampledb.ConfigError{Err: sampledb.ErrNoStore}
	}
	registered, err := store.LoadClasses(ctx, *system)
	if err != nil {
		return
	}
	known := make(map[string]struct{}, len(registered))
	for _, c := range registered {
		known[c.Name] = struct{}{}
	}
	var fresh []sampledb.Class
	for _, c := range classes {
		if _, ok := known[c.Name]; !ok {
			fresh = append(fresh, c)
		}
	}
	if err = store.InsertClasses(ctx, fresh); err != nil {
		return
	}
	log.Info("classes registered", zap.Int64("system", *system), zap.Int("new", len(fresh)), zap.Int("skipped", len(classes)-len(fresh)))
	return
}

func readClasses(path string, system int64) (classes []sampledb.Class, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := idx["name"]
	if !ok {
		return nil, fmt.Errorf("%s has no name column", path)
	}
	cell := func(row []string, col string) string {
		if i, ok := idx[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	for {
		row, e := reader.Read()
		if errors.Is(e, io.EOF) {
			break
		}
		if e != nil {
			return nil, fmt.Errorf("read %s: %w", path, e)
		}
		if nameIdx >= len(row) || strings.TrimSpace(row[nameIdx]) == "" {
			continue
		}
		classes = append(classes, sampledb.Class{
			Name:        strings.TrimSpace(row[nameIdx]),
			Description: cell(row, "description"),
			Code:        cell(row, "code"),
			SystemID:    system,
		})
	}
	return
}
