package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/config"
	"github.com/wgdzlh/sampledb/log"
	"github.com/wgdzlh/sampledb/postgis"
	"github.com/wgdzlh/sampledb/web"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: sampleimport <command> [flags]

commands:
  import   -type <content type> -mappings <json|@file> [-system N] [-user N] [-table T] [-dry-run] <path>
  classes  -system N <csv with name,description,code>
  serve    start the HTTP server`

func main() {
	if err := godotenv.Load(); err == nil {
		log.Info("loaded .env file")
	}
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err = log.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Debug("configuration loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	defer a.close()

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "import":
		err = a.runImport(ctx, args)
	case "classes":
		err = a.runClasses(ctx, args)
	case "serve":
		err = a.runServe(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error("sampleimport failed", zap.String("command", os.Args[1]), zap.Error(err))
		a.close()
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	toolbox *sampledb.GdalToolbox
}

func (a *app) connect(ctx context.Context) (err error) {
	if a.pool != nil || !a.cfg.Database.HasDatabase() {
		return
	}
	a.pool, err = postgis.Connect(ctx, a.cfg.Database)
	return
}

// store returns a fresh accessor, nil without a database.
func (a *app) store() sampledb.Store {
	if a.pool == nil {
		return nil
	}
	opts := []postgis.Option{}
	if table, err := postgis.ParseIdentifier(a.cfg.Database.ClassesTable); err == nil {
		opts = append(opts, postgis.WithClassesTable(table))
	}
	if id, ok := a.cfg.Database.System(); ok {
		opts = append(opts, postgis.WithDefaultSystem(id))
	}
	return postgis.NewAccessor(a.pool, opts...)
}

func (a *app) gdal() *sampledb.GdalToolbox {
	if a.toolbox == nil {
		a.toolbox = sampledb.NewGdalToolbox()
	}
	return a.toolbox
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.toolbox != nil {
		a.toolbox.Destroy()
		a.toolbox = nil
	}
}

func (a *app) runServe(ctx context.Context) (err error) {
	if err = a.connect(ctx); err != nil {
		return
	}
	var stores web.StoreFunc
	if a.pool != nil {
		stores = a.store
	} else {
		log.Warn("no DATABASE_URL, imports and class listing unavailable")
	}
	server := web.NewServer(a.cfg, stores, a.gdal())

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if e := server.Shutdown(shutdownCtx); e != nil {
			log.Error("shutdown error", zap.Error(e))
		}
	}()

	if err = server.Start(); errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return
}
