package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/jgivc/browsersync/internal/adapter/fsadapter"
	"github.com/jgivc/browsersync/internal/config"
	httphandler "github.com/jgivc/browsersync/internal/handler/http"
	"github.com/jgivc/browsersync/internal/metrics"
	"github.com/jgivc/browsersync/internal/recall"
	"github.com/jgivc/browsersync/internal/registry/record"
	"github.com/jgivc/browsersync/internal/registry/requirement"
	"github.com/jgivc/browsersync/internal/repository/file"
	"github.com/jgivc/browsersync/internal/service/browser"
	srvfile "github.com/jgivc/browsersync/internal/service/file"
	"github.com/jgivc/browsersync/internal/storage/sweep"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v2"
)

const (
	sweepTimeout    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	rdb     *redis.Client
	cancel  context.CancelFunc

	reqs     *requirement.Registry
	records  *record.Registry
	browsers *browser.Manager
	recalls  *recall.Manager
	sweeper  *sweep.Sweeper

	log *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	a.rdb = redis.NewClient(opt)
	repo := file.NewFileRepository(a.rdb, log)
	if err := repo.Ping(context.Background()); err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go repo.Watch(ctx, a.cfg.RedisCheck)

	fsa, err := fsadapter.NewFSAdapter(&a.cfg.Backend, log)
	if err != nil {
		panic(err)
	}

	a.reqs = requirement.NewRegistry(log)
	a.records = record.NewRegistry(repo, log)
	a.sweeper = sweep.NewSweeper(repo, a.records, a.cfg.Sweep.Workers, log)

	fileSrv := srvfile.NewFileService(fsa, repo, a.reqs, &a.cfg.Fetch, log)
	a.browsers = browser.NewManager(fileSrv, a.reqs, a.records, fsa, repo, &a.cfg.Poller, log)
	a.recalls = recall.NewManager(fsa, &a.cfg.Recall, log)

	if a.cfg.Sweep.OnStart {
		go a.Sweep()
	}

	mux := http.NewServeMux()
	httphandler.Register(mux, httphandler.Services{
		Files:        fileSrv,
		Requirements: a.reqs,
		Records:      a.records,
		Store:        repo,
		Browsers:     a.browsers,
		Archives:     fsa,
		Recalls:      a.recalls,
		Sweeper:      a.sweeper,
		Metrics:      metrics.Handler(),
	}, log)

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := a.sweeper.Sweep(ctx); err != nil {
		a.log.Error("Cannot sweep records", slog.Any("error", err))
	}
}

type snapshot struct {
	Time         time.Time           `yaml:"time"`
	Requirements map[string][]string `yaml:"requirements"`
	Records      map[string][]string `yaml:"records"`
	Browsers     []browser.View      `yaml:"browsers"`
	Recalls      []recall.Snapshot   `yaml:"recalls"`
}

func (a *App) snapshot() *snapshot {
	s := &snapshot{
		Time:         time.Now(),
		Requirements: make(map[string][]string),
		Records:      make(map[string][]string),
		Browsers:     a.browsers.Views(),
		Recalls:      a.recalls.Snapshots(),
	}

	for consumer, reqs := range a.reqs.GetRequirements() {
		for _, req := range reqs {
			s.Requirements[string(consumer)] = append(s.Requirements[string(consumer)], req.String())
		}
	}

	for _, gri := range a.records.GetRegisteredFiles() {
		for _, consumer := range a.records.Dependents(gri) {
			s.Records[gri] = append(s.Records[gri], string(consumer))
		}
		slices.Sort(s.Records[gri])
	}

	return s
}

// Dump writes registry snapshots to the dump file.
func (a *App) Dump() {
	data, err := yaml.Marshal(a.snapshot())
	if err != nil {
		a.log.Error("Cannot marshal snapshot", slog.Any("error", err))

		return
	}

	if err := os.WriteFile(a.cfg.DumpFileName, data, 0644); err != nil {
		a.log.Error("Cannot dump snapshot", slog.String("filename", a.cfg.DumpFileName), slog.Any("error", err))

		return
	}

	a.log.Info("Snapshot dumped", slog.String("filename", a.cfg.DumpFileName))
}

func (a *App) CloseBrowsers() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.browsers.CloseAll(ctx)
	a.log.Info("All browsers closed")
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}

	a.recalls.Stop()
	a.browsers.Stop(ctx)
	a.cancel()

	if err := a.rdb.Close(); err != nil {
		a.log.Error("Cannot close redis client", slog.Any("error", err))
	}
}
