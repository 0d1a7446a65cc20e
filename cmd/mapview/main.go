// Command mapview drives the map engine from a TOML configuration: it renders
// scripted pan and zoom sequences to PNG frames and warms tile caches.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"github.com/urfave/cli/v2"

	"github.com/Everpoint/sGis-sub002/config"
	"github.com/Everpoint/sGis-sub002/internal/safeexit"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/metrics"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/symbol"
)

const (
	CONFIG   string = `config`
	LOGLEVEL string = `logLevel`
	OUTPUT   string = `output`
)

func main() {
	app := cli.NewApp()
	app.Name = "mapview"
	app.Usage = "Render map frames and prefetch tiles"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "set config `file`",
			Value:   "./conf/conf.toml",
			EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.StringFlag{
			Name:    LOGLEVEL,
			Aliases: []string{"l"},
			Usage:   "set log level",
			Value:   "info",
			EnvVars: []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
	}
	app.Commands = []*cli.Command{
		renderCommand(),
		prefetchCommand(),
		symbolsCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		logger.L().Fatal(err)
	}
}

// env is what every command starts from. Close runs the shutdown hooks, which
// also run on SIGINT and friends.
type env struct {
	id     string
	cfg    *config.Config
	loader *resource.HTTPLoader
	exit   *safeexit.SafeExit
}

func setup(c *cli.Context) (*env, error) {
	exit := safeexit.New()
	go exit.ListenSignal()

	cfg, err := config.Load(c.String(CONFIG))
	if err != nil {
		return nil, err
	}
	logs, err := logger.Init(logger.Output{Dir: cfg.Output.LogDir, Terminal: cfg.Output.Terminal}, c.String(LOGLEVEL))
	if err != nil {
		return nil, err
	}
	id, _ := shortid.Generate()
	loader := resource.NewHTTPLoader(resource.HTTPOptions{
		Workers:   cfg.Loader.Workers,
		Delay:     time.Duration(cfg.Loader.TimeDelay) * time.Millisecond,
		UserAgent: cfg.Loader.UserAgent,
	})
	exit.Register(func() { _ = loader.Close() })
	if srv := serveMetrics(cfg.Metrics.Listen); srv != nil {
		exit.Register(func() { _ = srv.Close() })
	}
	exit.Register(func() { _ = logs.Close() })

	logger.L().WithFields(logrus.Fields{
		"task":    id,
		"title":   cfg.App.Title,
		"version": cfg.App.Version,
		"config":  c.String(CONFIG),
	}).Info("starting")
	return &env{id: id, cfg: cfg, loader: loader, exit: exit}, nil
}

func (e *env) Close() { e.exit.Run() }

func serveMetrics(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().WithError(err).Error("metrics server stopped")
		}
	}()
	logger.L().Infof("serving metrics on %s/metrics", addr)
	return srv
}

func symbolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "symbols",
		Usage: "list symbol kinds with their default description",
		Action: func(c *cli.Context) error {
			return writeSymbols(c.App.Writer)
		},
	}
}

func writeSymbols(w io.Writer) error {
	for _, k := range symbol.Kinds() {
		desc, err := symbol.Encode(symbol.MustNew(k))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", k)
		for _, f := range k.Fields() {
			fmt.Fprintf(w, "  %s = %v\n", f, desc[f])
		}
	}
	return nil
}
