package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dario.cat/mergo"
	"github.com/cloudflare/tableflip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nodewire/originserver/conf"
	"github.com/nodewire/originserver/contrib/app"
	"github.com/nodewire/originserver/contrib/config"
	"github.com/nodewire/originserver/contrib/config/provider/file"
	"github.com/nodewire/originserver/contrib/log"
	"github.com/nodewire/originserver/contrib/transport"
	"github.com/nodewire/originserver/server"
)

var (
	id, _ = os.Hostname()

	flagConf    string = "config.toml"
	flagVerbose bool

	Version string = "no-set"
	GitHash string = "no-set"
)

func init() {
	flag.StringVar(&flagConf, "c", "config.toml", "config file path")
	flag.BoolVar(&flagVerbose, "v", false, "enable verbose log")

	log.SetLogger(log.With(log.GetLogger(), "ts", log.Timestamp(time.RFC3339), "pid", os.Getpid()))

	registerer := prometheus.WrapRegistererWithPrefix("originserver_", prometheus.DefaultRegisterer)
	registerer.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorMemStatsMetricsDisabled()))
}

func main() {
	flag.Parse()

	c := config.New[conf.Bootstrap](config.WithSource(file.NewSource(flagConf)))
	defer c.Close()

	bc := conf.Default()
	if err := c.Scan(bc); err != nil {
		log.Warnf("failed to read %s, using built-in defaults: %v", flagConf, err)
	}
	if err := mergo.Merge(bc, conf.Default()); err != nil {
		log.Fatalf("failed to merge config defaults: %v", err)
	}

	logCfg := log.Config{
		Level:      bc.Logger.Level,
		Path:       bc.Logger.Path,
		Caller:     bc.Logger.Caller,
		MaxSize:    bc.Logger.MaxSize,
		MaxAge:     bc.Logger.MaxAge,
		MaxBackups: bc.Logger.MaxBackups,
		Compress:   bc.Logger.Compress,
	}
	if flagVerbose {
		logCfg.Level = "debug"
	}
	log.SetLogger(log.NewStdLogger(log.NewZap(logCfg)))

	a, err := newApp(c, bc)
	if err != nil {
		log.Fatal(err)
	}

	if err := a.Run(); err != nil {
		log.Fatal(err)
	}
}

func newApp(c config.Config[conf.Bootstrap], bc *conf.Bootstrap) (*app.App, error) {
	stopTimeout := 30 * time.Second

	flip, err := tableflip.New(tableflip.Options{
		PIDFile:        bc.PidFile,
		UpgradeTimeout: stopTimeout,
	})
	if err != nil {
		return nil, err
	}
	go watchUpgradeSignal(flip)

	srv := server.New(flip, bc)

	_ = c.Watch("reload", func(_ string, reloaded *conf.Bootstrap) {
		if err := mergo.Merge(reloaded, conf.Default()); err != nil {
			log.Errorf("failed to merge config defaults on reload: %v", err)
			return
		}
		srv.ApplyConfig(reloaded)
	})

	appID := id
	if bc.Hostname != "" {
		appID = bc.Hostname
	}

	a := app.New(
		app.ID(appID),
		app.Name("originserver"),
		app.Version(Version),
		app.StopTimeout(stopTimeout),
		app.Servers(transport.Server(srv)),
	)

	go func() {
		<-srv.ShutdownRequested()
		a.Shutdown()
	}()

	return a, nil
}

// watchUpgradeSignal lets an operator SIGHUP the process for a
// zero-downtime restart: tableflip re-execs, hands the listening fd to
// the child, and the old process drains and exits once the child
// signals readiness.
func watchUpgradeSignal(flip *tableflip.Upgrader) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	for range sig {
		log.Infof("received SIGHUP, upgrading")
		if err := flip.Upgrade(); err != nil {
			log.Errorf("upgrade failed: %v", err)
		}
	}
}
