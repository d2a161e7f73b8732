package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mtp-io/toolportal/internal/config"
	"github.com/mtp-io/toolportal/internal/portal"
	"github.com/mtp-io/toolportal/internal/tokenstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ephemeral := flag.Bool("ephemeral", false, "keep session credentials in memory only")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("TOOLPORTAL_ENV") != "prod" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "portal")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var p *portal.Portal
	if *ephemeral {
		p, err = portal.New(cfg, nil, log)
	} else {
		db, openErr := tokenstore.Open(cfg.TokenStore.Path)
		if openErr != nil {
			log.WithError(openErr).Fatal("opening credentials database failed")
		}
		defer db.Close()
		p, err = portal.New(cfg, db, log)
	}
	if err != nil {
		log.WithError(err).Fatal("building portal failed")
	}

	if err := p.Run(ctx); err != nil {
		log.WithError(err).Fatal("portal server failed")
	}
}
