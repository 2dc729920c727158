package server

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"
	netutils "gitlab.com/go-utilities/net"
	"gitlab.com/mipimipi/daapsrv/src/internal/config"
	"gitlab.com/mipimipi/daapsrv/src/internal/content"
	"gitlab.com/mipimipi/daapsrv/src/internal/daap"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "server"})

// Run implements the main control loop of the server: it starts the library
// and the DAAP service and reacts to OS signals, advertisement collisions
// and server errors. version is the daapsrv version which is used to build
// the server string
func Run(version string) (err error) {
	// read and validate daapsrv configuration
	var cfg config.Cfg
	if cfg, err = config.Load(); err != nil {
		err = errors.Wrap(err, "cannot run daapsrv")
		return
	}
	if err = cfg.Validate(); err != nil {
		err = errors.Wrap(err, "cannot run daapsrv")
		return
	}

	// set up logging: no log entries possible before this statement!
	if err = setupLogging(cfg.LogDir, cfg.LogLevel); err != nil {
		err = errors.Wrap(err, "cannot run daapsrv")
		return
	}

	log.Trace("running ...")

	// create root context
	ctx := context.WithValue(context.Background(), config.KeyCfg, cfg)
	ctx = context.WithValue(ctx, config.KeyVersion, version)

	// build the library (includes the initial scan) and the DAAP server.
	// This must be done before the main control loop is started
	lib, err := content.NewFSLibrary(&cfg)
	if err != nil {
		err = errors.Wrap(err, "cannot run daapsrv")
		return
	}
	srv := daap.New(&cfg, lib)

	if addr, aerr := netutils.IPaddr(); aerr == nil {
		log.Tracef("serving '%s' at %s", cfg.Name, addr)
	}
	var status strings.Builder
	lib.WriteStatus(&status)
	log.Trace(status.String())

	// create context with cancel
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	// start library updater and DAAP server
	wg.Add(1)
	go lib.Run(ctx, &wg)
	wg.Add(1)
	go srv.Run(ctx, &wg)

	// preparation to receive OS signals (e.g. from 'systemctl stop ...').
	// This must be done before the main control loop is started
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// main control loop
	wg.Add(1)
	go func(wg *sync.WaitGroup) {
		defer wg.Done()

		name := cfg.Name
		for {
			select {
			case sig := <-interrupt:
				// termination signal from OS received: stop processing
				log.Tracef("signal received: %v", sig)
				log.Trace("stopping ...")
				cancel()
				log.Trace("stopped")
				return

			case collided := <-srv.Collisions():
				// the advertised name is taken on the network: pick the
				// next candidate and re-register
				name = daap.RenameOnCollision(collided)
				log.Tracef("name collision for '%s': re-advertising as '%s'", collided, name)
				if err := srv.Advertise(name); err != nil {
					log.Error(errors.Wrap(err, "cannot re-advertise after collision"))
				}

			case err := <-srv.Errs:
				// error received from the DAAP server: stop processing
				log.Tracef("DAAP server error received: %v", err)
				log.Trace("stopping ...")
				cancel()
				log.Trace("stopped")
				return
			}
		}
	}(&wg)

	wg.Wait()

	return
}
