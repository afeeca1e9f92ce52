// Binary xcd loads one container's descriptor, constructs its running
// form, and drives it to completion through the supervisor core.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/xcjail/xc/container"
	"github.com/xcjail/xc/supervisor"
)

func main() {
	configPath := flag.String("config", "/etc/xc/container.toml", "path to the container's TOML descriptor")
	debugLevel := flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	flag.Parse()

	lvl, err := logrus.ParseLevel(*debugLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcd: invalid -log-level %q: %v\n", *debugLevel, err)
		os.Exit(2)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := container.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading container config")
	}

	rc, err := container.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("constructing running container")
	}

	setDebugSigHandler()

	handle, err := supervisor.Run(rc, cfg.ControlSocket, cfg.AutoStart)
	if err != nil {
		logrus.WithError(err).Fatal("starting supervisor")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case sig := <-sigCh:
			logrus.WithField("signal", sig).Info("received termination signal, posting kill")
			if err := handle.Kill(); err != nil {
				logrus.WithError(err).Warn("failed to post kill event")
			}
		case m := <-handle.Manifest:
			if m.Destroyed != nil {
				logrus.WithField("id", m.ID).Info("container terminated")
				return
			}
		case <-rc.DestroyedNotify.Done():
			return
		}
	}
}

var debugOnce sync.Once

// setDebugSigHandler installs a SIGUSR2 handler that dumps every
// goroutine's stack at debug level, for diagnosing a wedged runner
// without restarting it.
func setDebugSigHandler() {
	debugOnce.Do(func() {
		dumpCh := make(chan os.Signal, 1)
		signal.Notify(dumpCh, syscall.SIGUSR2)
		go func() {
			buf := make([]byte, 10240)
			for range dumpCh {
				for {
					n := runtime.Stack(buf, true)
					if n < len(buf) {
						logrus.Debugf("stack dump requested:\n%s", buf[:n])
						break
					}
					buf = make([]byte, 2*len(buf))
				}
			}
		}()
		logrus.Debugf("for a full goroutine dump run: kill -%d %d", syscall.SIGUSR2, os.Getpid())
	})
}
