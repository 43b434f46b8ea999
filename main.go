/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaghettifunk/anima-ar/engine"
	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/renderer/headless"
	"github.com/spaghettifunk/anima-ar/testbed"
)

func main() {
	configPath := flag.String("config", "config/renderer.toml", "renderer settings, reloaded on change")
	assetsPath := flag.String("assets", "assets/models", "directory of model manifests")
	flag.Parse()

	tb, err := testbed.NewTestGame(*configPath, *assetsPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// the testbed renders into the in-memory device
	device := headless.NewDevice(headless.Options{Name: "testbed"})

	e, err := engine.New(tb.Game, device)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		cancel()
	}()

	// run engine
	runErr := e.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		core.LogError("shutdown: %s", err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
