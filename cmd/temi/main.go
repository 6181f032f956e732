// temi connects to the robot service and serves the local bridge API.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/teslashibe/go-temi/internal/config"
	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/binder"
	"github.com/teslashibe/go-temi/pkg/bridge"
	"github.com/teslashibe/go-temi/pkg/rpc"
	"github.com/teslashibe/go-temi/pkg/temi"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	log.Init(cfg.Log.Level)

	app := temi.AppInfo{
		PackageName: cfg.App.PackageName,
		MetaData:    map[string]bool{temi.MetaDataKiosk: cfg.App.Kiosk},
	}
	robot := temi.New(app)
	defer robot.Close()

	logEvents(robot)

	b := binder.New(robot,
		binder.RPCDialer(cfg.Service.URL, rpc.WithCallTimeout(cfg.Service.CallTimeout)),
		binder.WithReconnectDelay(cfg.Service.ReconnectDelay),
	)
	br := bridge.New(robot, bridge.WithConnectionStats(func() any { return b.Stats() }))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting",
		"package", app.PackageName,
		"service", cfg.Service.URL,
		"bridge", cfg.Bridge.Addr,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("binder stopped", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := br.Run(ctx, cfg.Bridge.Addr); err != nil {
			log.Error("bridge stopped", "error", err)
			cancel()
		}
	}()
	wg.Wait()
	log.Info("stopped")
}

// logEvents logs robot activity at info level.
func logEvents(robot *temi.Robot) {
	robot.AddOnRobotReadyListener(func(ready bool) {
		log.Info("robot ready changed", "ready", ready)
	})
	robot.AddOnGoToLocationStatusChangedListener(func(s temi.GoToLocationStatus) {
		log.Info("go-to status", "location", s.Location, "status", s.Status, "description", s.Description)
	})
	robot.AddTtsListener(func(req temi.TtsRequest) {
		log.Info("tts status", "id", req.ID, "status", req.Status)
	})
	robot.AddOnBeWithMeStatusChangedListener(func(status string) {
		log.Info("be-with-me status", "status", status)
	})
}
