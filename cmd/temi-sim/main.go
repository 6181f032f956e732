// temi-sim serves a simulated robot over the SDK WebSocket protocol.
//
// Point cmd/temi (or any rpc client) at ws://<addr>/ws/sdk. The
// simulator's state and controls live under /api/sim.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-temi/internal/config"
	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/rpc"
	"github.com/teslashibe/go-temi/pkg/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	locations := flag.String("locations", "kitchen,lobby,entrance", "Comma-separated saved locations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level)

	simulator := sim.New(
		sim.WithStepDelay(cfg.Sim.StepDelay),
		sim.WithLocations(strings.Split(*locations, ",")...),
	)
	defer simulator.Close()

	server := rpc.NewServer(simulator, rpc.WithCallTimeout(cfg.Service.CallTimeout))

	app := fiber.New(fiber.Config{
		AppName:               "temi simulator",
		DisableStartupMessage: true,
	})
	server.RegisterRoutes(app)
	api := app.Group("/api")
	server.RegisterAPIRoutes(api)
	simulator.RegisterRoutes(api.Group("/sim"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		app.ShutdownWithTimeout(5 * time.Second)
	}()

	log.Info("simulator listening", "addr", cfg.Sim.Addr, "path", rpc.Path, "step", cfg.Sim.StepDelay)
	if err := app.Listen(cfg.Sim.Addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
