// Command clicknode runs the physical-layer firmware engine described
// by spec.md: push-button FSMs, relay/indicator outputs, network-click
// coordination, and a framed serial link to a bridge. Wiring here
// follows the teacher's main.go: flags, viper config, a zap logger,
// then straight-line construction of every component before handing
// off to the Scheduler's super-loop.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dbehnke/clicknode/internal/config"
	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/engine"
	"github.com/dbehnke/clicknode/internal/hal"
	"github.com/dbehnke/clicknode/internal/logging"
	"github.com/dbehnke/clicknode/internal/observer"
	"github.com/dbehnke/clicknode/internal/serial"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the node's boot-time configuration file")
	bridgeAddr := flag.String("bridge-addr", "", "TCP address of the network bridge (host:port); empty disables the network link")
	observerAddr := flag.String("observer-addr", ":9090", "address for the read-only wire-traffic observer websocket")
	flag.Parse()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("clicknode: logger init: %v", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		sugar.Fatalw("failed to load configuration", "error", err)
	}

	registry := core.NewRegistry(cfg.ActuatorCap, cfg.ClickableCap, cfg.IndicatorCap)

	// GPIO driver selection lives outside this spec's scope (spec.md §1
	// treats pin I/O as an external primitive); the in-memory factory
	// stands in until a board-specific driver is wired here.
	pins := hal.NewFakePinFactory()
	if err := config.ApplyConfig(cfg, registry, pins); err != nil {
		watchdog := hal.NewFakeWatchdog()
		sink := logging.NewZapSink(zapLogger, watchdog, 2*time.Second)
		sink.Fatal("boot-time configuration rejected", err)
		return
	}

	stream, err := dialBridge(*bridgeAddr)
	if err != nil {
		sugar.Fatalw("failed to connect to bridge", "error", err)
	}

	tunables := cfg.ToTunables()
	framing := serial.FramingText
	if cfg.Framing == "binary" {
		framing = serial.FramingBinary
	}
	link := serial.NewLink(framing, stream, tunables.PingIntervalMS, tunables.ConnectionTimeoutMS)
	link.OnDecodeError(func(reason string) { sugar.Warnw("inbound frame rejected", "reason", reason) })

	hub := observer.NewHub()
	link.OnSend(hub.Mirror)
	go serveObserver(*observerAddr, hub, sugar)

	clock := core.NewSystemClock()
	timeKeeper := core.NewTimeKeeper(clock)
	emitter := serial.NewLinkEmitter(link, timeKeeper.Now)
	networkClicks := core.NewNetworkClicks(tunables.NetworkClickTimeoutMS, cfg.ClickableCap, emitter, registry)
	dispatcher := serial.NewDispatcher(registry, networkClicks, link, cfg.Name)

	watchdog := hal.NewFakeWatchdog() // board watchdog driver plugs in here
	debug := logging.NewZapSink(zapLogger, watchdog, 2*time.Second)

	sched := engine.NewScheduler(engine.Deps{
		DeviceName:    cfg.Name,
		Tunables:      tunables,
		TimeKeeper:    timeKeeper,
		Registry:      registry,
		NetworkClicks: networkClicks,
		Link:          link,
		Dispatcher:    dispatcher,
		Debug:         debug,
	})
	sched.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("clicknode started", "device", cfg.Name, "session", hub.SessionID())
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting down")
			return
		case <-ticker.C:
			sched.Tick()
		}
	}
}

func dialBridge(addr string) (serial.Stream, error) {
	if addr == "" {
		return hal.NewFakeStream(), nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func serveObserver(addr string, hub *observer.Hub, sugar *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/observe", hub.HandleWS())
	sugar.Infow("observer listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		sugar.Warnw("observer server stopped", "error", err)
	}
}
