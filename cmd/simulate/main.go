// Command simulate runs the clicknode engine against an in-memory fake
// HAL on a desktop machine, for development away from real hardware.
// It additionally watches the config file with fsnotify so a developer
// iterating on a room's button/relay wiring sees the effect on the next
// restart without hunting for the right flag again; this watch path
// never runs on the embedded target and never feeds the live registry
// (the core's one-shot configuration invariant still holds — a changed
// file only takes effect after the process is restarted).
package main

import (
	"flag"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
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
	ticks := flag.Int("ticks", 0, "number of ticks to run before exiting; 0 runs until interrupted")
	flag.Parse()

	zapLogger, _ := zap.NewDevelopment()
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}

	watchConfigForDeveloperFeedback(*configPath, sugar)

	registry := core.NewRegistry(cfg.ActuatorCap, cfg.ClickableCap, cfg.IndicatorCap)
	pins := hal.NewFakePinFactory()
	if err := config.ApplyConfig(cfg, registry, pins); err != nil {
		log.Fatalf("simulate: configuration rejected: %v", err)
	}

	stream := hal.NewFakeStream()
	tunables := cfg.ToTunables()
	link := serial.NewLink(serial.FramingText, stream, tunables.PingIntervalMS, tunables.ConnectionTimeoutMS)

	hub := observer.NewHub()
	link.OnSend(hub.Mirror)

	clock := hal.NewFakeClock()
	timeKeeper := core.NewTimeKeeper(clock)
	emitter := serial.NewLinkEmitter(link, timeKeeper.Now)
	networkClicks := core.NewNetworkClicks(tunables.NetworkClickTimeoutMS, cfg.ClickableCap, emitter, registry)
	dispatcher := serial.NewDispatcher(registry, networkClicks, link, cfg.Name)

	watchdog := hal.NewFakeWatchdog()
	debug := logging.NewZapSink(zapLogger, watchdog, 0)

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

	sugar.Infow("simulate started", "device", cfg.Name, "session", hub.SessionID())
	i := 0
	for *ticks == 0 || i < *ticks {
		clock.Advance(1)
		sched.Tick()
		time.Sleep(time.Millisecond)
		i++
	}
}

func watchConfigForDeveloperFeedback(path string, sugar *zap.SugaredLogger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		sugar.Warnw("config watch disabled", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		sugar.Warnw("config watch disabled", "error", err)
		watcher.Close()
		return
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				sugar.Infow("config file changed, restart to apply", "path", event.Name)
			}
		}
	}()
}
