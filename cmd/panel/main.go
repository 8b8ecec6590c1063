// command panel runs the front panel input sources and prints every
// resolved key press on standard output, one per line.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"olipi.org/config"
	"olipi.org/notify"
	"olipi.org/panel"
	"olipi.org/trace"
)

var (
	configPath = flag.String("config", defaultConfig(), "configuration file")
	record     = flag.String("record", "", "record key presses to trace file")
	replay     = flag.String("replay", "", "replay a trace file instead of reading inputs")
	notifyPNG  = flag.String("notify-png", "", "render notifications to PNG file")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panel: %v\n", err)
		os.Exit(2)
	}
}

func defaultConfig() string {
	if dir := os.Getenv("OLIPI_DIR"); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	return "config.toml"
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	press := func(key string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Println(key)
	}
	if *replay != "" {
		return replayTrace(ctx, *replay, press)
	}
	if *record != "" {
		f, err := os.Create(*record)
		if err != nil {
			return err
		}
		defer f.Close()
		press = trace.NewRecorder(f, nil).Wrap(press)
	}

	banner := new(notify.Banner)
	var sink notify.Sink = banner
	if *notifyPNG != "" {
		sink = notify.Multi(banner, notify.Func(func(string) {
			img := image.NewGray(image.Rect(0, 0, 128, 64))
			if banner.Render(img) {
				dumpImage(*notifyPNG, img)
			}
		}))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	hw := panel.Host()
	var pmu sync.Mutex
	p := panel.Start(cfg, press, sink, hw)
	defer func() {
		pmu.Lock()
		defer pmu.Unlock()
		p.Close()
	}()

	err = config.Watch(ctx, *configPath, func() {
		cfg, err := config.Load(*configPath)
		if err != nil {
			notify.Report(sink, "error config: %v", err)
			return
		}
		log.Printf("panel: reloading %s", *configPath)
		pmu.Lock()
		defer pmu.Unlock()
		p.Close()
		p = panel.Start(cfg, press, sink, hw)
	})
	if err != nil {
		// Keep running without reloads.
		log.Printf("panel: %v", err)
		<-ctx.Done()
	}
	return nil
}

// replayTrace feeds the recorded presses in name to press. Cancellation
// is a clean exit.
func replayTrace(ctx context.Context, name string, press func(key string)) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	entries, err := trace.Read(f)
	if err != nil {
		return err
	}
	if err := trace.Replay(ctx, entries, press); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func dumpImage(name string, img image.Image) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		log.Printf("notify: failed to encode: %v", err)
		return
	}
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		log.Printf("notify: %v", err)
	}
}
