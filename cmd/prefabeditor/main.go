package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"prefabeditor/internal/manager"
	"prefabeditor/internal/viewer"
	"prefabeditor/internal/world"
)

func main() {
	// Change working directory to executable location for deployed builds.
	// Skip this for "go run" which puts the binary in a temp directory.
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		if !strings.Contains(execDir, "go-build") {
			_ = os.Chdir(execDir)
		}
	}

	configPath := flag.String("config", "prefab-editor.yaml", "options file")
	manifestPath := flag.String("manifest", "", "manifest path or URL, overrides the options file")
	headless := flag.Bool("headless", false, "run without a window, driven by remote observers")
	flag.Parse()

	opts, err := manager.LoadOptions(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("prefabeditor: %v", err)
		}
		log.Printf("prefabeditor: no options file at %s, using defaults", *configPath)
		opts = manager.DefaultOptions()
	}
	if *manifestPath != "" {
		opts.ManifestPath = *manifestPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := world.New(world.NewTemplates(opts.TemplateBasePath))
	mgr := manager.New(opts, w)
	defer mgr.Stop()

	if *headless {
		if opts.RemoteObserverAddr == "" {
			log.Fatalf("prefabeditor: -headless needs remote_observer_addr in %s", *configPath)
		}
		if err := mgr.Start(ctx); err != nil {
			log.Printf("prefabeditor: %v", err)
		}
		log.Printf("prefabeditor: observer feed on ws://%s/ws", mgr.RemoteAddr())
		<-ctx.Done()
		return
	}

	v := viewer.New(mgr, viewer.DefaultPrefsFile)
	v.Restore()
	if err := mgr.Start(ctx); err != nil {
		log.Printf("prefabeditor: %v", err)
	}
	v.Run(ctx)
}
