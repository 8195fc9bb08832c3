// Command pdfrename-mcp exposes the renaming pipeline's analyze, plan,
// apply, rollback, and process operations as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/config"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/mcpserver"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pipeline"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/training"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const serverName = "pdfrename-mcp"

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	opts, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if opts.IsDebug() {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.NewFile(0, os.DevNull))
	}

	store := training.New()
	if _, err := store.Load(nil); err != nil {
		log.Fatalf("failed to initialize training store: %v", err)
	}

	p := pipeline.New(store, pipeline.Options{
		FieldOptions:   field.Options{LargeFormThreshold: opts.LargeFormThreshold},
		ContextOptions: fieldcontext.Options{ProximityInflate: opts.ProximityInflate, GridSize: opts.GridSize, MaxNearby: opts.MaxNearby},
		OutputDir:      opts.OutputDir,
	})

	srv, err := mcpserver.NewServer(serverName, version, p)
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- srv.Run(ctx) }()

	select {
	case sig := <-signalCh:
		log.Printf("received signal: %s, shutting down", sig)
		cancel()
		if err := <-serverErrCh; err != nil {
			log.Printf("server shutdown with error: %v", err)
			os.Exit(1)
		}
	case err := <-serverErrCh:
		if err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func printVersion() {
	fmt.Printf("pdfrename-mcp\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
