// Command pdfrename rewrites a PDF's AcroForm field names to a consistent
// BEM grammar, writing a modified document, a mapping CSV, and a JSON
// report alongside the input.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/config"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pipeline"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/training"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const (
	exitOK               = 0
	exitUnspecified      = 1
	exitPdfInvalid       = 2
	exitPdfEncrypted     = 3
	exitPlanBlocker      = 4
	exitValidationFailed = 5
	exitTimeout          = 6
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	passphrase := pflag.String("passphrase", "", "Owner/user passphrase for an encrypted input document")

	opts, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	args := pflag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pdfrename [flags] <input.pdf>")
		os.Exit(exitUnspecified)
	}
	path := args[0]

	if opts.IsDebug() {
		log.Printf("pdfrename %s starting on %s", version, path)
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

	result, err := p.Process(path, *passphrase, opts.OutputDir)
	if err != nil {
		os.Exit(handleError(path, err))
	}

	fmt.Printf("modified:  %s\n", result.ModifiedPath)
	fmt.Printf("mapping:   %s\n", result.MappingPath)
	fmt.Printf("report:    %s\n", result.ReportPath)
	os.Exit(exitOK)
}

// handleError maps a pipeline error onto the command's exit-code table and
// logs a one-line diagnostic to stderr.
func handleError(path string, err error) int {
	var docErr *pdferrors.DocumentError
	if !errors.As(err, &docErr) {
		log.Printf("pdfrename: %s: %v", path, err)
		return exitUnspecified
	}

	log.Printf("pdfrename: %s: %v", path, docErr)
	switch docErr.Kind {
	case pdferrors.KindPdfInvalid:
		return exitPdfInvalid
	case pdferrors.KindEncrypted:
		return exitPdfEncrypted
	case pdferrors.KindPlanBlocker:
		return exitPlanBlocker
	case pdferrors.KindValidationFailure:
		return exitValidationFailed
	case pdferrors.KindTimeout:
		return exitTimeout
	default:
		return exitUnspecified
	}
}

func printVersion() {
	fmt.Printf("pdfrename\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
