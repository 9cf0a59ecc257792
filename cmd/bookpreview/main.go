package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bookpreview/internal/bookerrors"
	"git.home.luguber.info/inful/bookpreview/internal/logging"
	"git.home.luguber.info/inful/bookpreview/internal/metrics"
	"git.home.luguber.info/inful/bookpreview/internal/previewer"
	"git.home.luguber.info/inful/bookpreview/internal/version"
)

// CLI is the root command definition and global flags.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Preview PreviewCmd `cmd:"" default:"1" help:"Watch a book and serve a live preview with incremental rebuilds"`
}

// PreviewCmd implements spec.md §6's CLI surface: preview <DIR>
// [--hostname][--port][--open].
type PreviewCmd struct {
	Dir      string `arg:"" optional:"" help:"Book root directory" default:"."`
	Hostname string `help:"Address the preview server listens on" default:"127.0.0.1"`
	Port     int    `help:"Port the preview server listens on" default:"3000"`
	Open     bool   `help:"Open the browser on the first successful build" default:"true" negatable:""`
}

func (p *PreviewCmd) Run(root *CLI) error {
	logging.Setup(root.Verbose)

	dir, err := filepath.Abs(p.Dir)
	if err != nil {
		return bookerrors.Wrap(bookerrors.KindConfigLoad, "resolve book directory", err)
	}

	recorder := metrics.NewPrometheusRecorder(nil)
	prev := previewer.New(previewer.Options{
		Root:           dir,
		Hostname:       p.Hostname,
		Port:           p.Port,
		Recorder:       recorder,
		MetricsHandler: recorder.Handler(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go prev.Run(ctx)

	browserAt := ""
	if p.Open {
		browserAt = "index.html"
	}
	prev.OpenPreview("", browserAt)

	<-ctx.Done()
	prev.Close()
	<-prev.Done()
	return nil
}

func main() {
	cli := &CLI{}
	parser := kong.Parse(cli,
		kong.Description("bookpreview: incremental live preview for a Markdown book."),
		kong.Vars{"version": version.Version},
	)

	if err := parser.Run(cli); err != nil {
		fmt.Fprintln(os.Stderr, "bookpreview:", err)
		os.Exit(bookerrors.ExitCode(err))
	}
}
