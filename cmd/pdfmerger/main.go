package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/commons-systems/pdfmerger/internal/activation"
	"github.com/commons-systems/pdfmerger/internal/channel"
	"github.com/commons-systems/pdfmerger/internal/config"
	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/instance"
	"github.com/commons-systems/pdfmerger/internal/merge"
	"github.com/commons-systems/pdfmerger/internal/namespace"
	"github.com/commons-systems/pdfmerger/internal/pending"
	"github.com/commons-systems/pdfmerger/internal/ui"
	"github.com/commons-systems/pdfmerger/internal/watcher"
)

var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// isTerminal is replaced in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

type cliFlags struct {
	configPath *string
	debug      *bool
	version    *bool
	outputName *string
	outputDir  *string
}

func defineFlags(fs *flag.FlagSet) cliFlags {
	f := cliFlags{
		configPath: fs.String("config", "", "config file (default $"+config.EnvVar+" or the user config dir)"),
		debug:      fs.Bool("debug", false, "write debug events to the log file"),
		version:    fs.BoolP("version", "v", false, "show version"),
		outputName: fs.StringP("output-name", "o", "", "initial output file name"),
		outputDir:  fs.String("output-dir", "", "write the merged file here instead of next to the first input"),
	}

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfmerger [options] [file.pdf ...]\n")
		fmt.Fprintf(fs.Output(), "\nMerge PDF files. Launching again while a window is open adds the\n")
		fmt.Fprintf(fs.Output(), "files to that window.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	return f
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdfmerger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *f.version {
		fmt.Fprintf(stdout, "pdfmerger %s\n", version)
		return exitOK
	}

	cfgPath := *f.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		printError(stderr, "Failed to load config: %v", err)
		return exitError
	}

	if *f.debug || cfg.Debug.Enabled || debug.Requested() {
		initDebug(cfg, stderr)
	}
	defer debug.Close()

	paths := activation.NormalizeArgs(fs.Args())
	debug.Log("MAIN_START args=%d paths=%d", len(fs.Args()), len(paths))

	role, lock, err := instance.AcquireOrDetect(namespace.InstanceKey)
	if err != nil {
		printError(stderr, "Failed to determine instance role: %v", err)
		return exitError
	}
	debug.Log("MAIN_ROLE role=%s", role)

	if role == instance.Secondary {
		return runSecondary(cfg, paths, stdout, stderr)
	}

	defer func() {
		if err := lock.Release(); err != nil {
			debug.Log("MAIN_LOCK_RELEASE_ERROR error=%v", err)
		}
	}()
	return runPrimary(cfg, f, paths, stdout, stderr)
}

func initDebug(cfg *config.Config, stderr io.Writer) {
	logPath := cfg.Debug.LogFile
	if logPath == "" {
		if _, err := namespace.Ensure(); err != nil {
			printWarning(stderr, "Warning: debug logging disabled: %v", err)
			return
		}
		logPath = namespace.DebugLog()
	}
	if err := debug.Init(logPath); err != nil {
		printWarning(stderr, "Warning: debug logging disabled: %v", err)
	}
}

// runSecondary hands paths to the running primary and exits.
func runSecondary(cfg *config.Config, paths []string, stdout, stderr io.Writer) int {
	if len(paths) == 0 {
		if pid := instance.ReadPID(namespace.LockFile(namespace.InstanceKey)); pid > 0 {
			fmt.Fprintf(stdout, "PDF Merger is already running (PID %d)\n", pid)
		} else {
			fmt.Fprintln(stdout, "PDF Merger is already running")
		}
		return exitOK
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := channel.NewClient(namespace.ChannelAddress(),
		channel.WithAttempts(cfg.Channel.Attempts),
		channel.WithRetryDelay(cfg.Channel.RetryDelay),
		channel.WithDialTimeout(cfg.Channel.DialTimeout))
	debug.Log("SECONDARY_START paths=%d budget_per_path=%v", len(paths), client.Budget())
	sent, failed := client.SendPaths(ctx, paths)
	debug.Log("SECONDARY_SENT sent=%d failed=%d", sent, len(failed))

	if len(failed) > 0 && cfg.Spool.Enabled {
		sp := activation.NewSpool(namespace.SpoolDir(), cfg.Spool.MaxAge)
		file, err := sp.WritePaths(failed)
		if err != nil {
			debug.Log("SECONDARY_SPOOL_ERROR error=%v", err)
		} else {
			debug.Log("SECONDARY_SPOOLED file=%s paths=%d", file, len(failed))
			sent += len(failed)
			failed = nil
		}
	}

	if len(failed) > 0 {
		printWarning(stderr, "Could not reach the running PDF Merger; %d file(s) not added", len(failed))
	}
	if sent > 0 {
		printSuccess(stdout, "Sent %d file(s) to the running PDF Merger", sent)
	}
	return exitOK
}

// runPrimary owns the window, the channel server and the spool watcher.
func runPrimary(cfg *config.Config, f cliFlags, paths []string, stdout, stderr io.Writer) int {
	if !isTerminal() {
		printError(stderr, "pdfmerger needs an interactive terminal")
		return exitError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dispatcher := activation.NewDispatcher(pending.New())
	dispatcher.Deliver(paths)

	var wg sync.WaitGroup
	srv := channel.NewServer(namespace.ChannelAddress(), dispatcher,
		channel.WithReadTimeout(cfg.Channel.ReadTimeout),
		channel.WithMaxLineBytes(cfg.Channel.MaxLineBytes),
		channel.WithMaxConnections(cfg.Channel.MaxConnections),
		channel.WithRelistenBackoff(cfg.Channel.RelistenMin, cfg.Channel.RelistenMax))
	debug.Log("MAIN_PRIMARY addr=%s buffered=%d", srv.Addr(), dispatcher.Pending())
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := srv.Serve(ctx)
		if err != nil && !errors.Is(err, channel.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			debug.Log("MAIN_SERVER_EXIT error=%v", err)
		}
	}()

	if cfg.Spool.Enabled {
		stop, err := startSpool(ctx, cfg, dispatcher, &wg)
		if err != nil {
			// The channel still works without the spool.
			debug.Log("MAIN_SPOOL_START_ERROR error=%v", err)
		} else {
			defer stop()
		}
	}

	name := *f.outputName
	if name == "" {
		name = cfg.Merge.DefaultName
	}
	m := ui.New(dispatcher, merge.NewPDFCPU(), ui.Options{
		OutputName: name,
		OutputDir:  *f.outputDir,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	m.Shell().Stop()
	cancel()
	srv.Close()
	wg.Wait()

	stats := srv.Stats()
	debug.Log("MAIN_EXIT accepted=%d delivered=%d dropped=%d relistens=%d",
		stats.Accepted, stats.Delivered, stats.Dropped, stats.Relistens)

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		printError(stderr, "Error running pdfmerger: %v", runErr)
		return exitError
	}
	if out := m.Result().Output; out != "" {
		printSuccess(stdout, "PDFs merged successfully! Saved to: %s", out)
	}
	return exitOK
}

// startSpool watches the spool directory and ingests files left there by
// secondaries that could not reach the channel.
func startSpool(ctx context.Context, cfg *config.Config, d *activation.Dispatcher, wg *sync.WaitGroup) (func(), error) {
	sp := activation.NewSpool(namespace.SpoolDir(), cfg.Spool.MaxAge)
	w, err := watcher.NewSpoolWatcher(sp.Dir(), activation.IsSpoolFile)
	if err != nil {
		return nil, err
	}

	events := w.Start()
	wg.Add(1)
	go func() {
		defer wg.Done()
		activation.ForwardSpool(ctx, sp, events, d)
	}()

	// Files written before the watch started. Consume claims each file, so a
	// file also seen by the watcher is delivered once.
	drained, err := sp.Drain()
	if err != nil {
		debug.Log("MAIN_SPOOL_DRAIN_ERROR error=%v", err)
	}
	d.Deliver(drained)

	return func() {
		if err := w.Close(); err != nil {
			debug.Log("MAIN_SPOOL_CLOSE_ERROR error=%v", err)
		}
	}, nil
}
