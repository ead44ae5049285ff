// overlaywatch watches Chrome pages for runtime errors and framework error
// overlays and forwards structured reports to a parent collector.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/superengineer/overlaywatch/internal/cdp"
	"github.com/superengineer/overlaywatch/internal/config"
	"github.com/superengineer/overlaywatch/internal/envelope"
	"github.com/superengineer/overlaywatch/internal/inject"
	"github.com/superengineer/overlaywatch/internal/overlay"
	"github.com/superengineer/overlaywatch/internal/pagescript"
	"github.com/superengineer/overlaywatch/internal/report"
)

var (
	cfg     = config.DefaultConfig()
	log     = logrus.New()
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "overlaywatch",
	Short: "Watch Chrome pages for runtime errors and framework error overlays",
	Long: `overlaywatch connects to Chrome via the DevTools Protocol and watches
every open page for console errors, uncaught exceptions, and framework
error overlays. Each finding is wrapped in a structured report and
forwarded to a parent collector over WebSocket, written to JSONL files,
or both.

Example:
  # Connect to existing Chrome (must be started with --remote-debugging-port=9222)
  overlaywatch --parent ws://localhost:8787/reports

  # Auto-launch Chrome and also keep local JSONL copies
  overlaywatch --launch --output ./reports

  # One-shot overlay scan of all open pages
  overlaywatch scan`,
	PersistentPreRunE: setup,
	RunE:              runMonitor,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfg.ChromePort, "port", "p", cfg.ChromePort,
		"Chrome remote debugging port")

	// Connection flags
	rootCmd.Flags().BoolVar(&cfg.AutoLaunch, "launch", cfg.AutoLaunch,
		"Auto-launch Chrome with debugging enabled")
	rootCmd.Flags().BoolVar(&cfg.Headless, "headless", cfg.Headless,
		"Launch Chrome headless (with --launch)")

	// Reporting flags
	rootCmd.Flags().StringVar(&cfg.ParentURL, "parent", cfg.ParentURL,
		"WebSocket URL of the parent collector")
	rootCmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir,
		"Directory for JSONL report files")

	// Detection flags
	rootCmd.Flags().StringVar(&cfg.OverlaySelector, "overlay-selector", cfg.OverlaySelector,
		"Custom element name of the framework error overlay")
	rootCmd.Flags().IntVar(&cfg.HeaderRetries, "header-retries", cfg.HeaderRetries,
		"Attempts to wait for the overlay header to render")
	rootCmd.Flags().DurationVar(&cfg.HeaderRetryDelay, "header-retry-delay", cfg.HeaderRetryDelay,
		"Delay between overlay header attempts")

	// Privacy flags
	rootCmd.Flags().BoolVar(&cfg.Scrub, "scrub", cfg.Scrub,
		"Scrub credential-like values from console messages")

	rootCmd.Version = config.Version

	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(demoCmd)
}

// setup runs before every command: config file overlay, then log level.
func setup(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		flagged := *cfg
		if err := cfg.LoadFile(cfgFile); err != nil {
			return err
		}
		restoreChangedFlags(cmd, &flagged)
	}
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg.Validate()
}

// restoreChangedFlags re-applies values for flags the user set explicitly,
// so command-line flags take precedence over the config file.
func restoreChangedFlags(cmd *cobra.Command, flagged *config.Config) {
	set := func(name string, apply func()) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("port", func() { cfg.ChromePort = flagged.ChromePort })
	set("launch", func() { cfg.AutoLaunch = flagged.AutoLaunch })
	set("headless", func() { cfg.Headless = flagged.Headless })
	set("parent", func() { cfg.ParentURL = flagged.ParentURL })
	set("output", func() { cfg.OutputDir = flagged.OutputDir })
	set("overlay-selector", func() { cfg.OverlaySelector = flagged.OverlaySelector })
	set("header-retries", func() { cfg.HeaderRetries = flagged.HeaderRetries })
	set("header-retry-delay", func() { cfg.HeaderRetryDelay = flagged.HeaderRetryDelay })
	set("scrub", func() { cfg.Scrub = flagged.Scrub })
	set("app-dir", func() { cfg.AppDir = flagged.AppDir })
	set("scripts-dir", func() { cfg.ScriptsDir = flagged.ScriptsDir })
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var parent report.Sink
	if cfg.ParentURL != "" {
		p, err := report.DialParent(cfg.ParentURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to parent collector: %w", err)
		}
		parent = p
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	manager := cdp.NewManager(cfg, parent, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	log.WithFields(logrus.Fields{
		"version": config.Version,
		"port":    cfg.ChromePort,
		"parent":  cfg.ParentURL,
		"output":  cfg.OutputDir,
	}).Info("starting overlaywatch")
	if cfg.AutoLaunch {
		log.Info("auto-launching Chrome")
	} else {
		log.Info("connecting to existing Chrome")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- manager.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return err
		}
	case <-ctx.Done():
		// Give the manager time to shut down gracefully.
		time.Sleep(100 * time.Millisecond)
	}

	manager.Stop()
	return nil
}

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Install the in-page monitor script into a web application",
	Long: `Copy the monitor script into the target app's public asset directory
and patch the root layout to load it. A missing layout file is skipped
with a warning; a missing app directory is an error.

Example:
  overlaywatch inject --app-dir ../web`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inject.New(afero.NewOsFs(), cfg, log).Run()
	},
}

func init() {
	injectCmd.Flags().StringVar(&cfg.AppDir, "app-dir", cfg.AppDir,
		"Root directory of the target web application")
	injectCmd.Flags().StringVar(&cfg.ScriptsDir, "scripts-dir", cfg.ScriptsDir,
		"Local directory to keep a copy of the monitor script in")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all open pages once for error overlays",
	Long: `Connect to Chrome, check every open page for a rendered error overlay,
and print a report envelope for each one found.

Example:
  overlaywatch scan --overlay-selector nextjs-portal`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := cdp.Connect(ctx, cfg.ChromePort)
	if err != nil {
		return fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	defer session.Close()

	scanner := overlay.NewScanner(cfg.OverlaySelector, cfg.HeaderRetries, cfg.HeaderRetryDelay, log)

	found := 0
	err = session.EachPage(func(ctx context.Context, page *cdp.Page) error {
		dom, ok, err := scanner.Scan(ctx)
		if err != nil {
			log.WithField("url", page.URL).WithError(err).Warn("scan failed")
			return nil
		}
		if !ok {
			log.WithField("url", page.URL).Debug("no overlay")
			return nil
		}

		found++
		data, err := json.Marshal(envelope.NewDOM(dom))
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("overlays", found).Info("scan complete")
	return nil
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Open a demo page that triggers errors and an overlay",
	Long: `Open a self-contained demo page in the connected Chrome. Its buttons
fire console errors, uncaught exceptions, unhandled rejections, and a
simulated framework error overlay, which makes it useful for verifying
the monitor end to end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cdp.WaitForChrome(cfg.ChromePort, 5*time.Second); err != nil {
			return fmt.Errorf("chrome not reachable on port %s: %w", cfg.ChromePort, err)
		}

		url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(pagescript.DemoPageHTML))
		if err := cdp.OpenPage(cfg.ChromePort, url); err != nil {
			return fmt.Errorf("failed to open demo page: %w", err)
		}
		log.Info("demo page opened")
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
