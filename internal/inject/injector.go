// Package inject installs the in-page monitor script into a target web
// application: it materializes the script locally, copies it into the app's
// public asset directory, and patches the root layout to load it.
package inject

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/superengineer/overlaywatch/internal/config"
	"github.com/superengineer/overlaywatch/internal/pagescript"
)

const (
	// ScriptName is the file name of the monitor asset inside the target
	// app's public directory.
	ScriptName = "error-monitor.js"

	publicDir  = "public"
	layoutPath = "app/layout.tsx"

	headOpenMarker  = "<head>"
	headCloseMarker = "</head>"
)

// configSnippet is inserted after the opening head marker so the monitor
// picks up its configuration before it loads.
const configSnippet = `        <script>window.__OVERLAYWATCH_CONFIG__ = { source: "superengineer" };</script>`

// scriptTag loads the monitor asset; inserted before the closing head marker.
const scriptTag = `        <script src="/` + ScriptName + `"></script>`

// Injector performs the one-shot installation. All file access goes through
// an afero filesystem so the logic is testable without touching disk.
type Injector struct {
	fs  afero.Fs
	log logrus.FieldLogger

	appDir     string
	scriptsDir string
}

// New creates an Injector for the configured target application.
func New(fs afero.Fs, cfg *config.Config, log logrus.FieldLogger) *Injector {
	return &Injector{
		fs:         fs,
		log:        log,
		appDir:     cfg.AppDir,
		scriptsDir: cfg.ScriptsDir,
	}
}

// Run installs the monitor. A missing target app directory is the only hard
// failure; a missing or already-patched layout is logged and skipped.
func (in *Injector) Run() error {
	localPath := filepath.Join(in.scriptsDir, ScriptName)
	if err := in.fs.MkdirAll(in.scriptsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scripts directory: %w", err)
	}
	if err := afero.WriteFile(in.fs, localPath, []byte(pagescript.MonitorScript), 0o644); err != nil {
		return fmt.Errorf("failed to write monitor script: %w", err)
	}
	in.log.WithField("path", localPath).Info("wrote monitor script")

	// Nothing useful can proceed without the target application.
	exists, err := afero.DirExists(in.fs, in.appDir)
	if err != nil {
		return fmt.Errorf("failed to check target app directory: %w", err)
	}
	if !exists {
		return fmt.Errorf("target app directory %s does not exist", in.appDir)
	}

	assetDir := filepath.Join(in.appDir, publicDir)
	if err := in.fs.MkdirAll(assetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create public directory: %w", err)
	}
	assetPath := filepath.Join(assetDir, ScriptName)
	if err := afero.WriteFile(in.fs, assetPath, []byte(pagescript.MonitorScript), 0o644); err != nil {
		return fmt.Errorf("failed to copy monitor script: %w", err)
	}
	in.log.WithField("path", assetPath).Info("copied monitor script into public assets")

	return in.patchLayout()
}

// patchLayout wires the script tag into the app's root layout. Skip
// conditions are non-fatal: a layout that is missing or already references
// the script leaves the exit code at zero.
func (in *Injector) patchLayout() error {
	path := filepath.Join(in.appDir, layoutPath)

	exists, err := afero.Exists(in.fs, path)
	if err != nil {
		return fmt.Errorf("failed to check layout file: %w", err)
	}
	if !exists {
		in.log.WithField("path", path).Warn("layout file not found, skipping patch")
		return nil
	}

	data, err := afero.ReadFile(in.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read layout file: %w", err)
	}
	content := string(data)

	if strings.Contains(content, ScriptName) {
		in.log.WithField("path", path).Info("layout already references monitor script, skipping patch")
		return nil
	}

	patched, ok := patchContent(content)
	if !ok {
		in.log.WithField("path", path).Warn("head markers not found in layout, skipping patch")
		return nil
	}

	if err := afero.WriteFile(in.fs, path, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("failed to write layout file: %w", err)
	}
	in.log.WithField("path", path).Info("patched layout to load monitor script")
	return nil
}

// patchContent inserts the config snippet after the line carrying the
// opening head marker and the script tag before the line carrying the
// closing head marker. Returns false when the markers are absent.
func patchContent(content string) (string, bool) {
	lines := strings.Split(content, "\n")

	headIdx, closeIdx := -1, -1
	for i, line := range lines {
		if headIdx == -1 && strings.Contains(line, headOpenMarker) {
			headIdx = i
		}
		if strings.Contains(line, headCloseMarker) {
			closeIdx = i
		}
	}
	if headIdx == -1 || closeIdx == -1 || closeIdx <= headIdx {
		return content, false
	}

	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:headIdx+1]...)
	out = append(out, configSnippet)
	out = append(out, lines[headIdx+1:closeIdx]...)
	out = append(out, scriptTag)
	out = append(out, lines[closeIdx:]...)
	return strings.Join(out, "\n"), true
}
