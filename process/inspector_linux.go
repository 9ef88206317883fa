//go:build linux

package process

import (
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
)

type procInspector struct {
	fs procfs.FS
}

// NewInspector returns an Inspector reading /proc.
// Sandboxed (flatpak, snap) and graphical session processes are reported as applications.
func NewInspector() (Inspector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &procInspector{fs: fs}, nil
}

func (i *procInspector) Application(pid int) (AppInfo, bool) {
	p, err := i.fs.Proc(pid)
	if err != nil {
		return AppInfo{}, false
	}
	env, err := p.Environ()
	if err != nil {
		return AppInfo{}, false
	}
	exe, _ := p.Executable()
	comm, _ := p.Comm()

	app := AppInfo{
		Name: comm,
		Path: exe,
	}
	var graphical bool
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		switch k {
		case "FLATPAK_ID":
			app.BundleID = v
		case "SNAP_NAME":
			if app.BundleID == "" {
				app.BundleID = "io.snapcraft." + v
			}
		case "DISPLAY", "WAYLAND_DISPLAY":
			graphical = true
		}
	}
	if app.BundleID != "" {
		return app, true
	}
	// session services inherit DISPLAY too, only count executables outside system roots
	if graphical && exe != "" && !containsAny(exe, daemonPathMarkers) {
		if app.Name == "" {
			app.Name = filepath.Base(exe)
		}
		return app, true
	}
	return AppInfo{}, false
}

func (i *procInspector) Process(pid int) (ProcInfo, bool) {
	p, err := i.fs.Proc(pid)
	if err != nil {
		return ProcInfo{}, false
	}
	comm, err := p.Comm()
	if err != nil {
		return ProcInfo{}, false
	}
	exe, _ := p.Executable()
	return ProcInfo{
		Name: comm,
		Path: exe,
	}, true
}

func (i *procInspector) FindApplication(bundleID string) (AppInfo, int, bool) {
	procs, err := i.fs.AllProcs()
	if err != nil {
		return AppInfo{}, 0, false
	}
	for _, p := range procs {
		if app, ok := i.Application(p.PID); ok && app.BundleID == bundleID {
			return app, p.PID, true
		}
	}
	return AppInfo{}, 0, false
}
