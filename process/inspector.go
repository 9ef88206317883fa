package process

import (
	"errors"
	"strings"
)

var (
	ErrUnsupported = errors.New("process: inspector not supported on this platform")
)

// AppInfo describes a running application as reported by the OS.
type AppInfo struct {
	Name     string
	BundleID string
	Path     string
}

// ProcInfo describes an entry of the OS process table.
type ProcInfo struct {
	Name string
	Path string
}

// Inspector queries the OS about a process. Implementations must not block
// for long, they are consulted on identity cache misses.
type Inspector interface {
	// Application returns the running application handle for pid, if any.
	Application(pid int) (AppInfo, bool)
	// Process returns the process table entry for pid.
	Process(pid int) (ProcInfo, bool)
}

// AppFinder is implemented by inspectors able to find a running application by bundle id.
type AppFinder interface {
	FindApplication(bundleID string) (AppInfo, int, bool)
}

// PackageDetector tells whether an executable was installed by a package manager.
type PackageDetector interface {
	IsPackaged(path string) bool
}

// DefaultPackageRoots are the install roots of common package managers.
var DefaultPackageRoots = []string{
	"/opt/homebrew/",
	"/usr/local/Cellar/",
	"/usr/local/opt/",
	"/opt/local/",
	"/nix/store/",
	"/snap/",
	"/var/lib/flatpak/",
	"/home/linuxbrew/.linuxbrew/",
}

type rootDetector struct {
	roots []string
}

// RootPackageDetector detects packaged executables by install root prefix.
func RootPackageDetector(roots ...string) PackageDetector {
	if len(roots) == 0 {
		roots = DefaultPackageRoots
	}
	return &rootDetector{roots: roots}
}

func (d *rootDetector) IsPackaged(path string) bool {
	for _, root := range d.roots {
		if strings.HasPrefix(path, root) {
			return true
		}
	}
	return false
}

type nopInspector struct{}

func (nopInspector) Application(int) (AppInfo, bool) { return AppInfo{}, false }
func (nopInspector) Process(int) (ProcInfo, bool)    { return ProcInfo{}, false }
