package process

import (
	"path/filepath"
	"strings"
)

var (
	systemBundlePrefixes = []string{
		"com.apple.",
		"org.freedesktop.",
		"org.gnome.",
		"org.kde.",
	}
	systemAppRoots = []string{
		"/System/",
		"/usr/libexec/",
		"/usr/lib/",
	}
	daemonPathMarkers = []string{
		"/LaunchAgents/",
		"/LaunchDaemons/",
		"/sbin/",
		"/usr/libexec/",
		"/lib/systemd/",
	}
	systemRoots = []string{
		"/System/",
		"/usr/bin/",
		"/bin/",
		"/usr/lib/",
		"/lib/",
	}
)

func classifyApplication(app AppInfo) Kind {
	for _, prefix := range systemBundlePrefixes {
		if strings.HasPrefix(app.BundleID, prefix) {
			return KindSystem
		}
	}
	if hasAnyPrefix(app.Path, systemAppRoots) {
		return KindSystem
	}
	return KindApplication
}

func classifyProcess(proc ProcInfo, packages PackageDetector) Kind {
	if proc.Path != "" && packages != nil && packages.IsPackaged(proc.Path) {
		return KindService
	}
	if IsDaemonName(proc.Name) {
		return KindDaemon
	}
	if containsAny(proc.Path, daemonPathMarkers) {
		return KindDaemon
	}
	if hasAnyPrefix(proc.Path, systemRoots) {
		return KindSystem
	}
	return KindUnknown
}

// IsDaemonName reports whether name follows the daemon convention of a
// lower-case executable name ending in "d", such as sshd or cloudd.
func IsDaemonName(name string) bool {
	name = filepath.Base(name)
	if len(name) <= 2 || strings.ContainsAny(name, " \t") {
		return false
	}
	if name != strings.ToLower(name) {
		return false
	}
	return strings.HasSuffix(name, "d")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	if s == "" {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
