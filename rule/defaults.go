package rule

const (
	DefaultPriority   = 100
	StreamingPriority = 200
)

// DefaultRules ship with the engine and are evaluated after the user rules.
var DefaultRules = []Rule{
	// cloud storage
	{Target: "com.getdropbox.dropbox", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "Dropbox", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "com.google.drivefs", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "Google Drive", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "com.microsoft.OneDrive", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "OneDrive", Action: ActionBlock, Priority: DefaultPriority, Reason: "Cloud storage sync"},
	{Target: "com.apple.bird", Action: ActionBlock, Priority: DefaultPriority, Reason: "iCloud sync"},
	{Target: "cloudd", Action: ActionBlock, Priority: DefaultPriority, Reason: "iCloud sync"},

	// backup
	{Target: "com.backblaze.bzbmenu", Action: ActionBlock, Priority: DefaultPriority, Reason: "Backup agent"},
	{Target: "Backblaze", Action: ActionBlock, Priority: DefaultPriority, Reason: "Backup agent"},
	{Target: "Carbonite", Action: ActionBlock, Priority: DefaultPriority, Reason: "Backup agent"},
	{Target: "CrashPlan", Action: ActionBlock, Priority: DefaultPriority, Reason: "Backup agent"},
	{Target: "backupd", Action: ActionBlock, Priority: DefaultPriority, Reason: "Time Machine backup"},

	// package managers and containers
	{Target: "docker", Action: ActionBlock, Priority: DefaultPriority, Reason: "Container image transfer"},
	{Target: "brew", Action: ActionBlock, Priority: DefaultPriority, Reason: "Package manager download"},
	{Target: "npm", Action: ActionBlock, Priority: DefaultPriority, Reason: "Package manager download"},
	{Target: "pip3", Action: ActionBlock, Priority: DefaultPriority, Reason: "Package manager download"},
	{Target: "cargo", Action: ActionBlock, Priority: DefaultPriority, Reason: "Package manager download"},
	{Target: "softwareupdated", Action: ActionBlock, Priority: DefaultPriority, Reason: "OS update download"},

	// streaming is observed, not blocked
	{Target: "com.spotify.client", Action: ActionAllow, Priority: StreamingPriority, Reason: "Streaming client is monitored, not blocked"},
	{Target: "Spotify", Action: ActionAllow, Priority: StreamingPriority, Reason: "Streaming client is monitored, not blocked"},
}

// HeavyProcesses are name fragments of software known to move a lot of
// data in the background. Matching is case-insensitive.
var HeavyProcesses = []string{
	// cloud sync
	"dropbox", "google drive", "googledrive", "onedrive", "icloud", "box sync", "pcloud",
	// backup
	"backblaze", "carbonite", "crashplan", "acronis",
	// game platforms
	"steam", "epic games", "battle.net", "origin", "uplay",
	// p2p
	"transmission", "qbittorrent", "utorrent", "bittorrent", "deluge", "resilio",
	// containers and vms
	"docker", "vmware", "virtualbox", "parallels", "vagrant", "podman",
	// streaming, overridden by the default allow rule
	"spotify",
}

var backgroundMarkers = []string{
	"helper", "daemon", "agent", "service", "updater", "installer", "syncer",
}
