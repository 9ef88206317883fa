package process

import (
	"strings"

	"github.com/netwarden/warden/cache"
)

// Parent is an application whose helper processes are billed to it.
type Parent struct {
	BundleID string
	Name     string
	// Helpers are substrings of helper identifiers or names.
	Helpers []string
}

// DefaultParents is the built-in helper table.
var DefaultParents = []Parent{
	{"com.google.Chrome", "Google Chrome", []string{"Google Chrome Helper", "com.google.Chrome.helper", "chrome_crashpad_handler"}},
	{"com.microsoft.edgemac", "Microsoft Edge", []string{"Microsoft Edge Helper", "com.microsoft.edgemac.helper"}},
	{"com.brave.Browser", "Brave Browser", []string{"Brave Browser Helper", "com.brave.Browser.helper"}},
	{"org.mozilla.firefox", "Firefox", []string{"plugin-container", "org.mozilla.plugincontainer", "firefox-bin"}},
	{"com.apple.Safari", "Safari", []string{"com.apple.WebKit.Networking", "com.apple.WebKit.WebContent", "com.apple.Safari.SafeBrowsing"}},
	{"com.tinyspeck.slackmacgap", "Slack", []string{"Slack Helper", "com.tinyspeck.slackmacgap.helper"}},
	{"com.hnc.Discord", "Discord", []string{"Discord Helper", "com.hnc.Discord.helper"}},
	{"com.spotify.client", "Spotify", []string{"Spotify Helper", "com.spotify.client.helper"}},
	{"com.microsoft.teams2", "Microsoft Teams", []string{"Microsoft Teams Helper", "com.microsoft.teams2.helper"}},
	{"com.microsoft.VSCode", "Code", []string{"Code Helper", "com.microsoft.VSCode.helper"}},
	{"us.zoom.xos", "zoom.us", []string{"zoom.us Helper", "ZoomClips", "caphost"}},
	{"com.dropbox.Dropbox", "Dropbox", []string{"Dropbox Helper", "DropboxMacUpdate", "dbfseventsd"}},
}

var (
	helperSuffixes = []string{
		".helper",
		".renderer",
		".gpu",
		".plugin",
		".agent",
		".xpc",
		".worker",
	}
	helperKeywords = []string{
		"(Renderer)",
		"(GPU)",
		"(Plugin)",
		"(Alerts)",
		"Helper",
		"Renderer",
		"GPU",
		"Plugin",
	}
)

type groupResult struct {
	parent Identity
	ok     bool
}

type grouperOptions struct {
	parents []Parent
	finder  AppFinder
	cache   *cache.Cache[string, groupResult]
}

type GrouperOption func(opts *grouperOptions)

func ParentsOption(parents []Parent) GrouperOption {
	return func(opts *grouperOptions) {
		opts.parents = parents
	}
}

// AppFinderOption resolves parents to running instances when possible.
func AppFinderOption(finder AppFinder) GrouperOption {
	return func(opts *grouperOptions) {
		opts.finder = finder
	}
}

func GroupCacheSizeOption(size int) GrouperOption {
	return func(opts *grouperOptions) {
		opts.cache = cache.New[string, groupResult](size)
	}
}

// Grouper maps helper processes to their owning application.
type Grouper struct {
	options grouperOptions
}

func NewGrouper(opts ...GrouperOption) *Grouper {
	var options grouperOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.parents == nil {
		options.parents = DefaultParents
	}
	if options.cache == nil {
		options.cache = cache.New[string, groupResult](cache.DefaultCapacity)
	}
	return &Grouper{options: options}
}

// Parent returns the application owning the helper p.
func (g *Grouper) Parent(p Identity) (Identity, bool) {
	key := p.ID()
	if r, ok := g.options.cache.Get(key); ok {
		return r.parent, r.ok
	}

	parent, ok := g.findParent(p)
	g.options.cache.Put(key, groupResult{parent: parent, ok: ok})
	return parent, ok
}

func (g *Grouper) findParent(p Identity) (Identity, bool) {
	id := strings.ToLower(p.ID())
	name := strings.ToLower(p.Name)

	for _, parent := range g.options.parents {
		if p.BundleID == parent.BundleID {
			return Identity{}, false
		}
		for _, helper := range parent.Helpers {
			h := strings.ToLower(helper)
			if strings.Contains(id, h) || strings.Contains(name, h) {
				return g.resolve(parent.BundleID, parent.Name), true
			}
		}
	}

	if p.BundleID != "" {
		if stripped := stripHelperSuffix(p.BundleID); stripped != p.BundleID && stripped != "" {
			return g.resolve(stripped, g.parentName(stripped)), true
		}
	}

	if rest := stripHelperKeywords(p.Name); rest != "" && rest != p.Name {
		for _, parent := range g.options.parents {
			if strings.EqualFold(rest, parent.Name) {
				return g.resolve(parent.BundleID, parent.Name), true
			}
		}
	}

	return Identity{}, false
}

// resolve prefers a running instance and falls back to a placeholder identity.
func (g *Grouper) resolve(bundleID, name string) Identity {
	if g.options.finder != nil {
		if app, pid, ok := g.options.finder.FindApplication(bundleID); ok {
			if app.Name == "" {
				app.Name = name
			}
			return Identity{
				Kind:     classifyApplication(app),
				Name:     app.Name,
				BundleID: app.BundleID,
				Path:     app.Path,
				PID:      pid,
			}
		}
	}
	return Identity{
		Kind:     KindApplication,
		Name:     name,
		BundleID: bundleID,
	}
}

func (g *Grouper) parentName(bundleID string) string {
	for _, parent := range g.options.parents {
		if parent.BundleID == bundleID {
			return parent.Name
		}
	}
	if n := strings.LastIndexByte(bundleID, '.'); n >= 0 {
		return bundleID[n+1:]
	}
	return bundleID
}

func stripHelperSuffix(bundleID string) string {
	for {
		lower := strings.ToLower(bundleID)
		stripped := false
		for _, suffix := range helperSuffixes {
			if strings.HasSuffix(lower, suffix) {
				bundleID = bundleID[:len(bundleID)-len(suffix)]
				stripped = true
				break
			}
		}
		if !stripped {
			return bundleID
		}
	}
}

func stripHelperKeywords(name string) string {
	for _, kw := range helperKeywords {
		name = strings.ReplaceAll(name, kw, "")
	}
	return strings.Join(strings.Fields(name), " ")
}

// Group is an application with the helpers billed to it.
type Group struct {
	Parent  Identity   `json:"parent"`
	Helpers []Identity `json:"helpers,omitempty"`
}

// Group partitions identities by owning application, in first-seen order.
// Ungrouped identities that are not applications form singleton groups.
func (g *Grouper) Group(list []Identity) []Group {
	var groups []Group
	index := make(map[string]int)

	add := func(key string, parent Identity) int {
		if i, ok := index[key]; ok {
			return i
		}
		groups = append(groups, Group{Parent: parent})
		index[key] = len(groups) - 1
		return len(groups) - 1
	}

	for _, p := range list {
		if parent, ok := g.Parent(p); ok {
			i := add(parent.ID(), parent)
			groups[i].Helpers = append(groups[i].Helpers, p)
			continue
		}
		if p.Kind == KindApplication {
			i := add(p.ID(), p)
			// a placeholder parent created by an earlier helper is replaced by the real process
			groups[i].Parent = p
			continue
		}
		add(p.ID(), p)
	}
	return groups
}
