package config

import (
	"sort"
	"time"
)

// Defaults used when the config file leaves a preference unset.
const (
	DefaultOutputHeight    = 20
	DefaultIDPrefix        = "49"
	DefaultDiscoverTimeout = 5
	DefaultServerPort      = 8080
)

// Registry represents the entire user configuration file: preferences plus
// the mbrsim servers this user has talked to.
type Registry struct {
	Version     int                `yaml:"version"`
	Servers     map[string]*Server `yaml:"servers,omitempty"` // Keyed by nickname
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Server is a remote mbrsim-server remembered between runs.
type Server struct {
	Address  string    `yaml:"address"`             // host:port
	TLS      bool      `yaml:"tls,omitempty"`       // Use https/wss
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last successful contact
}

// Preferences represents application-wide user preferences. Command-line
// flags override every field.
type Preferences struct {
	OutputHeight    int    `yaml:"output_height"`            // Output panel rows
	IDPrefix        string `yaml:"id_prefix"`                // Mount ID prefix, 1 or 2 characters
	ReportsDir      string `yaml:"reports_dir,omitempty"`    // Base for relative rep paths
	DefaultServer   string `yaml:"default_server,omitempty"` // Nickname used by remote commands
	DiscoverTimeout int    `yaml:"discover_timeout"`         // mDNS browse timeout in seconds
	LogLevel        string `yaml:"log_level,omitempty"`      // debug, info, warn or error
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Servers:     make(map[string]*Server),
		Preferences: defaultPreferences(),
	}
}

func defaultPreferences() *Preferences {
	return &Preferences{
		OutputHeight:    DefaultOutputHeight,
		IDPrefix:        DefaultIDPrefix,
		DiscoverTimeout: DefaultDiscoverTimeout,
	}
}

// normalize fills in zero values left by an older or hand-edited file.
func (r *Registry) normalize() {
	if r.Servers == nil {
		r.Servers = make(map[string]*Server)
	}
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
		return
	}
	p := r.Preferences
	if p.OutputHeight <= 0 {
		p.OutputHeight = DefaultOutputHeight
	}
	if n := len(p.IDPrefix); n == 0 || n > 2 {
		p.IDPrefix = DefaultIDPrefix
	}
	if p.DiscoverTimeout <= 0 {
		p.DiscoverTimeout = DefaultDiscoverTimeout
	}
}

// GetServer retrieves a server by nickname.
// Returns nil if the server doesn't exist in the registry.
func (r *Registry) GetServer(nickname string) *Server {
	return r.Servers[nickname]
}

// RememberServer records a successful contact with the server at address,
// creating the entry if needed.
func (r *Registry) RememberServer(nickname, address string, tls bool) *Server {
	if r.Servers == nil {
		r.Servers = make(map[string]*Server)
	}
	s, ok := r.Servers[nickname]
	if !ok {
		s = &Server{}
		r.Servers[nickname] = s
	}
	s.Address = address
	s.TLS = tls
	s.LastSeen = time.Now()
	return s
}

// ForgetServer removes a server. It reports whether one was removed.
func (r *Registry) ForgetServer(nickname string) bool {
	if _, ok := r.Servers[nickname]; !ok {
		return false
	}
	delete(r.Servers, nickname)
	if r.Preferences != nil && r.Preferences.DefaultServer == nickname {
		r.Preferences.DefaultServer = ""
	}
	return true
}

// ServerNames returns the nicknames in alphabetical order.
func (r *Registry) ServerNames() []string {
	names := make([]string, 0, len(r.Servers))
	for name := range r.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveServer maps a nickname or a literal host:port to an address.
// An empty name resolves the default server.
func (r *Registry) ResolveServer(name string) (address string, tls bool, ok bool) {
	if name == "" && r.Preferences != nil {
		name = r.Preferences.DefaultServer
	}
	if name == "" {
		return "", false, false
	}
	if s, found := r.Servers[name]; found {
		return s.Address, s.TLS, true
	}
	return name, false, true
}
