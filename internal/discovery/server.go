package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Server represents an mbrsim-server found on the network
type Server struct {
	// Instance is the advertised service instance name (e.g., "lab")
	Instance string

	// Hostname is the mDNS hostname (e.g., "buildbox.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when no IPv4 address was advertised
	IP string

	// Port is the HTTP port
	Port int

	// TLS is true when the server advertises tls=1
	TLS bool

	// Metadata contains the mDNS TXT record data
	// Common fields: "version=1.2.0", "tls=0", "path=/"
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("mbrsim server %s (%s) at %s", s.Instance, s.Hostname, s.Address())
}

// Address returns host:port, bracketing IPv6 addresses.
func (s *Server) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// BaseURL returns the HTTP base URL for the server
func (s *Server) BaseURL() string {
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	return scheme + "://" + s.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
