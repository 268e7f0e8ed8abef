// Package config provides user configuration management for mbrsim.
//
// This package manages a YAML-based configuration file holding application
// preferences and the remote mbrsim servers the user has connected to. The
// configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/mbrsim/config.yaml or $HOME/.config/mbrsim/config.yaml
//   - macOS: $HOME/.config/mbrsim/config.yaml
//   - Windows: %LOCALAPPDATA%\mbrsim\config.yaml
//
// # File Format
//
//	version: 1
//	servers:
//	  lab:
//	    address: 10.0.0.5:8080
//	preferences:
//	  output_height: 20
//	  id_prefix: "49"
//	  reports_dir: /tmp/reports
//	  default_server: lab
//	  discover_timeout: 5
//
// Missing or invalid preferences fall back to their defaults. Command-line
// flags override the file.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
