// Mbrsim-server runs mbrsim scripts for remote clients.
//
// It serves a JSON API and a WebSocket stream over HTTP, with optional TLS,
// and can announce itself over mDNS so 'mbrsim scan' finds it. Disk images
// are created on the server's file system and mounts last until the server
// stops.
//
// Usage:
//
//	mbrsim-server server [flags]
//
// See 'mbrsim-server server --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/config"
	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/report"
	"github.com/muurk/mbrsim/internal/server"
	"github.com/muurk/mbrsim/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mbrsim-server",
	Short: "mbrsim script server",
	Long: `A server that runs mbrsim scripts for remote clients.

Endpoints:
  POST /analyze  run a script, respond with every message at once
  GET  /ws       WebSocket; each text message is a script, responses stream back
  GET  /mounts   the mount table
  GET  /health   status and version

For the interactive console and script runner use 'mbrsim'.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Server command and flags
var (
	certPath    string
	keyPath     string
	host        string
	port        int
	logLevel    string
	allowOrigin string
	advertise   bool
	instance    string
	reportsDir  string
	idPrefix    string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the server",
	Long: `Start the mbrsim server.

TLS is enabled when both --cert and --key are given. Relative rep paths are
written under --reports-dir. With --advertise the server registers itself
as _mbrsim._tcp over mDNS.

On SIGINT or SIGTERM the server stops accepting requests, closes open
WebSocket sessions and unmounts every partition before exiting.`,
	Example: `  # Listen on all interfaces, port 8080
  mbrsim-server server

  # Announce on the local network under a fixed name
  mbrsim-server server --advertise --instance lab

  # Serve over TLS with debug logging
  mbrsim-server server --port 8443 --cert cert.pem --key key.pem --log-level debug

  # Allow a browser frontend on another origin
  mbrsim-server server --allow-origin http://localhost:3000`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serverCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serverCmd.Flags().IntVar(&port, "port", config.DefaultServerPort, "Server port")
	serverCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().StringVar(&allowOrigin, "allow-origin", "*", "Access-Control-Allow-Origin for browser clients")
	serverCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the server over mDNS")
	serverCmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default: hostname)")
	serverCmd.Flags().StringVar(&reportsDir, "reports-dir", "", "Directory relative rep paths are written to")
	serverCmd.Flags().StringVar(&idPrefix, "id-prefix", config.DefaultIDPrefix, "Mount ID prefix (1-2 characters)")
}

func runServer(cmd *cobra.Command, args []string) error {
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}
	if reportsDir != "" {
		if err := os.MkdirAll(reportsDir, 0o755); err != nil {
			return fmt.Errorf("cannot create reports directory: %w", err)
		}
	}
	if n := len(idPrefix); n < 1 || n > 2 {
		return fmt.Errorf("--id-prefix must be 1 or 2 characters, got %q", idPrefix)
	}

	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	disks := disk.NewManager(disk.WithIDPrefix(idPrefix))
	a := analyzer.New(disks, report.NewGenerator(), analyzer.WithReportsDir(reportsDir))

	srv, err := server.New(&server.Config{
		Host:        host,
		Port:        port,
		CertPath:    certPath,
		KeyPath:     keyPath,
		AllowOrigin: allowOrigin,
		Advertise:   advertise,
		Instance:    instance,
	}, a)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(cmd.Context())
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mbrsim-server %s\n", version.Full())
	},
}
