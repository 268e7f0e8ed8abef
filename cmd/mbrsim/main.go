// Mbrsim runs disk-administration scripts against simulated disk images.
//
// Scripts are lists of commands (mkdisk, rmdisk, fdisk, mount, unmount,
// rep) that create binary disk images with an MBR partition table, carve
// partitions into them, mount them and render Graphviz reports. Scripts run
// in process or on a remote mbrsim-server.
//
// Usage:
//
//	mbrsim [script] [flags]
//
// Running without a subcommand launches the interactive console.
// See 'mbrsim --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/client"
	"github.com/muurk/mbrsim/internal/config"
	"github.com/muurk/mbrsim/internal/console"
	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/report"
	"github.com/muurk/mbrsim/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags. Unset flags fall back to the config file.
var (
	logLevel     string
	outputHeight int
	idPrefix     string
	reportsDir   string
	serverName   string
	serverTLS    bool
)

var rootCmd = &cobra.Command{
	Use:   "mbrsim [script]",
	Short: "MBR disk simulator",
	Long: `Run disk-administration scripts against simulated disk images.

Scripts are plain text, one command per line:
  mkdisk   create a disk image with an empty MBR
  rmdisk   delete a disk image
  fdisk    create a primary, extended or logical partition
  mount    mount a primary partition and assign it an ID
  unmount  unmount a partition by ID
  rep      render an mbr or disk report with Graphviz

Lines starting with # are comments. If no command is specified, the
interactive console launches, optionally loaded with a script.`,
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runConsole,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	pf.IntVar(&outputHeight, "height", config.DefaultOutputHeight, "Output panel height in rows")
	pf.StringVar(&idPrefix, "id-prefix", config.DefaultIDPrefix, "Mount ID prefix (1-2 characters)")
	pf.StringVar(&reportsDir, "reports-dir", "", "Directory relative rep paths are written to")
	pf.StringVarP(&serverName, "server", "s", "", "Run scripts on a server (nickname from config or host:port)")
	pf.BoolVar(&serverTLS, "tls", false, "Use TLS when --server is a literal address")

	rootCmd.Flags().Bool("watch", false, "Reload and rerun the script when the file changes")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mbrsim %s\n", version.Full())
	},
}

// settings are the effective preferences for one invocation.
type settings struct {
	registry     *config.Registry
	logLevel     string
	outputHeight int
	idPrefix     string
	reportsDir   string
	server       string
	tls          bool
}

// loadSettings merges the config file with the flags that were set on the
// command line.
func loadSettings(cmd *cobra.Command) settings {
	reg, err := config.GetGlobalRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring config file: %v\n", err)
		reg = config.NewRegistry()
	}
	p := reg.Preferences

	s := settings{
		registry:     reg,
		logLevel:     p.LogLevel,
		outputHeight: p.OutputHeight,
		idPrefix:     p.IDPrefix,
		reportsDir:   p.ReportsDir,
		tls:          serverTLS,
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.logLevel = logLevel
	}
	if flags.Changed("height") {
		s.outputHeight = outputHeight
	}
	if flags.Changed("id-prefix") {
		s.idPrefix = idPrefix
	}
	if flags.Changed("reports-dir") {
		s.reportsDir = reportsDir
	}
	if flags.Changed("server") {
		s.server = serverName
	}
	return s
}

// executor returns where scripts run: the server named by --server, or a
// fresh in-process analyzer.
func (s settings) executor() (console.Executor, error) {
	if s.server != "" {
		address, useTLS, ok := s.registry.ResolveServer(s.server)
		if !ok {
			return nil, fmt.Errorf("unknown server %q", s.server)
		}
		if s.tls {
			useTLS = true
		}
		logging.Debug("Using remote server", zap.String("address", address), zap.Bool("tls", useTLS))
		return console.RemoteExecutor{Client: client.New(address, useTLS)}, nil
	}

	disks := disk.NewManager(disk.WithIDPrefix(s.idPrefix))
	a := analyzer.New(disks, report.NewGenerator(), analyzer.WithReportsDir(s.reportsDir))
	return console.LocalExecutor{Analyzer: a}, nil
}
