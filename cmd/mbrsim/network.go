package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/mbrsim/internal/client"
	"github.com/muurk/mbrsim/internal/config"
	"github.com/muurk/mbrsim/internal/discovery"
	"github.com/muurk/mbrsim/internal/ui"
)

var (
	scanTimeout int
	scanSave    bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configForgetCmd)
	configCmd.AddCommand(configDefaultCmd)
}

// scanCmd discovers servers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for mbrsim servers on the network",
	Long: `Scan for mbrsim servers using mDNS/DNS-SD discovery.

Servers started with --advertise announce themselves as _mbrsim._tcp.
With --save every server found is remembered in the config file under its
instance name, so it can be used with --server <name>.`,
	Example: `  # Scan with the configured timeout
  mbrsim scan

  # Quick 2-second scan, remembering what is found
  mbrsim scan --timeout 2 --save`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from config)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Remember discovered servers in the config file")
}

func runScan(cmd *cobra.Command, args []string) error {
	s := loadSettings(cmd)
	timeout := s.registry.Preferences.DiscoverTimeout
	if scanTimeout > 0 {
		timeout = scanTimeout
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Server discovery", "mbrsim scan",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Timeout", Value: strconv.Itoa(timeout) + "s"},
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	servers, err := discovery.NewScanner().Scan(ctx)
	if err != nil {
		p.PrintError("Scan failed", err, []string{
			"Check that multicast traffic is allowed on this network",
			"Connect directly with --server host:port",
		})
		return err
	}

	if len(servers) == 0 {
		p.PrintWarning("No servers found",
			ui.Param{Key: "Hint", Value: "start one with: mbrsim-server server --advertise"},
		)
		return nil
	}

	details := make([]ui.Param, 0, len(servers))
	for _, srv := range servers {
		details = append(details, ui.Param{Key: srv.Instance, Value: srv.Address()})
		if scanSave {
			s.registry.RememberServer(srv.Instance, srv.Address(), srv.TLS)
		}
	}
	if scanSave {
		if err := s.registry.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	p.PrintSuccess(fmt.Sprintf("Found %d server(s)", len(servers)), details...)
	return nil
}

// pingCmd checks a server's health
var pingCmd = &cobra.Command{
	Use:   "ping [server]",
	Short: "Check that a server is reachable",
	Long: `Query a server's health endpoint and show its version and mount count.

The server is a nickname from the config file or a host:port address. With
no argument the configured default server is used.`,
	Example: `  mbrsim ping
  mbrsim ping lab
  mbrsim ping 192.168.1.20:8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPing,
}

func runPing(cmd *cobra.Command, args []string) error {
	s := loadSettings(cmd)
	name := s.server
	if len(args) == 1 {
		name = args[0]
	}
	address, useTLS, ok := s.registry.ResolveServer(name)
	if !ok {
		return errors.New("no server given and no default server configured")
	}
	if s.tls {
		useTLS = true
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	c := client.New(address, useTLS)
	start := time.Now()
	health, err := c.Health(cmd.Context())
	if err != nil {
		p.PrintError("Server unreachable", err, client.GetTroubleshootingHint(err))
		return errors.New(client.GetShortErrorMessage(err))
	}

	if name != "" && s.registry.GetServer(name) != nil {
		s.registry.RememberServer(name, address, useTLS)
		_ = s.registry.Save()
	}

	p.PrintSuccess("Server is up",
		ui.Param{Key: "Address", Value: c.BaseURL},
		ui.Param{Key: "Status", Value: health.Status},
		ui.Param{Key: "Version", Value: health.Version.Version},
		ui.Param{Key: "Mounts", Value: strconv.Itoa(health.Mounts)},
		ui.Param{Key: "Latency", Value: time.Since(start).Round(time.Millisecond).String()},
	)
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mbrsim config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig()
		if err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Config created", ui.Param{Key: "Path", Value: path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings(cmd)
		data, err := yaml.Marshal(s.registry)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		path, _ := config.GetConfigPath()
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.Println(ui.OutputTitleStyle.Render(path))
		p.Println(ui.RenderOutput(string(data), p.Width(), s.outputHeight))
		return nil
	},
}

var configForgetCmd = &cobra.Command{
	Use:   "forget <server>",
	Short: "Remove a remembered server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.GetGlobalRegistry()
		if err != nil {
			return err
		}
		if !reg.ForgetServer(args[0]) {
			return fmt.Errorf("unknown server %q", args[0])
		}
		return reg.Save()
	},
}

var configDefaultCmd = &cobra.Command{
	Use:   "default <server>",
	Short: "Set the server ping uses when none is named",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.GetGlobalRegistry()
		if err != nil {
			return err
		}
		if reg.GetServer(args[0]) == nil {
			return fmt.Errorf("unknown server %q, see 'mbrsim scan --save'", args[0])
		}
		reg.Preferences.DefaultServer = args[0]
		return reg.Save()
	},
}
