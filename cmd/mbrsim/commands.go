package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/client"
	"github.com/muurk/mbrsim/internal/config"
	"github.com/muurk/mbrsim/internal/console"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/ui"
)

// Command flags
var (
	assumeYes bool
	watch     bool
	quiet     bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(mountsCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	s := loadSettings(cmd)

	// The console owns the terminal, so logs go to a file.
	if dir, err := config.GetConfigDir(); err == nil {
		if err := logging.InitializeToFile(s.logLevel, filepath.Join(dir, "mbrsim.log")); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	defer logging.Sync()

	exec, err := s.executor()
	if err != nil {
		return err
	}

	cfg := console.Config{
		Executor:     exec,
		OutputHeight: s.outputHeight,
	}
	if len(args) == 1 {
		script, err := readScript(args[0])
		if err != nil {
			return err
		}
		cfg.Script = script
		cfg.ScriptPath = args[0]

		if w, _ := cmd.Flags().GetBool("watch"); w {
			watcher, err := console.Watch(args[0], 0)
			if err != nil {
				return err
			}
			defer watcher.Close()
			cfg.Watcher = watcher
		}
	}

	if err := console.Run(cfg); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

// execCmd runs a script file non-interactively
var execCmd = &cobra.Command{
	Use:   "exec <script>",
	Short: "Run a script and print the results",
	Long: `Run a script file and print each command's status, then all response
messages in an output panel.

A failing command does not stop the script: it is reported and the next
line runs. Scripts that contain rmdisk ask for confirmation first unless
--yes is given. Use '-' to read the script from stdin.`,
	Example: `  # Run a script in process
  mbrsim exec disks.mia

  # Run it on a remote server
  mbrsim exec disks.mia --server lab

  # Rerun whenever the file is saved
  mbrsim exec disks.mia --watch --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before removing disks")
	execCmd.Flags().BoolVar(&watch, "watch", false, "Rerun the script when the file changes")
	execCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the output panel and result")
}

func runExec(cmd *cobra.Command, args []string) error {
	s := loadSettings(cmd)
	if err := logging.Initialize(s.logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	exec, err := s.executor()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	if err := execOnce(ctx, cmd, s, exec, path); err != nil || !watch {
		return err
	}
	if path == "-" {
		return fmt.Errorf("--watch needs a script file, not stdin")
	}

	w, err := console.Watch(path, 0)
	if err != nil {
		return err
	}
	defer w.Close()

	ui.NewPrinter(cmd.OutOrStdout()).Println(ui.StepNoteStyle.Render("Watching " + path + ", press ctrl+c to stop"))
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Changes():
			if !ok {
				return nil
			}
			if err := execOnce(ctx, cmd, s, exec, path); err != nil {
				logging.Warn("Rerun failed", zap.Error(err))
			}
		}
	}
}

func execOnce(ctx context.Context, cmd *cobra.Command, s settings, exec console.Executor, path string) error {
	script, err := readScript(path)
	if err != nil {
		return err
	}
	lines := analyzer.Lines(script)

	if removed := removedDisks(lines); len(removed) > 0 && !assumeYes {
		if !ui.ConfirmDiskRemoval(os.Stdin, cmd.OutOrStdout(), removed) {
			return nil
		}
	}

	runner := ui.NewScriptRunner(ui.ScriptRunnerConfig{
		Title:   "Script execution",
		Command: "mbrsim exec " + path,
		Params: []ui.Param{
			{Key: "Script", Value: path},
			{Key: "Target", Value: exec.Target()},
		},
		Steps:        lines,
		OutputHeight: s.outputHeight,
		Quiet:        quiet,
		Output:       cmd.OutOrStdout(),
	})

	return runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (any, error) {
		responses := make([]analyzer.Response, 0, len(lines))
		err := exec.Stream(ctx, lines, func(i int, r analyzer.Response) {
			responses = append(responses, r)
			status, note := stepStatus(r)
			onStep(i+1, "", status, note)
		})
		return analyzer.Join(responses), err
	})
}

// stepStatus maps a response to its progress line.
func stepStatus(r analyzer.Response) (ui.StepStatus, string) {
	switch {
	case r.Command == analyzer.CommentCommand:
		return ui.StepSkipped, "comment"
	case r.Failed:
		msg, _, _ := strings.Cut(strings.TrimPrefix(r.Message, "> Error: "), "\n")
		return ui.StepFailed, msg
	default:
		return ui.StepComplete, ""
	}
}

// removedDisks returns the paths rmdisk lines in the script would delete.
func removedDisks(lines []string) []string {
	var paths []string
	for _, line := range lines {
		c, err := analyzer.ParseLine(line)
		if err != nil || c.Name != "rmdisk" {
			continue
		}
		if p := c.Map()["path"]; p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func readScript(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(b), nil
}

// viewCmd pages a file in the output panel
var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Show a file full-screen in the output panel",
	Long: `Show a file verbatim in a full-screen, scrollable output panel.

Useful for reading long script output or a report's .dot source.`,
	Example: `  mbrsim view reports/mbr.dot`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readScript(args[0])
		if err != nil {
			return err
		}
		return ui.RunPager(args[0], text)
	},
}

// mountsCmd lists the mount table
var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List mounted partitions",
	Long: `List the partitions mounted on a server.

Mounts last only as long as the process that made them. Without --server
this lists the (empty) table of a fresh session.`,
	Example: `  mbrsim mounts --server lab`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings(cmd)
		exec, err := s.executor()
		if err != nil {
			return err
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		text, err := exec.Mounts(cmd.Context())
		if err != nil {
			p.PrintError("Could not list mounts", err, client.GetTroubleshootingHint(err))
			return err
		}
		p.PrintOutput(text, min(s.outputHeight, strings.Count(text, "\n")+3))
		return nil
	},
}
