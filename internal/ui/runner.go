package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ScriptRunnerConfig holds configuration for a script run
type ScriptRunnerConfig struct {
	Title        string    // Run title (e.g., "Script execution")
	Command      string    // Full command (e.g., "mbrsim exec disks.mia")
	Params       []Param   // Parameters to display in header
	Steps        []string  // One name per command line
	OutputHeight int       // Output panel height (default: DefaultOutputHeight)
	Quiet        bool      // Skip the step list, print only the result and output
	Output       io.Writer // Output writer (default: os.Stdout)
}

// ScriptRunner orchestrates the printed UI for a script run: header, one
// line per command as it finishes, the output panel, then a result box.
type ScriptRunner struct {
	config    ScriptRunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	startTime time.Time
	width     int
}

// NewScriptRunner creates a new runner
func NewScriptRunner(config ScriptRunnerConfig) *ScriptRunner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.OutputHeight <= 0 {
		config.OutputHeight = DefaultOutputHeight
	}

	width := GetTerminalWidth()

	return &ScriptRunner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress("", config.Steps...).SetWidth(width),
		output:   config.Output,
		width:    width,
	}
}

// SetWidth overrides the detected terminal width.
func (r *ScriptRunner) SetWidth(width int) *ScriptRunner {
	r.width = width
	r.header.SetWidth(width)
	r.progress.SetWidth(width)
	return r
}

// Progress returns the step tracker, for inspecting the final step states.
func (r *ScriptRunner) Progress() *Progress {
	return r.progress
}

// ScriptOperation runs the script, reporting each command through onStep.
// It returns the text to show in the output panel.
type ScriptOperation func(ctx context.Context, onStep StepCallback) (any, error)

// Run executes the operation with UI updates. Commands that fail are
// reported in the step list and counted in the result, they do not make Run
// return an error. Only an error from the operation itself does.
func (r *ScriptRunner) Run(ctx context.Context, operation ScriptOperation) error {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	data, err := operation(ctx, r.createStepCallback())
	duration := time.Since(r.startTime)

	_, _ = fmt.Fprintln(r.output)
	_, _ = fmt.Fprintln(r.output, OutputTitleStyle.Render("Output"))
	_, _ = fmt.Fprintln(r.output, RenderOutput(data, r.width, r.config.OutputHeight))
	_, _ = fmt.Fprintln(r.output)

	if err != nil {
		r.printFailure(err, duration)
		return err
	}
	r.printSummary(duration)
	return nil
}

func (r *ScriptRunner) createStepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}
		if name != "" {
			r.progress.Steps[stepNumber-1].Name = name
		}
		r.progress.UpdateStep(stepNumber, status, message)

		if r.config.Quiet {
			return
		}
		step := r.progress.Steps[stepNumber-1]
		switch status {
		case StepComplete, StepFailed, StepSkipped:
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		case StepRunning:
			// Overwritten by the finished line.
			_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(step)+"\r")
		}
	}
}

func (r *ScriptRunner) printSummary(duration time.Duration) {
	complete, failed, skipped := r.progress.Counts()
	details := []Param{
		{Key: "Commands", Value: strconv.Itoa(complete + failed)},
		{Key: "Succeeded", Value: strconv.Itoa(complete)},
		{Key: "Failed", Value: strconv.Itoa(failed)},
		{Key: "Comments", Value: strconv.Itoa(skipped)},
		{Key: "Duration", Value: duration.Round(time.Millisecond).String()},
	}

	var result *Result
	if failed > 0 {
		result = NewWarningResult(fmt.Sprintf("%s finished with %d failed command(s)", r.config.Title, failed), details...)
	} else {
		result = NewSuccessResult(r.config.Title+" complete", details...)
	}
	_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
}

func (r *ScriptRunner) printFailure(err error, duration time.Duration) {
	troubleshooting := []string{
		"Check the script path and that the file is readable",
		"If running against a server, verify it is reachable: mbrsim scan",
		"Set MBRSIM_LOG_LEVEL=debug for detailed logs",
	}

	result := NewFailureResult(r.config.Title+" failed", err, troubleshooting)
	result.AddDetail("Duration", duration.Round(time.Millisecond).String())
	_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
}
