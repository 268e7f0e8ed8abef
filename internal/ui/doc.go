// Package ui provides terminal UI components for mbrsim.
//
// The centrepiece is Output, a fixed-height, scrollable, dark panel that
// shows a text payload verbatim. It is used three ways:
//
//   - as a Bubble Tea component embedded in the interactive console
//   - printed once by ScriptRunner and Printer.PrintOutput after a run
//   - full-screen through RunPager for "mbrsim view"
//
// Output never wraps: long lines are cut at the panel edge and scroll
// horizontally. Tabs expand to OutputTabWidth stops and control characters
// are shown in caret notation (^A, ^[) so a payload cannot move the cursor
// or change colours. The panel is always Height() rows tall whatever the
// payload length, and a scrollbar is always drawn on its right edge.
//
// Re-rendering is explicit: SetData redraws only when the new text differs
// from what is displayed, and reports whether it did.
//
// # Run Output
//
// Non-interactive commands use the header → steps → output → result flow:
//
//	runner := ui.NewScriptRunner(ui.ScriptRunnerConfig{
//	    Title:   "Script execution",
//	    Command: "mbrsim exec disks.mia",
//	    Steps:   lines,
//	})
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (any, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ... run the command ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return text, nil
//	})
//
// # Logging Integration
//
// Logging is controlled via the MBRSIM_LOG_LEVEL environment variable. When
// unset, zap logging is silent so the UI output is displayed cleanly.
package ui
