// Package console implements the interactive mbrsim console.
//
// The console is a full-screen Bubble Tea program with a script editor
// (bubbles/textarea) above an output panel (ui.Output). A run sends the
// editor contents to an Executor, either an in-process analyzer or a remote
// mbrsim server, and shows the joined response messages in the panel.
//
// # Key Bindings
//
//   - ctrl+r: run the script
//   - ctrl+l: clear the output panel
//   - tab: move focus between the editor and the output panel
//   - ctrl+o: toggle between the last run and the mount table
//   - esc, ctrl+c: quit
//
// When the output panel has focus the arrow keys, pgup/pgdn and home/end
// scroll it.
//
// # Watching
//
// With a Watcher in the Config the script file is reloaded into the editor
// and rerun each time it is saved:
//
//	w, err := console.Watch("disks.mia", 0)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	return console.Run(console.Config{
//	    Executor:   console.LocalExecutor{Analyzer: a},
//	    Script:     script,
//	    ScriptPath: "disks.mia",
//	    Watcher:    w,
//	})
//
// Runs are asynchronous. The output panel only redraws when a run produces
// text different from what it already shows, so an identical rerun keeps
// the scroll position.
package console
