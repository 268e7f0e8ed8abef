// Package logging provides structured logging for mbrsim.
//
// This package wraps a zap logger with package-level helpers so disk
// operations, the analyzer, and the server all log the same way.
//
// # Log Levels
//
//   - Debug: raw bytes written to disk images, websocket frames
//   - Info: commands run, partitions mounted, server lifecycle
//   - Warn: non-fatal issues (failed unmount during cleanup, dropped clients)
//   - Error: startup failures
//
// # Specialized Logging
//
// Command logging, one entry per script line:
//
//	logging.LogCommand("fdisk", params, time.Since(start), err)
//
// HTTP logging, paired by request ID:
//
//	logging.LogHTTPRequest(id, r.RemoteAddr, r.Method, r.URL.Path)
//	logging.LogHTTPResponse(id, status, time.Since(start))
//
// Disk writes at debug level, as a hex and ASCII dump:
//
//	logging.LogRawBytes("mbr", 0, buf)
//
// # Configuration
//
// The level comes from the command line or MBRSIM_LOG_LEVEL:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// The interactive console logs to a file instead of stdout so log lines do
// not corrupt the screen; see InitializeToFile.
//
// Until one of the Initialize functions is called the logger is a no-op.
// All functions are safe for concurrent use.
package logging
