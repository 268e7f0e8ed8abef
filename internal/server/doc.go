// Package server serves the script analyzer over HTTP and WebSocket.
//
// # Endpoints
//
//	POST /analyze   {"commands": ["mkdisk ...", "fdisk ..."]} -> [Response, ...]
//	GET  /mounts    the mount table as a JSON array
//	GET  /health    {"status": "ok", "version": {...}, "mounts": n}
//	GET  /ws        WebSocket; each text message is a script
//
// On /ws every response is sent as its own JSON message as soon as the line
// has run, and each script ends with {"command":"done"}.
//
// Every request gets an X-Request-ID (a UUID, or the client's own if it
// sent a valid one) that appears in the logs and the response headers.
// CORS headers allow browser frontends; the allowed origin is configurable.
//
// Scripts run one at a time: two clients never interleave commands on the
// shared mount table.
//
// # Usage Example
//
//	a := analyzer.New(disk.NewManager(), report.NewGenerator())
//	srv, err := server.New(&server.Config{Port: 8080, Advertise: true}, a)
//	if err != nil {
//	    return err
//	}
//	// Start blocks until ctx ends or SIGINT/SIGTERM arrives
//	return srv.Start(ctx)
//
// TLS is enabled by setting both CertPath and KeyPath.
//
// # Graceful Shutdown
//
//  1. Withdraw the mDNS advertisement
//  2. Stop accepting connections and let in-flight requests finish
//  3. Close WebSocket sessions with a going-away close frame
//  4. Unmount every mounted partition, since mounts last only as long as
//     the server
package server
