// Package client talks to a remote mbrsim-server.
//
//	c := client.New("10.0.0.5:8080", false)
//	responses, err := c.Analyze(ctx, []string{"mkdisk -size=5 -path=/tmp/a.mia"})
//
// Stream sends a script over a WebSocket session and hands each response
// to a callback as soon as the server has produced it.
//
// Errors are *ClientError values. GET requests are retried with
// exponential backoff when the error is retryable; Analyze is only retried
// when the connection was refused, so a script never runs twice.
package client
