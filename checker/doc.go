// Health probes for pooled cluster connections
//
// PingProber - Check a connection with the redis 'PING' command.
// Any reply other than PONG, including a transport failure, fails the probe.
// A failed connection is expected to be closed and replaced by the caller.
//
package checker
