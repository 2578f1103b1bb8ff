// Package apns implements the legacy Apple Push Notification Service
// binary protocol.
//
// The push channel frames each notification as an enhanced-format packet
// (command 1) carrying a 32-bit identifier and an expiry, writes it over a
// persistent TLS connection, and listens for the 6-byte error response with
// which APNS reports a rejected message and tears down the stream. The
// feedback channel is polled periodically for 38-byte records naming device
// tokens that have become unreachable.
//
// Both engines are driven cooperatively: the host calls Run on each tick of
// its own main loop, and the library never starts goroutines, timers or
// callbacks of its own. Reads are bounded by a short poll window and writes
// by a deadline, so a tick never blocks for long.
package apns
