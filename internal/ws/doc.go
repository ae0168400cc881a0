// Package ws streams playback to WebSocket clients.
//
// Every client receives the current snapshot on connect and a
// {"event":"frame","data":<snapshot>} message on each playback tick.
package ws
