// Package playback provides the scene's current time: a frame counter that
// advances one frame per tick and loops over the scene range. It plays the
// part of the host's global time source for serve mode; nothing in compute
// reads it directly.
package playback
