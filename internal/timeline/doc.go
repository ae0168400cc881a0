// Package timeline provides the sampling sources that stand in for the host's
// animated inputs. A Source answers "what was this input at frame f?" for any
// frame, including frames outside the playback range.
//
// Implemented sources: Curve (scalar keys, e.g. distance along a motion path)
// and Track (4×4 transform keys, interpolated element-wise with gonum).
// Factory: New(id, channel, mode) builds the right Source from a
// config.Channel.
//
// Outside the key range a source either holds the nearest end key
// (infinity "constant") or fails with ErrOutOfRange (infinity "strict").
package timeline
