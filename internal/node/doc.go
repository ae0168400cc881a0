// Package node is the host-integration layer around compute.Evaluate.
//
// A Node binds one configured speedometer to its scene constants (frame
// duration and distance-per-unit, resolved once at build time) and to the
// timeline sources driving its matrix and distance inputs. An input with no
// configured channel is unconnected, which the evaluator turns into a zero.
//
// Graph holds every Node of a scene. It is safe for concurrent use and can be
// rebuilt from a new Config with Reload, which swaps the node set atomically
// and drops cached samples.
package node
