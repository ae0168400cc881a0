// Package cache memoises sampled frames so consecutive evaluations reuse the
// sample they share: evaluating frame N reads N and N-1, and evaluating N+1
// reads N+1 and N again. The evaluator itself never caches; this layer sits
// between it and the timeline sources and is keyed by (source id, frame) with
// TTL eviction. Sampling errors are never stored.
package cache
