// Package cache keeps synthesized speech so repeated practice of the same
// line doesn't re-run the synthesizer. It pairs an in-memory LRU cache (L1)
// with a zstd-compressed disk cache (L2) that survives restarts.
package cache
