// Package kv provides the small key-value persistence port used for pages,
// lecture summaries, chat logs and synthesized audio. Three stores are
// included: an in-memory LRU store with a byte quota, a compressed on-disk
// store, and a single-file SQLite store.
package kv
