// Package file provides the TOML-backed ConfigStore.
//
// Settings live in ~/.docsync/config.toml as ordinary TOML tables:
//
//	[sync]
//	max_retries = 3
//
//	[embedding]
//	provider = "ollama"
//
// The store exposes them as flat dot-notation keys ("sync.max_retries")
// and writes them back as nested tables.
package file
