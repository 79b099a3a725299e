//go:build !windows

package registry

// Default returns an empty in-memory registry on hosts without a native one.
// Use LoadSnapshot to hunt over an exported registry instead.
func Default() Backend {
	return NewMemoryBackend(true)
}
