// Package loader reads configuration sources into nested maps.
//
// The sources are a TOML file, with the files it includes, and the
// process environment. Each returns a map keyed by section and setting
// name, ready for layer.Merge.
package loader

import "os"

// FileSystem reads config files. Tests substitute an in-memory one.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

type osFS struct{}

func (osFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the operating system's file system.
func DefaultFS() FileSystem {
	return osFS{}
}
