package core

import "os"

// openFile is a thin indirection so Artifact.Open can be exercised by
// tests without depending on a real filesystem layout.
func openFile(path string) (*os.File, error) {
	return os.Open(path)
}
