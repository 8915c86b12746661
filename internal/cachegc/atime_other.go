//go:build !linux

package cachegc

import (
	"os"
	"time"
)

// accessTime falls back to modification time on platforms without
// Stat_t.Atim; the cache server is deployed on Linux in practice.
func accessTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
