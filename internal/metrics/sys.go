package metrics

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"time"
)

// Health is a snapshot of process resource usage.
type Health struct {
	AllocMB      uint64        `json:"allocMb"`
	SysMB        uint64        `json:"sysMb"`
	NumGC        uint32        `json:"numGc"`
	Goroutines   int           `json:"goroutines"`
	DataDirBytes int64         `json:"dataDirBytes"`
	Uptime       time.Duration `json:"uptimeNs"`
}

var startedAt = time.Now()

// GetSysHealth collects runtime stats and the size of the data directory.
func GetSysHealth(dataDir string) Health {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Health{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDirBytes: dirSize(dataDir),
		Uptime:       time.Since(startedAt),
	}
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
