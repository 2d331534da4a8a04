// Package stats gathers the local node's resource statistics for reporting.
package stats

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nodepulse/nodepulse/internal/core/domain"
)

// Collector samples the node's current resources. Readings that cannot be
// taken on this platform are left at zero; the report still goes out.
type Collector struct {
	dataDir string
}

// NewCollector creates a collector. Disk capacity is measured at dataDir.
func NewCollector(dataDir string) *Collector {
	return &Collector{dataDir: dataDir}
}

// Collect returns a snapshot of the node's resources.
func (c *Collector) Collect() domain.NodeStats {
	return domain.NodeStats{
		VCPUs:       runtime.NumCPU(),
		MemoryMB:    memTotalMB(),
		LocalGB:     diskTotalGB(c.dataDir),
		CollectedAt: time.Now().UTC(),
	}
}

func memTotalMB() int64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseMemTotalMB(f)
}

// parseMemTotalMB extracts MemTotal from /proc/meminfo content (kB units).
func parseMemTotalMB(r io.Reader) int64 {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}

func diskTotalGB(path string) int64 {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0
	}
	total := uint64(fs.Bsize) * fs.Blocks
	return int64(total / (1 << 30))
}
