package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessProfile is a memory snapshot of the current process.
type ProcessProfile struct {
	RSS        uint64 `json:"rss"`
	VMS        uint64 `json:"vms"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

// SampleProcess reads the OS view (gopsutil) and the Go heap view of
// the process memory.
func SampleProcess() (ProcessProfile, error) {
	var (
		profile ProcessProfile
		ms      runtime.MemStats
	)
	runtime.ReadMemStats(&ms)
	profile.HeapAlloc = ms.HeapAlloc
	profile.HeapInuse = ms.HeapInuse
	profile.NumGC = ms.NumGC
	profile.Goroutines = runtime.NumGoroutine()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return profile, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return profile, err
	}
	profile.RSS = mem.RSS
	profile.VMS = mem.VMS
	return profile, nil
}
