package engine

import "github.com/shirou/gopsutil/v3/mem"

// fallbackTotalMemory is used when the host's memory stats are
// unavailable (e.g. a restricted container); chosen conservatively so
// the computed default chunk size still lands in a sane range.
const fallbackTotalMemory = 4 * 1024 * 1024 * 1024 // 4 GiB

// totalSystemMemory returns the host's total physical RAM in bytes,
// falling back to a conservative constant if the platform query fails.
func totalSystemMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return fallbackTotalMemory
	}
	return vm.Total
}
