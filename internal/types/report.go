package types

import "github.com/google/uuid"

// InitialConnectReport describes the host facts announced once per session,
// taken fresh at connection time.
type InitialConnectReport struct {
	Hostname         string    `json:"hostname"`
	DeviceID         uuid.UUID `json:"device_id"`
	OSName           string    `json:"os_name"`
	OSVersion        string    `json:"os_version"`
	OSVersionLong    string    `json:"os_version_long"`
	TotalMemoryBytes uint64    `json:"total_memory_bytes"`
	TotalDiskBytes   uint64    `json:"total_disk_bytes"`
	CPUCount         int       `json:"cpu_count"`
	CPUBrand         string    `json:"cpu_brand"`
	CPUName          string    `json:"cpu_name"`
	UptimeSeconds    uint64    `json:"uptime_seconds"`
}

// PeriodicUpdateReport describes one interval tick. Recomputed fresh on
// every tick, never cumulative.
type PeriodicUpdateReport struct {
	CPUUtilization       float64 `json:"cpu_utilization"` // 0.0 - 100.0
	AvailableMemoryBytes uint64  `json:"available_memory_bytes"`
	AvailableDiskBytes   uint64  `json:"available_disk_bytes"`
	ProcessCount         int     `json:"process_count"`
	TopProcessName       string  `json:"top_process_name"`
	TopProcessUser       string  `json:"top_process_user"`
}
