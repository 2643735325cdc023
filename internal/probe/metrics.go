package probe

import "encoding/json"

// Metrics is the dynamic-telemetry record a metrics probe returns, per
// spec.md §6. All fields are optional.
type Metrics struct {
	CPUPercent      *float64 `json:"cpu_percent"`
	CPUTemperature  *float64 `json:"cpu_temperature"`
	RAMPercent      *float64 `json:"ram_percent"`
	DiskPercent     *float64 `json:"disk_percent"`
	DiskReadMBps    *float64 `json:"disk_read_mbps"`
	DiskWriteMBps   *float64 `json:"disk_write_mbps"`
	NetworkSentMBps *float64 `json:"network_sent_mbps"`
	NetworkRecvMBps *float64 `json:"network_recv_mbps"`
	GPUPercent      *float64 `json:"gpu_percent"`
	GPUMemoryUsedGB *float64 `json:"gpu_memory_used_gb"`
	GPUTemperature  *float64 `json:"gpu_temperature"`
	UptimeSeconds   *float64 `json:"uptime_seconds"`
	LoggedInUsers   *int32   `json:"logged_in_users"`
}

// MetricsScript is the probe payload invoked on every collection cycle.
var MetricsScript = Script{
	Name:     "metrics",
	ModeFlag: "--metrics",
	Source:   metricsScriptSource,
}

// ParseMetrics decodes raw probe JSON into a Metrics record.
func ParseMetrics(raw []byte) (Metrics, error) {
	var m Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

const metricsScriptSource = `#!/bin/bash
set -euo pipefail
cpu_v="$(top -bn1 | awk '/Cpu/ {print 100-$8}')"
ram_v="$(free | awk '/Mem/ {printf "%.2f", $3/$2*100}')"
disk_v="$(df / | awk 'NR==2 {gsub("%","",$5); print $5}')"
uptime_v="$(awk '{print $1}' /proc/uptime)"
users_v="$(who | wc -l)"

printf '{"cpu_percent":%s,"cpu_temperature":null,"ram_percent":%s,"disk_percent":%s,"disk_read_mbps":null,"disk_write_mbps":null,"network_sent_mbps":null,"network_recv_mbps":null,"gpu_percent":null,"gpu_memory_used_gb":null,"gpu_temperature":null,"uptime_seconds":%s,"logged_in_users":%s}\n' \
  "$cpu_v" "$ram_v" "$disk_v" "$uptime_v" "$users_v"
`
