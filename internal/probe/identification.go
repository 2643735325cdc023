package probe

import "encoding/json"

// Identification is the static-inventory record an identification probe
// returns, per spec.md §6's probe output contract. Every field is optional;
// absence in the JSON maps to nil.
type Identification struct {
	Hostname     *string  `json:"hostname"`
	MACAddress   *string  `json:"mac_address"`
	CPUModel     *string  `json:"cpu_model"`
	CPUCores     *int32   `json:"cpu_cores"`
	RAMTotalGB   *float64 `json:"ram_total_gb"`
	DiskTotalGB  *float64 `json:"disk_total_gb"`
	GPUModel     *string  `json:"gpu_model"`
	GPUMemoryGB  *float64 `json:"gpu_memory"`
}

// IdentificationScript is the probe payload invoked during discovery.
// The script body itself is the external black box spec.md §1 names as a
// non-goal; this is the mode flag contract the collector relies on.
var IdentificationScript = Script{
	Name:     "identify",
	ModeFlag: "--identify",
	Source:   identifyScriptSource,
}

// ParseIdentification decodes raw probe JSON into an Identification record.
// Unknown fields are ignored; missing fields are left nil.
func ParseIdentification(raw []byte) (Identification, error) {
	var id Identification
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identification{}, err
	}
	return id, nil
}

// identifyScriptSource is a minimal reference probe script. Real fleets
// supply their own; this one exists so a freshly cloned collector has
// something runnable to point at a test host.
const identifyScriptSource = `#!/bin/bash
set -euo pipefail
hostname_v="$(hostname -f 2>/dev/null || hostname)"
mac_v="$(cat /sys/class/net/$(ip route show default | awk '/default/ {print $5}' | head -n1)/address 2>/dev/null || echo null)"
cpu_model_v="$(grep -m1 'model name' /proc/cpuinfo | cut -d: -f2 | sed 's/^ *//')"
cpu_cores_v="$(nproc)"
ram_total_v="$(awk '/MemTotal/ {printf "%.2f", $2/1024/1024}' /proc/meminfo)"
disk_total_v="$(df -BG --total 2>/dev/null | awk '/total/ {gsub("G","",$2); print $2}')"

printf '{"hostname":"%s","mac_address":"%s","cpu_model":"%s","cpu_cores":%s,"ram_total_gb":%s,"disk_total_gb":%s,"gpu_model":null,"gpu_memory":null}\n' \
  "$hostname_v" "$mac_v" "$cpu_model_v" "$cpu_cores_v" "$ram_total_v" "$disk_total_v"
`
