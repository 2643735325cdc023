// Package store owns the relational representation of the fleet: hosts,
// departments, labs, metric samples, and discovery scans. It is the single
// integration point between the collector control plane and Postgres.
package store

import (
	"time"

	"github.com/google/uuid"
)

// HostID identifies a Host across the collector, the scheduler, and the
// store. Standardizing on a single typed identifier (rather than the bare
// ints and host structs the Python original passes around interchangeably)
// keeps every API in this module unambiguous.
type HostID uuid.UUID

func (h HostID) String() string { return uuid.UUID(h).String() }

// NilHostID is the zero value, used as a sentinel for "not yet assigned".
var NilHostID = HostID(uuid.Nil)

// DeptID identifies a Department.
type DeptID uuid.UUID

func (d DeptID) String() string { return uuid.UUID(d).String() }

// LabID identifies a lab grouping within a department.
type LabID uuid.UUID

func (l LabID) String() string { return uuid.UUID(l).String() }

// ScanID identifies a DiscoveryScan.
type ScanID uuid.UUID

func (s ScanID) String() string { return uuid.UUID(s).String() }

// HostStatus is the lifecycle state of a Host row.
type HostStatus string

const (
	HostDiscovered HostStatus = "discovered"
	HostActive     HostStatus = "active"
	HostOffline    HostStatus = "offline"
)

// ScanStatus is the lifecycle state of a DiscoveryScan row.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Department groups hosts under a CIDR-addressable subnet.
type Department struct {
	ID   DeptID
	Name string
	// CIDR is the subnet owned by this department, e.g. "10.30.0.0/24".
	// Nil when the department has no subnet assigned (discovery skips it).
	CIDR *string
}

// Lab is a sub-grouping of hosts inside a Department.
type Lab struct {
	ID     LabID
	DeptID DeptID
	Name   string
}

// Inventory holds the static hardware facts gathered by identification.
type Inventory struct {
	CPUModel    *string
	CPUCores    *int32
	RAMTotalGB  *float64
	DiskTotalGB *float64
	GPUModel    *string
	GPUMemoryGB *float64
}

// Host is a single networked endpoint under management.
type Host struct {
	ID              HostID
	NetworkAddress  string // unique; upserts key on this column
	HardwareAddress *string
	Hostname        *string
	DeptID          *DeptID
	LabID           *LabID
	Inventory       Inventory
	Status          HostStatus
	FirstSeen       time.Time
	LastSeen        time.Time
}

// MetricSample is one point-in-time snapshot of a host's dynamic telemetry.
// Identity is (HostID, Timestamp); immutable once inserted. Every numeric
// field is optional because the remote probe tolerates partial records.
type MetricSample struct {
	HostID    HostID
	Timestamp time.Time

	CPUPercent      *float64
	CPUTemperature  *float64
	RAMPercent      *float64
	DiskPercent     *float64
	DiskReadMBps    *float64
	DiskWriteMBps   *float64
	NetworkSentMBps *float64
	NetworkRecvMBps *float64
	GPUPercent      *float64
	GPUMemoryUsedGB *float64
	GPUTemperature  *float64
	UptimeSeconds   *int64
	LoggedInUsers   *int32

	CollectionLatencyMS *float64
	// CollectionMethod records how the sample was obtained. Always "ssh" in
	// this implementation; the column exists so a future WMI collector can
	// share the table without a migration.
	CollectionMethod string
}

// DiscoveryScan records one run of the discovery pipeline over a department's
// CIDR, from start to completion or failure.
type DiscoveryScan struct {
	ID           ScanID
	DeptID       DeptID
	CIDR         string
	StartedAt    time.Time
	EndedAt      *time.Time
	Status       ScanStatus
	HostCount    int
	ErrorMessage *string
}

// NewHostID generates a fresh HostID (UUIDv7, time-ordered).
func NewHostID() HostID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return HostID(id)
}

// NewScanID generates a fresh ScanID (UUIDv7, time-ordered).
func NewScanID() ScanID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ScanID(id)
}
