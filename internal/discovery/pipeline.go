package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noiseless47/optilab-collector/internal/bus"
	"github.com/noiseless47/optilab-collector/internal/probe"
	"github.com/noiseless47/optilab-collector/internal/sshpool"
	"github.com/noiseless47/optilab-collector/internal/store"
)

// SSHPort is the fixed remote-shell port targeted by the reachability sweep
// and identification probes.
const SSHPort = 22

// Pipeline runs one discovery pass per department, per spec.md §4.3.
type Pipeline struct {
	Store   *store.Store
	Pool    *sshpool.Pool
	Runner  *probe.Runner
	Bus     *bus.Client
	Cred    sshpool.Credential
	Logger  *zap.Logger
	Workers int // bounded fan-out for identification probes, default 10
}

// New constructs a Pipeline with a default fan-out of 10. busClient may be
// nil, in which case discovered systems are upserted but not also announced
// on the discovery subject.
func New(st *store.Store, pool *sshpool.Pool, busClient *bus.Client, cred sshpool.Credential, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Store:   st,
		Pool:    pool,
		Runner:  probe.NewRunner(),
		Bus:     busClient,
		Cred:    cred,
		Logger:  logger,
		Workers: 10,
	}
}

// RunAll runs one discovery pass over every department with a non-null
// CIDR, per spec.md §4.3: "For each configured department with a non-null
// CIDR". Departments without one are silently skipped.
func (p *Pipeline) RunAll(ctx context.Context) error {
	depts, err := p.Store.ListDepartments(ctx)
	if err != nil {
		return fmt.Errorf("discovery: list departments: %w", err)
	}

	for _, d := range depts {
		if d.CIDR == nil {
			continue
		}
		if err := p.RunDepartment(ctx, d); err != nil {
			p.Logger.Error("discovery pass failed", zap.String("department", d.Name), zap.Error(err))
		}
	}
	return nil
}

// RunDepartment runs one discovery scan for a single department. An error
// during the scan marks the DiscoveryScan row failed with the error's
// message and is also returned to the caller.
func (p *Pipeline) RunDepartment(ctx context.Context, dept store.Department) error {
	scan, err := p.Store.StartDiscoveryScan(ctx, dept.ID, *dept.CIDR)
	if err != nil {
		return fmt.Errorf("discovery: start scan: %w", err)
	}

	hostCount, scanErr := p.scanDepartment(ctx, dept)

	status := store.ScanCompleted
	var errMsg *string
	if scanErr != nil {
		status = store.ScanFailed
		msg := scanErr.Error()
		errMsg = &msg
	}

	if err := p.Store.FinishDiscoveryScan(ctx, scan.ID, status, hostCount, errMsg); err != nil {
		p.Logger.Error("failed to finish discovery scan", zap.String("scan_id", scan.ID.String()), zap.Error(err))
	}
	return scanErr
}

func (p *Pipeline) scanDepartment(ctx context.Context, dept store.Department) (int, error) {
	addrs, err := Enumerate(*dept.CIDR)
	if err != nil {
		return 0, err
	}

	responsive := Sweep(ctx, addrs, SSHPort, p.Workers)
	if len(responsive) == 0 {
		return 0, nil
	}

	lab, hasLab, err := p.Store.FirstLab(ctx, dept.ID)
	if err != nil {
		return 0, fmt.Errorf("lookup first lab: %w", err)
	}
	var labID *store.LabID
	if hasLab {
		labID = &lab.ID
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 10
	}
	sem := semaphore.NewWeighted(int64(workers))

	var mu sync.Mutex
	var discovered []bus.DiscoveredSystem

	var wg sync.WaitGroup
	for _, addr := range responsive {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			defer sem.Release(1)

			sys, ok := p.identifyAndUpsert(ctx, dept.ID, labID, addr)
			if ok {
				mu.Lock()
				discovered = append(discovered, sys)
				mu.Unlock()
			}
		}(addr)
	}
	wg.Wait()

	// Announce the batch on the discovery subject, per spec.md §4.6's
	// subject set, in addition to the direct upsert §4.3 already performed:
	// consumers other than this pipeline (e.g. the ingest worker driving a
	// second store, or an external subscriber) learn about the pass without
	// polling the systems table.
	if p.Bus != nil && len(discovered) > 0 {
		if err := p.Bus.PublishDiscovery(bus.DiscoveryMessage{
			Timestamp: time.Now().UTC(),
			Systems:   discovered,
		}); err != nil {
			p.Logger.Warn("discovery announcement publish failed", zap.Error(err))
		}
	}

	return len(discovered), nil
}

// identifyAndUpsert runs the identification probe against one responsive
// address and upserts the resulting Host. Upserts are per-address and may
// interleave across addresses, per spec.md §4.3 ordering note; only the
// per-connection session acquisition is serialized (by the pool's mutex).
// On success it also returns the bus.DiscoveredSystem describing the host,
// for the batch discovery announcement in scanDepartment.
func (p *Pipeline) identifyAndUpsert(ctx context.Context, dept store.DeptID, lab *store.LabID, addr string) (bus.DiscoveredSystem, bool) {
	client, err := p.Pool.Acquire(addr, SSHPort, p.Cred)
	if err != nil {
		p.Logger.Warn("identification: acquire failed", zap.String("addr", addr), zap.Error(err))
		return bus.DiscoveredSystem{}, false
	}

	result := p.Runner.Run(client, probe.IdentificationScript)
	if result.Err != nil {
		p.Logger.Warn("identification probe failed", zap.String("addr", addr), zap.Error(result.Err))
		return bus.DiscoveredSystem{}, false
	}

	id, err := probe.ParseIdentification(result.JSON)
	if err != nil {
		p.Logger.Warn("identification parse failed", zap.String("addr", addr), zap.Error(err))
		return bus.DiscoveredSystem{}, false
	}

	_, _, err = p.Store.UpsertHost(ctx, store.UpsertHostParams{
		NetworkAddress:  addr,
		HardwareAddress: id.MACAddress,
		Hostname:        id.Hostname,
		DeptID:          &dept,
		LabID:           lab,
		Inventory: store.Inventory{
			CPUModel:    id.CPUModel,
			CPUCores:    id.CPUCores,
			RAMTotalGB:  id.RAMTotalGB,
			DiskTotalGB: id.DiskTotalGB,
			GPUModel:    id.GPUModel,
			GPUMemoryGB: id.GPUMemoryGB,
		},
		StatusOnInsert: store.HostActive,
		StatusOnUpdate: store.HostActive,
	})
	if err != nil {
		p.Logger.Error("upsert host failed", zap.String("addr", addr), zap.Error(err))
		return bus.DiscoveredSystem{}, false
	}
	return bus.DiscoveredSystem{
		NetworkAddress:  addr,
		HardwareAddress: id.MACAddress,
		Hostname:        id.Hostname,
	}, true
}
