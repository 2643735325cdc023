// Package discovery implements the subnet discovery and identification
// pipeline (C3): enumerate a department's CIDR, ping-sweep for responsive
// addresses, fan out identification probes, and upsert the results.
// Grounded on collector/discovery_pipeline.py.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// pingTimeout bounds a single reachability check.
	pingTimeout = 2 * time.Second
)

// Enumerate expands a CIDR into its host addresses, skipping the network
// and broadcast addresses for subnets large enough to have them.
func Enumerate(cidr string) ([]string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse cidr %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	var addrs []string
	addr := prefix.Addr()
	for prefix.Contains(addr) {
		addrs = append(addrs, addr.String())
		addr = addr.Next()
		if !addr.IsValid() {
			break
		}
	}

	// Drop network/broadcast addresses for subnets that have them
	// (bit width > 1 away from /31 or /32, which are point-to-point/host
	// routes with no such reserved addresses).
	if prefix.Bits() <= 30 && len(addrs) >= 2 {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs, nil
}

// Sweep reachability-probes every address concurrently via a TCP connect to
// the SSH port (layer-3 reachability via a real connect attempt is the
// portable substitute for an ICMP ping, which requires raw-socket
// privileges this collector should not need). Returns addresses that
// accepted the connection within pingTimeout.
func Sweep(ctx context.Context, addrs []string, port int, concurrency int) []string {
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var mu sync.Mutex
	var responsive []string

	var wg sync.WaitGroup
	for _, a := range addrs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			defer sem.Release(1)
			if reachable(ctx, addr, port) {
				mu.Lock()
				responsive = append(responsive, addr)
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	return responsive
}

func reachable(ctx context.Context, addr string, port int) bool {
	d := net.Dialer{Timeout: pingTimeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
