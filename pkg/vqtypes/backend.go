// Package vqtypes holds the data model shared by every scheduler component:
// backend/cluster descriptors (C1), scan-range and plan structures, and the
// QuerySchedule produced by the facade.
package vqtypes

import (
	"fmt"
	"sort"
)

// NetworkAddress is a host/port pair, rendered as "host:port".
type NetworkAddress struct {
	Host string
	Port int
}

func (a NetworkAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// BackendDescriptor describes one backend process in the cluster. IP is the
// canonical key; a single IP may host more than one BackendDescriptor when
// several backend processes share a machine on different ports.
type BackendDescriptor struct {
	Address       NetworkAddress
	IP            string
	Hostname      string
	IsCoordinator bool
	IsExecutor    bool
}

// BackendConfig is an immutable snapshot of the cluster membership: the set
// of known backends (executors and coordinator-only), indexed by IP, plus a stable hostname→IP index. It is
// never mutated after construction — MembershipTracker builds a new one on
// every topic delta and publishes it by atomic pointer swap.
type BackendConfig struct {
	// byIP holds every backend sharing an IP, keyed by IP, whether or not
	// it is an executor.
	byIP map[string][]*BackendDescriptor
	// ipByHostname resolves a hostname to one of the IPs it maps to; first
	// registration wins and the choice is stable for the snapshot's
	// lifetime.
	ipByHostname map[string]string
	size         int
}

// NewBackendConfig builds an immutable snapshot from a flat descriptor list
// and a hostname→IP index. Descriptors with the same IP are grouped
// together; the hostname index is taken as-is, so first-registration-wins
// tie-breaking is the caller's responsibility (MembershipTracker rebuilds it
// on every delta by iterating descriptors in a fixed order).
func NewBackendConfig(descriptors []*BackendDescriptor, ipByHostname map[string]string) *BackendConfig {
	cfg := &BackendConfig{
		byIP:         make(map[string][]*BackendDescriptor),
		ipByHostname: make(map[string]string, len(ipByHostname)),
	}
	for _, d := range descriptors {
		cfg.byIP[d.IP] = append(cfg.byIP[d.IP], d)
	}
	for host, ip := range ipByHostname {
		cfg.ipByHostname[host] = ip
	}
	cfg.size = len(cfg.byIP)
	return cfg
}

// LookupByIP returns every backend registered at ip (executor or not), or
// nil if ip is unknown to this snapshot.
func (c *BackendConfig) LookupByIP(ip string) []*BackendDescriptor {
	return c.byIP[ip]
}

// LookupHostname resolves hostname to an IP, or "" if unknown.
func (c *BackendConfig) LookupHostname(hostname string) string {
	return c.ipByHostname[hostname]
}

// HasExecutor reports whether ip hosts at least one executor backend.
func (c *BackendConfig) HasExecutor(ip string) bool {
	for _, d := range c.byIP[ip] {
		if d.IsExecutor {
			return true
		}
	}
	return false
}

// Executors returns every executor backend in the snapshot, ordered by IP
// (and, within an IP, by the registration order in NewBackendConfig). Go
// map iteration order is randomized per call, so this is sorted rather than
// returned as-is: callers build the random-rank permutation off this slice,
// and spec §8 property 6 requires byte-identical schedules for identical
// (snapshot, plan, seed) inputs, which an unsorted map walk would break.
func (c *BackendConfig) Executors() []*BackendDescriptor {
	var out []*BackendDescriptor
	for _, ip := range c.sortedIPs() {
		for _, d := range c.byIP[ip] {
			if d.IsExecutor {
				out = append(out, d)
			}
		}
	}
	return out
}

// ExecutorIPs returns the distinct IPs hosting at least one executor, sorted
// for the same determinism reason as Executors.
func (c *BackendConfig) ExecutorIPs() []string {
	var ips []string
	for _, ip := range c.sortedIPs() {
		if c.HasExecutor(ip) {
			ips = append(ips, ip)
		}
	}
	return ips
}

// sortedIPs returns every IP known to the snapshot in sorted order.
func (c *BackendConfig) sortedIPs() []string {
	ips := make([]string, 0, len(c.byIP))
	for ip := range c.byIP {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Size returns the number of distinct IPs in the snapshot.
func (c *BackendConfig) Size() int {
	return c.size
}

// CoordinatorDescriptor builds a coordinator-only backend descriptor for
// addr, with IP set to addr.Host. Most deployments designate the
// coordinator out of band (it issues the request); scheduling only needs to
// know an address, not a membership-tracked descriptor.
func CoordinatorDescriptor(addr NetworkAddress) *BackendDescriptor {
	return &BackendDescriptor{
		Address:       addr,
		IP:            addr.Host,
		IsCoordinator: true,
	}
}
