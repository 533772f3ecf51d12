package worker

import (
	"net"
	"strings"
)

// Resolver abstracts hostname resolution so tests don't hit real DNS.
type Resolver func(name string) bool

// NetResolver is the production Resolver, backed by net.LookupHost.
func NetResolver(name string) bool {
	_, err := net.LookupHost(name)
	return err == nil
}

// ResolveAddress implements §4.9's address fallback chain: if
// host_name contains a dot and resolves, use it as-is; else try
// "<group_name>.<host_name>"; else fall back to the bare host_name,
// unresolved, and let the transport's own connect attempt fail if it
// truly cannot be reached.
func ResolveAddress(groupName, hostName string, resolves Resolver) string {
	if strings.Contains(hostName, ".") && resolves(hostName) {
		return hostName
	}
	if groupName != "" {
		candidate := groupName + "." + hostName
		if resolves(candidate) {
			return candidate
		}
	}
	return hostName
}
