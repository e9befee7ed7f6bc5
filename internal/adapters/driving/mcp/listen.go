package mcp

import (
	"fmt"
	"net"
)

// ListenInRange binds the first free loopback port in [start, end]. The
// listener is returned still bound so no other process can take the port
// between the scan and Serve.
func ListenInRange(start, end int) (net.Listener, error) {
	if start <= 0 || end < start || end > 65535 {
		return nil, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	for port := start; port <= end; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in range %d-%d", start, end)
}
