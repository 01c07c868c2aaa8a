package dimse

import "fmt"

// Node describes a remote DICOM application entity. It is populated from
// configuration at startup, never mutated afterwards, and safe to share
// across concurrent operations.
type Node struct {
	Host      string
	Port      int
	CalledAE  string
	CallingAE string
}

// Addr returns the host:port pair of the remote node.
func (n Node) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// Validate checks the fields required to open an association.
func (n Node) Validate() error {
	if n.Host == "" {
		return fmt.Errorf("remote node hostname is required")
	}
	if n.Port == 0 {
		return fmt.Errorf("remote node port is required")
	}
	if n.CalledAE == "" {
		return fmt.Errorf("remote node AE title (Called AE) is required")
	}
	return nil
}

// DIMSE timeout constants (in seconds) - industry standards
const (
	TimeoutCEcho  = 10  // 10 seconds for C-ECHO
	TimeoutCFind  = 120 // 120 seconds for C-FIND (can return many results)
	TimeoutCMove  = 300 // 300 seconds for C-MOVE (5 minutes - transfers take time)
	TimeoutCStore = 60  // 60 seconds for C-STORE
)
