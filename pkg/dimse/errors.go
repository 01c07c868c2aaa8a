package dimse

import "fmt"

// AssociationError indicates the association with the remote node never
// established (or broke before the operation could run). It is fatal to the
// single operation that raised it; no partial results are retained.
type AssociationError struct {
	Node Node
	Err  error
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("association with %s (%s) failed: %v", e.Node.CalledAE, e.Node.Addr(), e.Err)
}

func (e *AssociationError) Unwrap() error { return e.Err }

// OperationError indicates the remote node reported an unexpected terminal
// status mid-stream. Results collected before the failure remain usable.
type OperationError struct {
	Operation string
	Status    uint16
	Err       error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s completed with status 0x%04X", e.Operation, e.Status)
}

func (e *OperationError) Unwrap() error { return e.Err }
