package dimse

// DIMSE response status codes used by the gateway. The protocol reports
// status as a uint16 in every response; pending codes frame intermediate
// results, everything else is terminal.
const (
	StatusSuccess        uint16 = 0x0000
	StatusPending        uint16 = 0xFF00
	StatusPendingWarning uint16 = 0xFF01
	StatusCancel         uint16 = 0xFE00

	// Sub-operations complete, one or more failures (C-MOVE/C-GET).
	StatusWarningSubOps uint16 = 0xB000

	// Receiver-side store handler codes.
	StatusProcessingFailure    uint16 = 0xA801
	StatusCannotUnderstand     uint16 = 0xC001
	StatusOutOfResourcesSubOps uint16 = 0xA702
)

// StatusClass is the coarse classification of a terminal status code.
type StatusClass int

const (
	ClassSuccess StatusClass = iota
	ClassPending
	ClassWarning
	ClassFailure
)

func (c StatusClass) String() string {
	switch c {
	case ClassSuccess:
		return "SUCCESS"
	case ClassPending:
		return "PENDING"
	case ClassWarning:
		return "WARNING"
	default:
		return "FAILURE"
	}
}

// ClassifyStatus maps a DIMSE status code onto its class per PS3.7 annex C.
// Unrecognized codes classify as failure, never as success.
func ClassifyStatus(code uint16) StatusClass {
	switch {
	case code == StatusSuccess:
		return ClassSuccess
	case code == StatusPending || code == StatusPendingWarning:
		return ClassPending
	case code == StatusWarningSubOps:
		return ClassWarning
	case code >= 0xB000 && code <= 0xBFFF:
		return ClassWarning
	default:
		return ClassFailure
	}
}

// IsPending reports whether code frames an intermediate response.
func IsPending(code uint16) bool {
	return ClassifyStatus(code) == ClassPending
}
