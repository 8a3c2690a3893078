package palmki

// Status is the single terminal outcome of one workflow run.
type Status int

const (
	StatusFinished Status = iota
	StatusIncomplete
	StatusNoMatch
	StatusAvailabilityTimeout
	StatusConnectFailed
	StatusCapabilityNotFound
	StatusTransportError
	StatusBusy
)

func (s Status) String() string {
	return []string{
		"Finished",
		"Incomplete",
		"No match",
		"Availability timeout",
		"Connect failed",
		"Capability not found",
		"Transport error",
		"Busy",
	}[s]
}

// Report is produced exactly once per workflow run.
type Report struct {
	Status Status
	Info   string

	// Payload is set only on StatusFinished.
	Payload []byte
	// Beacon carries the decoded manufacturer fields when they parsed.
	Beacon *BeaconID
}
