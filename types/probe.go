package types

// Reachability is the outcome category of a version probe.
type Reachability uint8

const (
	ReachabilityNoURL Reachability = iota
	ReachabilityUnreachable
	ReachabilityReachable
)

func (r Reachability) String() string {
	switch r {
	case ReachabilityNoURL:
		return "no-url"
	case ReachabilityUnreachable:
		return "unreachable"
	case ReachabilityReachable:
		return "reachable"
	default:
		return "unknown"
	}
}

func (r Reachability) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ProbeTarget is an entity whose live version should be probed.
type ProbeTarget struct {
	ID  string
	Url string
}

// ProbeResult is the probed version of one target. Version is only set if
// Reachability is ReachabilityReachable.
type ProbeResult struct {
	ID           string       `json:"id"`
	Url          string       `json:"url"`
	Version      string       `json:"version,omitempty"`
	Reachability Reachability `json:"reachability"`
	Attempts     int          `json:"attempts"`
	Error        string       `json:"error,omitempty"`
}

// HasVersion returns true if a version was resolved for the target.
func (r *ProbeResult) HasVersion() bool {
	return r.Reachability == ReachabilityReachable
}
