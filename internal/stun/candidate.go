package stun

// CandidateType classifies how an ICE candidate address was discovered.
// Host candidates are preferred over server-reflexive, which are preferred
// over peer-reflexive, which are preferred over relay.
type CandidateType int

const (
	CandidateHost CandidateType = iota
	CandidateServerReflexive
	CandidatePeerReflexive
	CandidateRelay
)

// typePreference is the type-preference term in the priority formula,
// fixing the ordering as host > server-reflexive > peer-reflexive > relay.
// This differs from RFC 8445's own suggested preference numbers, where
// peer-reflexive outranks server-reflexive.
func (t CandidateType) typePreference() int {
	switch t {
	case CandidateHost:
		return 126
	case CandidateServerReflexive:
		return 110
	case CandidatePeerReflexive:
		return 100
	case CandidateRelay:
		return 0
	default:
		return 0
	}
}

// Candidate is one address a peer advertises for connectivity checks.
type Candidate struct {
	Type      CandidateType
	LocalPref int // 0-65535; higher preferred among candidates of the same type
	Component int // 1 = RTP-equivalent primary component
}

// Priority computes 2^24·type_pref + 2^8·local_pref + (256 − component),
// the standard ICE priority formula with this package's type preferences.
func (c Candidate) Priority() uint32 {
	return uint32(c.Type.typePreference())<<24 |
		uint32(c.LocalPref&0xFFFF)<<8 |
		uint32(256-c.Component)
}
