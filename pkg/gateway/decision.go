package gateway

// Score thresholds for the admission verdict.
const (
	// AllowThreshold is the minimum trust score admitted without conditions.
	AllowThreshold = 70

	// MonitorThreshold is the minimum trust score admitted under
	// observation. Scores below it are denied.
	MonitorThreshold = 50
)

// Decide maps a trust score to an enforcement verdict.
//
// The score authorizes the principal, not the credential: callers must pass
// a score obtained from a trusted source, never a value carried inside the
// credential itself.
func Decide(score int) Verdict {
	switch {
	case score >= AllowThreshold:
		return VerdictAllow
	case score >= MonitorThreshold:
		return VerdictMonitor
	default:
		return VerdictDeny
	}
}
