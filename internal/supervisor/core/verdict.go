package core

// VerdictKind discriminates the interlock's decision for a tick.
type VerdictKind int

const (
	// VerdictAllow lets the candidate command proceed unchanged.
	VerdictAllow VerdictKind = iota

	// VerdictDeny discards the candidate command with a reason.
	VerdictDeny

	// VerdictForceMode overrides everything this tick and forces a
	// transition to Verdict.Mode. Forced transitions preempt the candidate.
	VerdictForceMode
)

// Verdict is the safety interlock's decision for one tick.
type Verdict struct {
	Kind   VerdictKind
	Reason Reason
	Detail string

	// Mode is the forced target mode for VerdictForceMode.
	Mode Mode
}

// Allow returns the permissive verdict.
func Allow() Verdict {
	return Verdict{Kind: VerdictAllow}
}

// Deny returns a verdict discarding the candidate for the given reason.
func Deny(reason Reason, detail string) Verdict {
	return Verdict{Kind: VerdictDeny, Reason: reason, Detail: detail}
}

// ForceMode returns a verdict forcing a transition to m.
func ForceMode(m Mode, reason Reason, detail string) Verdict {
	return Verdict{Kind: VerdictForceMode, Mode: m, Reason: reason, Detail: detail}
}
