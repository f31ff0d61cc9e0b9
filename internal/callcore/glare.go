package callcore

// resolveGlare decides, per spec §4.4, which of two colliding calls to
// R survives: the numerically greater CallId wins. Glare only applies
// when the local side already has an active call to the same remote (as
// decided by ShouldCompareCalls) in Starting, Proceeding or Ringing.
//
// Returns the losing CallId and whether the existing (active) call is
// the loser.
func resolveGlare(existing, incoming CallId) (loser CallId, existingLost bool) {
	if existing > incoming {
		return incoming, false
	}
	return existing, true
}

// glareEligible reports whether an active record is still eligible to
// be the "local side" of a glare comparison — only calls at or before
// Ringing are still settling who the call is with.
func glareEligible(s CallState) bool {
	switch s {
	case Starting, Proceeding, Ringing:
		return true
	default:
		return false
	}
}
