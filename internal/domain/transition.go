package domain

// ─── Transition Table ───────────────────────────────────────────────────────
// The legal lifecycle edges. Anything not listed here is an invalid
// transition; approved cannot be rejected, terminal states never re-open.

var legalTransitions = map[SettlementStatus][]SettlementStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid},
}

// CanTransition reports whether from → to is a legal lifecycle edge.
func CanTransition(from, to SettlementStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
