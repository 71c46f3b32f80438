package engine

// WorkflowPredicate is an awaited condition for WaitForPredicate (§3). The
// only variant today is ByUserID; the type is left open for extension
// (spec.md §3: "Extensible").
type WorkflowPredicate struct {
	Kind   string
	UserID string
}

// ByUserID builds the "wait until any workflow owned by this user
// completes" predicate.
func ByUserID(userID string) WorkflowPredicate {
	return WorkflowPredicate{Kind: "ByUserId", UserID: userID}
}

// holds reports whether the predicate is satisfied by the completion of the
// instance owned by completingUserID.
func (p WorkflowPredicate) holds(completingUserID string) bool {
	switch p.Kind {
	case "ByUserId":
		return p.UserID == completingUserID
	default:
		return false
	}
}
