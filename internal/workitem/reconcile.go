package workitem

// recordState is what reconciliation observed about an item's source record
// on this read.
type recordState struct {
	// linked is true when either an entity_links row exists or the record
	// itself embeds a link (some sources store a direct link outside the
	// link table).
	linked bool
	// hasExtract is true when a cached summary extract exists.
	hasExtract bool
	// hasRecord is true when the adapter returned the record this cycle.
	hasRecord bool
}

// reconcileCodes prunes reason codes that no longer hold given the current
// record state. Pure function; the caller decides how to persist the
// change. Unknown codes are kept untouched: only the codes this subsystem
// owns are ever pruned automatically.
func reconcileCodes(codes []string, st recordState) (out []string, changed bool) {
	out = make([]string, 0, len(codes))
	for _, code := range codes {
		switch code {
		case ReasonUnlinkedCompany:
			if st.linked {
				changed = true
				continue
			}
		case ReasonMissingSummary:
			if st.hasExtract {
				changed = true
				continue
			}
		case ReasonMissingScoring:
			if st.hasRecord {
				changed = true
				continue
			}
		}
		out = append(out, code)
	}
	return out, changed
}
