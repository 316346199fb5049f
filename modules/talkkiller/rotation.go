package talkkiller

// NextFallback selects the station to switch to, rotating circularly through
// the user-curated fallback list. Returns "" when the list is empty. A
// current station that is not on the list is treated as sitting before the
// start of the rotation, so the first entry is returned.
func NextFallback(list []string, current string) string {
	if len(list) == 0 {
		return ""
	}

	for i, id := range list {
		if id == current {
			return list[(i+1)%len(list)]
		}
	}

	return list[0]
}
