package market

// StaticProposals are served when every feed is down and the caller prefers
// availability over freshness.
func StaticProposals() []Proposal {
	return []Proposal{
		{
			ID:          "fallback-1",
			Title:       "Will Bitcoin hit $150k by end of 2026?",
			Description: "Resolves YES if BTC/USD exceeds $150,000 on any major exchange.",
			Volume:      "$52.1M",
			Category:    "Crypto",
			Conditions:  []Condition{},
		},
		{
			ID:          "fallback-2",
			Title:       "Will AI pass the Turing Test by 2027?",
			Description: "Resolves based on widely recognized Turing Test competition results.",
			Volume:      "$12.4M",
			Category:    "Tech",
			Conditions:  []Condition{},
		},
		{
			ID:          "fallback-3",
			Title:       "Will there be a manned Mars mission by 2030?",
			Description: "Resolves YES if any space agency lands humans on Mars.",
			Volume:      "$8.9M",
			Category:    "Science",
			Conditions:  []Condition{},
		},
	}
}

// isStatic reports whether props came from StaticProposals.
func isStatic(props []Proposal) bool {
	if len(props) == 0 {
		return false
	}
	for _, p := range props {
		if len(p.ID) < 9 || p.ID[:9] != "fallback-" {
			return false
		}
	}
	return true
}
