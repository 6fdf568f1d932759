package quota

import "strings"

// modelPriority orders models from most to least preferred for wake calls.
// Unknown models sort after known ones, in the order the API returned them.
var modelPriority = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

func priorityRank(model string) int {
	lower := strings.ToLower(model)
	for i, p := range modelPriority {
		if strings.Contains(lower, p) {
			return i
		}
	}
	return len(modelPriority)
}

// SelectModels picks the wake targets. With an explicit selection only those
// models are kept, in selection order, restricted to what the API offers.
// Without one, the single most-preferred available model is chosen.
func SelectModels(available []ModelQuota, selected []string) []string {
	if len(available) == 0 {
		return nil
	}

	if len(selected) > 0 {
		byID := make(map[string]struct{}, len(available))
		for _, m := range available {
			byID[strings.ToLower(m.Model)] = struct{}{}
		}
		out := make([]string, 0, len(selected))
		for _, want := range selected {
			if _, ok := byID[strings.ToLower(want)]; ok {
				out = append(out, want)
			}
		}
		return out
	}

	best := available[0]
	bestRank := priorityRank(best.Model)
	for _, m := range available[1:] {
		if r := priorityRank(m.Model); r < bestRank {
			best, bestRank = m, r
		}
	}
	return []string{best.Model}
}
