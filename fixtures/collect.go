package fixtures

// gameCollections are the payload keys that may hold game lists. The same fixture can
// appear in more than one of them.
var gameCollections = []string{"nextGames", "prevGames", "games", "allGames", "matches", "fixtures"}

// CollectGames merges every game collection of a team info payload and removes duplicates,
// keeping the first occurrence.
func CollectGames(payload any) []Document {
	var docs []Document
	switch p := payload.(type) {
	case []any:
		docs = appendDocuments(docs, p)
	case map[string]any:
		for _, key := range gameCollections {
			if list, ok := p[key].([]any); ok {
				docs = appendDocuments(docs, list)
			}
		}
		if team, ok := p["team"].(map[string]any); ok {
			for _, key := range gameCollections {
				if list, ok := team[key].([]any); ok {
					docs = appendDocuments(docs, list)
				}
			}
		}
	}

	seen := make(map[string]bool, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		k := dedupeKey(d)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

func appendDocuments(dst []Document, list []any) []Document {
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			dst = append(dst, Document(m))
		}
	}
	return dst
}
