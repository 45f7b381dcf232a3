package news

import (
	"sort"
	"time"
)

// Rank orders entries newest first, keeps at most limit of them and builds
// the snapshot. Equal timestamps keep their input order. The source list only
// covers entries that made the cut.
func Rank(entries []Entry, limit int, generatedAt time.Time) Snapshot {
	items := make([]Entry, len(entries))
	copy(items, entries)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}

	set := make(map[string]struct{}, len(items))
	sources := make([]string, 0, len(items))
	for _, it := range items {
		if it.DisplaySource == "" {
			continue
		}
		if _, ok := set[it.DisplaySource]; ok {
			continue
		}
		set[it.DisplaySource] = struct{}{}
		sources = append(sources, it.DisplaySource)
	}
	sort.Strings(sources)

	return Snapshot{
		GeneratedAt: generatedAt.UTC(),
		Items:       items,
		Sources:     sources,
	}
}
