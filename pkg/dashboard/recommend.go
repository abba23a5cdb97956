package dashboard

import (
	"sort"

	"github.com/mikol1980/aitutor/pkg/api"
)

// RecommendedTopic is the suggested next item of study.
type RecommendedTopic struct {
	SectionID    string
	SectionTitle string
	TopicID      string
	TopicTitle   string
}

type sectionGroup struct {
	id      string
	title   string
	entries []api.ProgressEntry
}

// Recommend picks the next topic from a progress set. Sections are ranked
// by their fraction of incomplete topics, descending; ties keep first-seen
// grouping order so identical input always yields the same result. The
// first not_started entry in that ranking wins; failing that, the first
// in_progress entry; failing that, nil.
func Recommend(progress []api.ProgressEntry) *RecommendedTopic {
	if len(progress) == 0 {
		return nil
	}

	var groups []*sectionGroup
	index := make(map[string]*sectionGroup)
	for _, p := range progress {
		g, ok := index[p.SectionID]
		if !ok {
			g = &sectionGroup{id: p.SectionID, title: p.SectionTitle}
			index[p.SectionID] = g
			groups = append(groups, g)
		}
		g.entries = append(g.entries, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return incompleteFraction(groups[i]) > incompleteFraction(groups[j])
	})

	for _, want := range []api.ProgressStatus{api.StatusNotStarted, api.StatusInProgress} {
		for _, g := range groups {
			for _, p := range g.entries {
				if p.Status == want {
					return &RecommendedTopic{
						SectionID:    p.SectionID,
						SectionTitle: p.SectionTitle,
						TopicID:      p.TopicID,
						TopicTitle:   p.TopicTitle,
					}
				}
			}
		}
	}
	return nil
}

func incompleteFraction(g *sectionGroup) float64 {
	if len(g.entries) == 0 {
		return 0
	}
	incomplete := 0
	for _, p := range g.entries {
		if p.Status != api.StatusCompleted {
			incomplete++
		}
	}
	return float64(incomplete) / float64(len(g.entries))
}
