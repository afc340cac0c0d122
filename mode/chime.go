package mode

import (
	"log/slog"
	"math/rand"
	"sort"

	"birdhaus.net/crowctl/config"
)

// chimeClip is one configured audio asset with its chime weight: the
// number of audible caws the clip contains.
type chimeClip struct {
	Name   string
	Weight int
}

// SelectChimeClips picks clips whose weights sum towards target using
// greedy largest-first selection: repeatedly take the heaviest clip not
// exceeding the remaining count. When no clip fits the remainder the
// configured fallback policy applies:
//
//   - repeat_single: fill the remainder exactly with a weight-1 clip;
//     if none exists the remainder is dropped (never overshoots).
//   - closest_match: accept overshoot with the lightest single clip.
//   - random_fill: one random clip per remaining count.
//
// An empty clip map returns nil - the caller plays a random clip per
// pulse instead. The function is pure apart from rng and is independent
// of any scheduling.
func SelectChimeClips(clips map[string]int, target int, policy string, rng *rand.Rand) []string {
	if target <= 0 || len(clips) == 0 {
		return nil
	}

	available := make([]chimeClip, 0, len(clips))
	for name, weight := range clips {
		if weight < 1 {
			continue
		}
		available = append(available, chimeClip{Name: name, Weight: weight})
	}
	if len(available) == 0 {
		return nil
	}
	// Heaviest first; name breaks ties so selection is deterministic.
	sort.Slice(available, func(i, j int) bool {
		if available[i].Weight == available[j].Weight {
			return available[i].Name < available[j].Name
		}
		return available[i].Weight > available[j].Weight
	})

	var selected []string
	remaining := target
	for remaining > 0 {
		var pick *chimeClip
		for i := range available {
			if available[i].Weight <= remaining {
				pick = &available[i]
				break
			}
		}
		if pick == nil {
			selected = append(selected, fallbackClips(remaining, available, policy, rng)...)
			break
		}
		selected = append(selected, pick.Name)
		remaining -= pick.Weight
	}
	return selected
}

func fallbackClips(remaining int, available []chimeClip, policy string, rng *rand.Rand) []string {
	switch policy {
	case config.FallbackRepeatSingle:
		var singles []string
		for _, clip := range available {
			if clip.Weight == 1 {
				singles = append(singles, clip.Name)
			}
		}
		if len(singles) == 0 {
			slog.Warn("No weight-1 clip available, dropping chime remainder", "remaining", remaining)
			return nil
		}
		pick := singles[rng.Intn(len(singles))]
		filled := make([]string, remaining)
		for i := range filled {
			filled[i] = pick
		}
		return filled

	case config.FallbackClosestMatch:
		// available is sorted heaviest first, so the lightest clip is
		// the closest single overshoot.
		return []string{available[len(available)-1].Name}

	case config.FallbackRandomFill:
		filled := make([]string, remaining)
		for i := range filled {
			filled[i] = available[rng.Intn(len(available))].Name
		}
		return filled
	}
	return nil
}

// ChimeWeightSum is the total weight of a selection, for diagnostics
// and tests.
func ChimeWeightSum(selection []string, clips map[string]int) int {
	sum := 0
	for _, name := range selection {
		sum += clips[name]
	}
	return sum
}
