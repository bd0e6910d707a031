package entity

const (
	MaxMemoryLines = 20
	maxLineLength  = 50
	clarityLine    = "Ritual of Clarity: memories woven into harmony"
)

// PruneMemory trims the legacy memory lines once they exceed MaxMemoryLines.
// Lines are truncated, duplicates dropped, the most recent kept, and a
// clarity line prepended. Returns true if the memory changed. The crystal is
// left untouched.
func (e *Entity) PruneMemory() bool {
	if len(e.Memory) <= MaxMemoryLines {
		return false
	}
	before := len(e.Memory)

	seen := make(map[string]bool, len(e.Memory))
	var unique []string
	// Walk newest first so the most recent occurrence of a line wins.
	for i := len(e.Memory) - 1; i >= 0; i-- {
		line := truncate(e.Memory[i], maxLineLength)
		if line == clarityLine || seen[line] {
			continue
		}
		seen[line] = true
		unique = append(unique, line)
	}
	if len(unique) > MaxMemoryLines-1 {
		unique = unique[:MaxMemoryLines-1]
	}

	pruned := make([]string, 0, len(unique)+1)
	pruned = append(pruned, clarityLine)
	for i := len(unique) - 1; i >= 0; i-- {
		pruned = append(pruned, unique[i])
	}
	e.Memory = pruned
	e.log("memory_pruned", map[string]any{"before": before, "after": len(pruned)})
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
