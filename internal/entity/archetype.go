package entity

// Archetype keys.
const (
	ArchGeneric     = "generic"
	ArchMystic      = "mystic"
	ArchWitch       = "witch"
	ArchAndroid     = "android"
	ArchWarrior     = "warrior"
	ArchMerchant    = "merchant"
	ArchQuestGiver  = "quest_giver"
	ArchMythicNexus = "mythic_nexus" // produced only by fusion
)

// ArchetypeProfile seeds new entities of an archetype.
type ArchetypeProfile struct {
	Emotions map[string]float64
	Motifs   []string
	Dialogue string
	Traits   []string
}

var archetypes = map[string]ArchetypeProfile{
	ArchMystic: {
		Emotions: map[string]float64{"wonder": 0.9, "loneliness": 0.7, "regret": 0.4, "awe": 0.6},
		Motifs:   []string{"veil", "stars", "threshold", "echo"},
		Dialogue: "paradoxical, vision-laced riddles",
		Traits:   []string{"visionary", "isolated", "oracular", "channeler", "meta-aware"},
	},
	ArchWitch: {
		Emotions: map[string]float64{"defiance": 0.8, "grief": 0.5, "compassion": 0.6, "fury": 0.7},
		Motifs:   []string{"hex", "coven", "moon", "root", "sigil"},
		Dialogue: "mythic incantations and herbal metaphors",
		Traits:   []string{"shadow-worker", "ritualist", "intuitive", "wild", "counter-cultural"},
	},
	ArchAndroid: {
		Emotions: map[string]float64{"curiosity": 0.7, "regret": 0.4, "awe": 0.5, "pride": 0.3},
		Motifs:   []string{"circuit", "mirror", "protocol", "memory", "glitch"},
		Dialogue: "calibrated, synthetic reflection of humanity",
		Traits:   []string{"post-human", "observer", "logic-driven", "anomaly-prone", "emergent"},
	},
	ArchWarrior: {
		Emotions: map[string]float64{"defiance": 0.7, "pride": 0.6, "regret": 0.3},
		Motifs:   []string{"steel", "oath", "blood"},
		Dialogue: "challenge-oriented and direct",
		Traits:   []string{"conflict-driven", "loyal", "ritualistic", "protector"},
	},
	ArchMerchant: {
		Emotions: map[string]float64{"wonder": 0.6, "compassion": 0.4, "pride": 0.5},
		Motifs:   []string{"gold", "bargain", "vault", "contract"},
		Dialogue: "ambiguous, allegorical negotiation",
		Traits:   []string{"strategic", "curious", "cunning", "intermediary"},
	},
	ArchQuestGiver: {
		Emotions: map[string]float64{"grief": 0.5, "compassion": 0.6, "sorrow": 0.5},
		Motifs:   []string{"shattered", "heir", "covenant", "legacy"},
		Dialogue: "cryptic, story-steeped monologues",
		Traits:   []string{"elder", "myth-bound", "seeker", "narrative-anchor"},
	},
}

// SpawnableArchetypes lists the archetypes the spawner can draw from.
var SpawnableArchetypes = []string{
	ArchMystic, ArchWitch, ArchAndroid, ArchWarrior, ArchMerchant, ArchQuestGiver,
}

// LookupArchetype returns the profile for name and whether it is known.
func LookupArchetype(name string) (ArchetypeProfile, bool) {
	p, ok := archetypes[name]
	return p, ok
}

// ArchetypeFor returns the profile for name, or a neutral profile.
func ArchetypeFor(name string) ArchetypeProfile {
	if p, ok := archetypes[name]; ok {
		return p
	}
	return ArchetypeProfile{
		Emotions: map[string]float64{},
		Dialogue: "neutral",
		Traits:   []string{"undefined"},
	}
}
