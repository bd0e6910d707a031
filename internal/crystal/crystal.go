// Package crystal provides the MemoryCrystal: a content-addressed store of
// symbolic text fragments (motifs) with an embed history and a rewrite log.
package crystal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Fragment is a single stored motif.
type Fragment struct {
	Text  string    `json:"text"`
	Added time.Time `json:"added_time"`
}

// Rewrite records one fragment replacement.
type Rewrite struct {
	OldHash   string    `json:"old_hash"`
	OldText   string    `json:"old_text"`
	NewText   string    `json:"new_text"`
	Timestamp time.Time `json:"timestamp"`
}

// Crystal holds fragments keyed by content hash. The vault is the
// append-only embed history; it may reference hashes whose fragment has
// since been rewritten away.
type Crystal struct {
	fragments map[string]Fragment
	vault     []string
	rewrites  []Rewrite
}

// New returns an empty crystal.
func New() *Crystal {
	return &Crystal{fragments: make(map[string]Fragment)}
}

// Hash returns the stable SHA-256 hex digest of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed stores text if it is not already present and records the embed in
// the vault. Identical text always yields the same hash and a single fragment.
func (c *Crystal) Embed(text string) string {
	h := Hash(text)
	if _, ok := c.fragments[h]; !ok {
		c.fragments[h] = Fragment{Text: text, Added: time.Now()}
	}
	c.vault = append(c.vault, h)
	return h
}

// Retrieve returns the fragment text for h, or "" when absent.
func (c *Crystal) Retrieve(h string) string {
	return c.fragments[h].Text
}

// Contains reports whether a live fragment exists for h.
func (c *Crystal) Contains(h string) bool {
	_, ok := c.fragments[h]
	return ok
}

// Rewrite replaces the fragment at oldHash with newText. When oldHash is
// unknown nothing is removed, but newText is still embedded.
func (c *Crystal) Rewrite(oldHash, newText string) string {
	if old, ok := c.fragments[oldHash]; ok {
		c.rewrites = append(c.rewrites, Rewrite{
			OldHash:   oldHash,
			OldText:   old.Text,
			NewText:   newText,
			Timestamp: time.Now(),
		})
		delete(c.fragments, oldHash)
	}
	return c.Embed(newText)
}

// CompareDrift returns the fraction of snapshot hashes whose fragment is no
// longer held by the crystal. An empty snapshot has no drift.
func (c *Crystal) CompareDrift(snapshot []string) float64 {
	if len(snapshot) == 0 {
		return 0
	}
	missing := 0
	for _, h := range snapshot {
		if !c.Contains(h) {
			missing++
		}
	}
	return float64(missing) / float64(len(snapshot))
}

// Len returns the number of distinct live fragments.
func (c *Crystal) Len() int {
	return len(c.fragments)
}

// Texts returns the distinct fragment texts, sorted.
func (c *Crystal) Texts() []string {
	out := make([]string, 0, len(c.fragments))
	for _, f := range c.fragments {
		out = append(out, f.Text)
	}
	sort.Strings(out)
	return out
}

// Hashes returns the hashes of all live fragments, sorted.
func (c *Crystal) Hashes() []string {
	out := make([]string, 0, len(c.fragments))
	for h := range c.fragments {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the crystal.
func (c *Crystal) Clone() *Crystal {
	out := &Crystal{
		fragments: make(map[string]Fragment, len(c.fragments)),
		vault:     c.Vault(),
		rewrites:  c.RewriteLog(),
	}
	for h, f := range c.fragments {
		out.fragments[h] = f
	}
	return out
}

// Vault returns a copy of the embed history.
func (c *Crystal) Vault() []string {
	out := make([]string, len(c.vault))
	copy(out, c.vault)
	return out
}

// RewriteLog returns a copy of the rewrite history.
func (c *Crystal) RewriteLog() []Rewrite {
	out := make([]Rewrite, len(c.rewrites))
	copy(out, c.rewrites)
	return out
}

type crystalJSON struct {
	Fragments  map[string]Fragment `json:"fragments"`
	Vault      []string            `json:"vault"`
	RewriteLog []Rewrite           `json:"rewrite_log"`
}

// MarshalJSON encodes the full crystal state.
func (c *Crystal) MarshalJSON() ([]byte, error) {
	return json.Marshal(crystalJSON{
		Fragments:  c.fragments,
		Vault:      c.vault,
		RewriteLog: c.rewrites,
	})
}

// UnmarshalJSON restores state written by MarshalJSON.
func (c *Crystal) UnmarshalJSON(data []byte) error {
	var raw crystalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.fragments = raw.Fragments
	if c.fragments == nil {
		c.fragments = make(map[string]Fragment)
	}
	c.vault = raw.Vault
	c.rewrites = raw.RewriteLog
	return nil
}
