// README: Seed-derived verification codes and waitlist priority scores.
package codegen

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const codePrefix = "DC"

// SeedConfig holds the inputs the project seed is derived from.
type SeedConfig struct {
	RepoURL          string
	FirstCommitEpoch string
	ProjectStart     string
}

type Generator struct {
	seed string
}

func NewGenerator(cfg SeedConfig) *Generator {
	sum := sha256.Sum256([]byte(cfg.RepoURL + cfg.FirstCommitEpoch + cfg.ProjectStart))
	return &Generator{seed: hex.EncodeToString(sum[:])[:12]}
}

func (g *Generator) Seed() string {
	return g.seed
}

// ClaimCode returns a DC-XXXX-XXXX code. The same inputs always give the same code.
func (g *Generator) ClaimCode(userID, dropID int64, at time.Time) string {
	h := strings.ToUpper(g.digest(
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(dropID, 10),
		at.UTC().Format(time.RFC3339Nano),
	)[:8])
	return codePrefix + "-" + h[:4] + "-" + h[4:]
}

// PriorityScore combines a per-user pseudo-random component with waitlist position.
// Lower is better.
func (g *Generator) PriorityScore(userID, dropID int64, position int) float64 {
	n, _ := strconv.ParseUint(g.digest(strconv.FormatInt(userID, 10), strconv.FormatInt(dropID, 10))[:8], 16, 64)
	return float64(n%10000) + float64(position*10)
}

func (g *Generator) digest(parts ...string) string {
	sum := sha256.Sum256([]byte(g.seed + strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}
