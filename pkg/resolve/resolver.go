// Package resolve maps raw test identifiers from uploaded tables onto
// canonical catalog codes through a cascade of increasingly permissive
// strategies: verbatim code match, normalized-token match against codes and
// display names, substring containment, and finally fuzzy scoring above a
// threshold. An identifier no stage can place maps to itself, so a batch
// never fails outright on one unknown column.
package resolve

import (
	"sort"
	"strings"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/catalog"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/normalize"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/similarity"
)

// Method names the cascade stage that produced a mapping.
type Method string

const (
	MethodExact       Method = "exact"
	MethodNormalized  Method = "normalized"
	MethodReverseName Method = "reverse-name"
	MethodFuzzy       Method = "fuzzy"
	MethodNone        Method = "none"
)

// Match is one resolved identifier with its provenance.
type Match struct {
	Code   string  `json:"code"`
	Method Method  `json:"method"`
	Score  float64 `json:"score"`
}

// Mapping is the result of resolving one identifier batch. Codes always has
// an entry for every input identifier (self-mapped when unresolved).
type Mapping struct {
	Codes        map[string]string `json:"codes"`
	Matches      map[string]Match  `json:"matches"`
	MatchedCount int               `json:"matched_count"`
	TotalCount   int               `json:"total_count"`
}

// MatchRate is matched/total, 0 for an empty batch.
func (m Mapping) MatchRate() float64 {
	if m.TotalCount == 0 {
		return 0
	}
	return float64(m.MatchedCount) / float64(m.TotalCount)
}

type Resolver struct {
	catalog   *catalog.Catalog
	threshold float64

	// normalized code token -> code, first-seen wins
	tokenToCode map[string]string
}

// NewResolver builds a resolver over an immutable catalog. A non-positive
// threshold falls back to 0.85.
func NewResolver(cat *catalog.Catalog, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = 0.85
	}
	r := &Resolver{
		catalog:     cat,
		threshold:   threshold,
		tokenToCode: make(map[string]string),
	}
	for _, t := range cat.Tests() {
		token := normalize.Normalize(t.Code)
		if token == "" {
			continue
		}
		if _, taken := r.tokenToCode[token]; !taken {
			r.tokenToCode[token] = t.Code
		}
	}
	return r
}

// Threshold reports the fuzzy acceptance threshold in use.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve maps every identifier in ids to a catalog code. The cascade is
// evaluated per identifier, each stage only when the previous found
// nothing. A code claimed by an earlier identifier of the same batch is
// withdrawn from the pool the laxer stages may draw from, so several
// distinct columns cannot pile onto one catalog entry through progressively
// weaker evidence. Deterministic: same ids, catalog and threshold always
// produce the same mapping.
func (r *Resolver) Resolve(ids []string) Mapping {
	mapping := Mapping{
		Codes:      make(map[string]string, len(ids)),
		Matches:    make(map[string]Match, len(ids)),
		TotalCount: len(ids),
	}

	claimed := make(map[string]bool)
	pending := make([]string, 0, len(ids))

	// Stage 1 first for the whole batch: verbatim hits are always honored
	// and their codes leave the pool before any fuzzy reasoning starts.
	for _, id := range ids {
		if t, ok := r.catalog.Lookup(id); ok {
			mapping.assign(id, Match{Code: t.Code, Method: MethodExact, Score: 1})
			claimed[t.Code] = true
			continue
		}
		pending = append(pending, id)
	}

	for _, id := range pending {
		if match, ok := r.resolveOne(id, claimed); ok {
			mapping.assign(id, match)
			claimed[match.Code] = true
			continue
		}
		mapping.Codes[id] = id
		mapping.Matches[id] = Match{Code: id, Method: MethodNone}
	}

	return mapping
}

func (m *Mapping) assign(id string, match Match) {
	m.Codes[id] = match.Code
	m.Matches[id] = match
	m.MatchedCount++
}

func (r *Resolver) resolveOne(id string, claimed map[string]bool) (Match, bool) {
	token := normalize.Normalize(id)

	// Stage 2: normalized token equals a normalized code, or the identifier
	// is a catalog display name (case-insensitive or normalized).
	if code, ok := r.tokenToCode[token]; ok && !claimed[code] {
		return Match{Code: code, Method: MethodNormalized, Score: 1}, true
	}
	if code, ok := r.catalog.CodeByName(id); ok && !claimed[code] {
		return Match{Code: code, Method: MethodNormalized, Score: 1}, true
	}

	// Stage 3: case-folded containment against display names.
	lowerID := strings.ToLower(strings.TrimSpace(id))
	if lowerID != "" {
		for _, t := range r.catalog.Tests() {
			if claimed[t.Code] {
				continue
			}
			name := strings.ToLower(t.Name)
			if name == "" {
				continue
			}
			if strings.Contains(name, lowerID) || strings.Contains(lowerID, name) {
				return Match{Code: t.Code, Method: MethodReverseName, Score: 1}, true
			}
		}
	}

	// Stage 4: fuzzy against normalized codes and display names. Strictly
	// better scores win, so ties keep the first-seen catalog entry.
	best := Match{Method: MethodFuzzy}
	for _, t := range r.catalog.Tests() {
		if claimed[t.Code] {
			continue
		}
		score := similarity.Score(token, normalize.Normalize(t.Code))
		if s := similarity.Score(token, normalize.Normalize(t.Name)); s > score {
			score = s
		}
		if s := similarity.Score(lowerID, strings.ToLower(t.Name)); s > score {
			score = s
		}
		if score > best.Score && score >= r.threshold {
			best.Score = score
			best.Code = t.Code
		}
	}
	if best.Code != "" {
		return best, true
	}
	return Match{}, false
}

// Cluster partitions raw identifiers into similarity groups without any
// catalog involvement, for consolidating identifier spellings across
// tables before resolution. The cluster key is its shortest member
// (lexicographic order breaking length ties).
func (r *Resolver) Cluster(ids []string) map[string][]string {
	tokens := make(map[string]string, len(ids))
	for _, id := range ids {
		tokens[id] = normalize.Normalize(id)
	}

	clusters := make(map[string][]string)
	assigned := make(map[string]bool, len(ids))

	for i, id := range ids {
		if assigned[id] {
			continue
		}
		members := []string{id}
		assigned[id] = true

		for _, other := range ids[i+1:] {
			if assigned[other] {
				continue
			}
			if similarity.Score(tokens[id], tokens[other]) >= r.threshold {
				members = append(members, other)
				assigned[other] = true
			}
		}

		key := clusterKey(members)
		clusters[key] = members
	}

	return clusters
}

func clusterKey(members []string) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}
