package grouping

import (
	"strings"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/catalog"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/normalize"
)

// groupEntry tracks one resolved test inside a category bucket together
// with the keys other spellings of the same test may arrive under.
type groupEntry struct {
	test     models.ResolvedTest
	codeKey  string
	prefixed bool
}

// bucket holds the per-category conflict-resolution state. Every key a test
// is reachable by (normalized code, normalized display name, prefix-stripped
// code) points at the same entry, so later rows always find it.
type bucket struct {
	entries []*groupEntry
	index   map[string]*groupEntry
}

func newBucket() *bucket {
	return &bucket{index: make(map[string]*groupEntry)}
}

// Group assigns every measurement to a clinical category and collapses the
// result to at most one entry per patient and resolved test. Same code: the
// lexicographically later date wins. Different codes naming the same test
// (same normalized display name, or same code once the category prefix is
// stripped): the prefixed code wins over the bare one, later date breaking
// the tie. Rows from different patients never merge. Output buckets preserve
// first-seen order.
func Group(rows []models.TestRow, cat *catalog.Catalog) map[string][]models.ResolvedTest {
	dynamics := measurementDates(rows)

	buckets := make(map[Category]*bucket, len(Categories))
	for _, c := range Categories {
		buckets[c] = newBucket()
	}

	for _, row := range rows {
		norm, _ := cat.NormInfo(row.TestCode, row.TestName)
		name := pick(norm.Name, row.TestName)
		category := Categorize(row.TestCode, name)

		value := row.Value
		entry := &groupEntry{
			test: models.ResolvedTest{
				PatientID:   row.PatientID,
				TestCode:    row.TestCode,
				Name:        name,
				Value:       &value,
				Unit:        pick(row.Unit, norm.Unit),
				Date:        row.Date,
				Status:      Status(row.Value, norm.Min, norm.Max),
				NormMin:     norm.Min,
				NormMax:     norm.Max,
				HasDynamics: len(dynamics[patientCode(row.PatientID, row.TestCode)]) > 1,
			},
			codeKey:  normalize.Normalize(row.TestCode),
			prefixed: hasCategoryPrefix(row.TestCode),
		}
		buckets[category].add(entry, row.PatientID, nameKey(name), bareKey(row.TestCode))
	}

	groups := make(map[string][]models.ResolvedTest, len(Categories))
	for _, c := range Categories {
		b := buckets[c]
		tests := make([]models.ResolvedTest, 0, len(b.entries))
		for _, e := range b.entries {
			tests = append(tests, e.test)
		}
		groups[string(c)] = tests
	}
	return groups
}

func (b *bucket) add(e *groupEntry, patientID, nameKey, bareKey string) {
	existing := b.lookup(patientID, e.codeKey, nameKey, bareKey)
	if existing == nil {
		b.entries = append(b.entries, e)
		b.register(e, patientID, e.codeKey, nameKey, bareKey)
		return
	}

	datesDiffer := e.test.Date != existing.test.Date

	if existing.codeKey == e.codeKey {
		if e.test.Date > existing.test.Date {
			adopt(existing, e)
		}
	} else {
		// Different code spellings of the same test.
		switch {
		case e.prefixed && !existing.prefixed:
			adopt(existing, e)
		case !e.prefixed && existing.prefixed:
			// keep existing
		case e.test.Date > existing.test.Date:
			adopt(existing, e)
		}
	}

	if datesDiffer {
		existing.test.HasDynamics = true
	}
	b.register(existing, patientID, e.codeKey, nameKey, bareKey)
}

func (b *bucket) lookup(patientID, codeKey, nameKey, bareKey string) *groupEntry {
	for _, key := range indexKeys(patientID, codeKey, nameKey, bareKey) {
		if e, ok := b.index[key]; ok {
			return e
		}
	}
	return nil
}

func (b *bucket) register(e *groupEntry, patientID, codeKey, nameKey, bareKey string) {
	for _, key := range indexKeys(patientID, codeKey, nameKey, bareKey) {
		b.index[key] = e
	}
}

// indexKeys scopes every alias key to the patient, so spellings of one test
// merge only within a single patient's rows.
func indexKeys(patientID, codeKey, nameKey, bareKey string) []string {
	keys := make([]string, 0, 3)
	if codeKey != "" {
		keys = append(keys, "c:"+patientCode(patientID, codeKey))
	}
	if nameKey != "" {
		keys = append(keys, "n:"+patientCode(patientID, nameKey))
	}
	if bareKey != "" {
		keys = append(keys, "b:"+patientCode(patientID, bareKey))
	}
	return keys
}

// adopt replaces the entry's payload in place so every index key keeps
// pointing at the winner.
func adopt(existing *groupEntry, winner *groupEntry) {
	dynamics := existing.test.HasDynamics || winner.test.HasDynamics
	existing.test = winner.test
	existing.test.HasDynamics = dynamics
	existing.codeKey = winner.codeKey
	existing.prefixed = winner.prefixed
}

// measurementDates collects the distinct dates observed per patient and raw
// test code, the basis of the has_dynamics flag. Another patient's
// measurements never count towards a patient's dynamics.
func measurementDates(rows []models.TestRow) map[string]map[string]bool {
	dates := make(map[string]map[string]bool)
	for _, row := range rows {
		key := patientCode(row.PatientID, row.TestCode)
		if dates[key] == nil {
			dates[key] = make(map[string]bool)
		}
		dates[key][row.Date] = true
	}
	return dates
}

func patientCode(patientID, code string) string {
	return patientID + "\x00" + code
}

func nameKey(name string) string {
	return normalize.Normalize(name)
}

func bareKey(code string) string {
	lower := strings.ToLower(strings.TrimSpace(code))
	for prefix := range categoryByPrefix {
		if strings.HasPrefix(lower, prefix) {
			return normalize.Normalize(strings.TrimPrefix(lower, prefix))
		}
	}
	return normalize.Normalize(lower)
}

func hasCategoryPrefix(code string) bool {
	lower := strings.ToLower(strings.TrimSpace(code))
	for prefix := range categoryByPrefix {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
