// Package catalog holds the reference set of canonical clinical tests:
// codes, display names, units and normal ranges. Loaded once per run and
// immutable afterwards, so a single Catalog is safe to share across
// concurrent pipeline executions.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/normalize"
	"gopkg.in/yaml.v3"
)

// ErrUnavailable marks a catalog that could not be read at all, as opposed
// to lookups that simply find no match.
var ErrUnavailable = errors.New("test catalog unavailable")

// Test is one canonical catalog entry. Code doubles as the unique key.
type Test struct {
	Code string   `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	Unit string   `json:"unit" yaml:"unit"`
	Min  *float64 `json:"min" yaml:"min"`
	Max  *float64 `json:"max" yaml:"max"`
}

// Catalog is an ordered, indexed collection of canonical tests. Order is
// the file order and is observable: fuzzy-match ties break on first-seen
// position.
type Catalog struct {
	tests      []Test
	byCode     map[string]int
	nameToCode map[string]string
}

// Load reads a catalog file. JSON is the native format (an array of
// {id,name,unit,min,max} objects); .yaml/.yml files with the same shape are
// accepted as well. A missing or unreadable file is ErrUnavailable.
func Load(path string) (*Catalog, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entries []Test
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &entries)
	default:
		err = json.Unmarshal(content, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return New(entries), nil
}

// New builds a catalog from pre-parsed entries. Entries with a blank id are
// skipped; a blank name falls back to the code.
func New(entries []Test) *Catalog {
	c := &Catalog{
		byCode:     make(map[string]int),
		nameToCode: make(map[string]string),
	}

	skipped := 0
	for _, entry := range entries {
		code := strings.TrimSpace(entry.Code)
		if code == "" || strings.EqualFold(code, "nan") || strings.EqualFold(code, "none") {
			skipped++
			continue
		}
		if _, exists := c.byCode[code]; exists {
			skipped++
			continue
		}

		entry.Code = code
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			entry.Name = code
		}
		entry.Unit = strings.TrimSpace(entry.Unit)

		c.byCode[code] = len(c.tests)
		c.tests = append(c.tests, entry)

		lower := strings.ToLower(entry.Name)
		if _, taken := c.nameToCode[lower]; !taken {
			c.nameToCode[lower] = code
		}
		if token := normalize.Normalize(entry.Name); token != "" {
			if _, taken := c.nameToCode[token]; !taken {
				c.nameToCode[token] = code
			}
		}
	}

	// The wild chem.chol code appears in source tables but the norms live
	// under lip.cholesterol_total.
	if _, ok := c.byCode["chem.chol"]; !ok {
		if idx, ok := c.byCode["lip.cholesterol_total"]; ok {
			c.byCode["chem.chol"] = idx
		}
	}

	if skipped > 0 && logger.Log != nil {
		logger.Log.WithField("skipped", skipped).Warn("Skipped catalog entries without usable id")
	}

	return c
}

// Tests returns the catalog entries in file order. Callers must not modify
// the returned slice.
func (c *Catalog) Tests() []Test {
	return c.tests
}

// Len reports the number of distinct canonical tests.
func (c *Catalog) Len() int {
	return len(c.tests)
}

// Lookup finds a test by canonical code.
func (c *Catalog) Lookup(code string) (Test, bool) {
	if idx, ok := c.byCode[code]; ok {
		return c.tests[idx], true
	}
	return Test{}, false
}

// CodeByName finds a code by display name, case-insensitively; it also
// accepts the normalized token of the name.
func (c *Catalog) CodeByName(name string) (string, bool) {
	if code, ok := c.nameToCode[strings.ToLower(name)]; ok {
		return code, true
	}
	if code, ok := c.nameToCode[normalize.Normalize(name)]; ok {
		return code, true
	}
	return "", false
}

// NormInfo resolves the norm entry for a code/name pair the forgiving way
// the reporting layer needs it: direct code hit, then name-index hit, then
// partial display-name containment.
func (c *Catalog) NormInfo(code, name string) (Test, bool) {
	if t, ok := c.Lookup(code); ok {
		return t, true
	}
	if mapped, ok := c.CodeByName(name); ok {
		if t, ok := c.Lookup(mapped); ok {
			return t, true
		}
	}
	lowerName := strings.ToLower(strings.TrimSpace(name))
	if lowerName == "" {
		return Test{}, false
	}
	for _, t := range c.tests {
		candidate := strings.ToLower(t.Name)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, lowerName) || strings.Contains(lowerName, candidate) {
			return t, true
		}
	}
	return Test{}, false
}
