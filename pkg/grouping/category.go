// Package grouping assigns canonical tests to clinical categories and
// collapses the cleaned measurement stream into per-category result lists,
// with deterministic conflict resolution when several raw codes land on the
// same test.
package grouping

import "strings"

// Category is one of the fixed clinical buckets.
type Category string

const (
	CategoryAnthropometry Category = "anthropometry"
	CategoryBiochemistry  Category = "biochemistry"
	CategoryBloodCount    Category = "blood_count"
	CategoryInfections    Category = "infections"
	CategoryInflammation  Category = "inflammation"
	CategoryLipidProfile  Category = "lipid_profile"
	CategoryDemography    Category = "demography"
	CategoryOther         Category = "other"
)

// Categories lists every bucket in presentation order.
var Categories = []Category{
	CategoryDemography,
	CategoryAnthropometry,
	CategoryBiochemistry,
	CategoryBloodCount,
	CategoryInfections,
	CategoryInflammation,
	CategoryLipidProfile,
	CategoryOther,
}

// Display names whose tests belong to biochemistry even when the code
// carries another category's prefix.
var biochemistryNameKeywords = []string{
	"glucose", "albumin", "bilirubin", "creatinine", "urea",
	"transaminase", "amylase", "lipase", "alkaline phosphatase",
	"total protein", "ferritin",
}

// Bare codes that are biochemistry tests regardless of any prefix.
var biochemistryAbbreviations = map[string]bool{
	"alt": true, "ast": true, "ggt": true, "alp": true, "ldh": true,
	"glucose": true, "albumin": true, "bilirubin": true,
	"creatinine": true, "urea": true,
}

var bloodCountNameKeywords = []string{
	"hemoglobin", "gemoglobin", "hematocrit", "erythrocyte", "leukocyte",
	"lymphocyte", "monocyte", "neutrophil", "eosinophil", "basophil",
	"platelet", "thrombocyte", "reticulocyte",
	"wbc", "rbc", "hgb", "hct", "plt", "mcv", "mch", "mchc",
}

var demographyNameKeywords = []string{"age", "sex", "gender", "birth"}

var categoryByPrefix = map[string]Category{
	"am.":   CategoryAnthropometry,
	"chem.": CategoryBiochemistry,
	"bc.":   CategoryBloodCount,
	"cmv.":  CategoryInfections,
	"infl.": CategoryInflammation,
	"lip.":  CategoryLipidProfile,
	"dem.":  CategoryDemography,
}

type rule struct {
	name     string
	category func(code, name string) (Category, bool)
}

// Rules run in fixed precedence order; the first hit wins. The table keeps
// the ordering explicit instead of burying it in branching.
var rules = []rule{
	{
		name: "biochemistry name keyword",
		category: func(code, name string) (Category, bool) {
			return CategoryBiochemistry, containsAny(name, biochemistryNameKeywords)
		},
	},
	{
		name: "cholesterol",
		category: func(code, name string) (Category, bool) {
			hit := code == "chem.chol" ||
				strings.Contains(code, "cholesterol") ||
				strings.Contains(name, "cholesterol")
			return CategoryLipidProfile, hit
		},
	},
	{
		name: "bare biochemistry abbreviation",
		category: func(code, name string) (Category, bool) {
			return CategoryBiochemistry, biochemistryAbbreviations[code]
		},
	},
	{
		name: "code prefix",
		category: func(code, name string) (Category, bool) {
			for prefix, cat := range categoryByPrefix {
				if !strings.HasPrefix(code, prefix) {
					continue
				}
				// bc.alt and friends are mislabeled biochemistry tests.
				if cat == CategoryBloodCount && biochemistryAbbreviations[strings.TrimPrefix(code, prefix)] {
					return CategoryBiochemistry, true
				}
				return cat, true
			}
			return "", false
		},
	},
	{
		name: "blood count vocabulary",
		category: func(code, name string) (Category, bool) {
			return CategoryBloodCount, containsAny(name, bloodCountNameKeywords) || containsAny(code, bloodCountNameKeywords)
		},
	},
	{
		name: "demography vocabulary",
		category: func(code, name string) (Category, bool) {
			return CategoryDemography, containsAny(name, demographyNameKeywords)
		},
	},
}

// Categorize places one code/name pair. Unmatched tests default to
// biochemistry, the dominant source of loosely labeled columns; only a
// wholly blank pair lands in other.
func Categorize(code, name string) Category {
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.ToLower(strings.TrimSpace(name))
	if code == "" && name == "" {
		return CategoryOther
	}
	for _, r := range rules {
		if cat, ok := r.category(code, name); ok {
			return cat
		}
	}
	return CategoryBiochemistry
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
