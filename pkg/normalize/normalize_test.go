package normalize

import "testing"

func TestNormalizeSteps(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"% Monocytes", "monocytes"},
		{"chem.alt", "chem_alt"},
		{"Alanine Transaminase", "alanine_transaminase"},
		{"ALT (U/L)", "alt_ul"},
		{"hemoglobin-121", "hemoglobin"},
		{"  spaced   out  ", "spaced_out"},
		{"___", ""},
		{"", ""},
		{"Гемоглобин", "gemoglobin"},
		{"Щёлочная фосфатаза", "schyolochnaya_fosfataza"},
		{"Éosinophiles", "eosinophiles"},
		{"bc.perc_monocytes", "bc_perc_monocytes"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"% Monocytes", "chem.alt", "Гемоглобин", "ALT 2024", "a.b-c d", "",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeOnlyLettersAndUnderscoresSurvive(t *testing.T) {
	out := Normalize("AB-12.3 cd!@# Ж 45")
	for _, r := range out {
		if !(r >= 'a' && r <= 'z') && r != '_' {
			t.Fatalf("unexpected rune %q in %q", r, out)
		}
	}
}

func TestTransliterateDigraphs(t *testing.T) {
	cases := map[string]string{
		"Жир":    "Zhir",
		"Царь":   "Tsar",
		"Чаша":   "Chasha",
		"Щука":   "Schuka",
		"Юность": "Yunost",
		"plain":  "plain",
	}
	for in, want := range cases {
		if got := Transliterate(in); got != want {
			t.Errorf("Transliterate(%q) = %q, want %q", in, got, want)
		}
	}
}
