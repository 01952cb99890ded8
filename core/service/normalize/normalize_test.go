package normalize

import (
	"math"
	"testing"
)

func TestCompany(t *testing.T) {
	n := NewNormalizer(nil, nil, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"comma suffix with period", "Acme, Inc.", "acme"},
		{"bare suffix uppercase", "ACME INC", "acme"},
		{"llc", "Initech LLC", "initech"},
		{"limited", "Globex Limited", "globex"},
		{"corporation", "Umbrella Corporation", "umbrella"},
		{"co with period", "Wayne Co.", "wayne"},
		{"non-suffix words kept", "Acme Holding Company", "acme holding"},
		{"stacked suffixes", "Acme Corp Co", "acme"},
		{"stacked suffixes with comma", "Initech Co, Ltd", "initech"},
		{"suffix word then suffix", "Globex Company Inc", "globex"},
		{"internal whitespace collapsed", "  Stark   Industries  ", "stark industries"},
		{"no suffix", "Hooli", "hooli"},
		{"suffix is the whole name", "Company", "company"},
		{"empty", "", UnknownCompany},
		{"whitespace only", "   ", UnknownCompany},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Company(tt.raw)
			if got != tt.want {
				t.Errorf("Company(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCompany_Idempotent(t *testing.T) {
	n := NewNormalizer(nil, nil, nil)

	inputs := []string{
		"Acme, Inc.", "ACME INC", "Globex Limited", "Hooli",
		"Stark   Industries", "", "unknown company", "Wayne Co.",
		"Acme Corp Co", "Globex Company Inc", "Initech Co, Ltd",
		"Acme Holding Company", "Company Co",
	}
	for _, raw := range inputs {
		once := n.Company(raw)
		twice := n.Company(once)
		if once != twice {
			t.Errorf("Company not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"seniority token", "Senior Software Engineer", "software engineer"},
		{"abbreviated seniority with period", "Sr. Backend Engineer", "backend engineer"},
		{"roman numeral", "Software Engineer III", "software engineer"},
		{"digit level", "Engineer 2", "engineer"},
		{"punctuation stripped", "Engineer, Platform (Core)", "engineer platform core"},
		{"staff and lead", "Staff Lead Engineer", "engineer"},
		{"empty", "", ""},
		{"already normalized", "software engineer", "software engineer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTitle(tt.raw)
			if got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical after normalization", "Senior Software Engineer", "Software Engineer II", 1.0},
		{"empty side", "", "Software Engineer", 0},
		{"both empty", "", "", 0},
		{"disjoint", "Accountant", "Software Engineer", 0},
		{"partial overlap", "software engineer", "software developer", 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TitleSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TitleSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTitleSimilarity_SymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"Senior Software Engineer", "Software Engineer"},
		{"Data Scientist", "Machine Learning Engineer"},
		{"Product Manager", "Senior Product Manager II"},
		{"", "Engineer"},
	}
	for _, p := range pairs {
		ab := TitleSimilarity(p[0], p[1])
		ba := TitleSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("similarity not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("similarity out of bounds for %q/%q: %v", p[0], p[1], ab)
		}
	}
}

func TestCompanyDomain(t *testing.T) {
	n := NewNormalizer(nil, nil, nil)

	tests := []struct {
		name string
		from string
		want string
	}{
		{"bare address", "recruiter@acme.com", "acme.com"},
		{"display name form", "Acme Recruiting <talent@acme.com>", "acme.com"},
		{"consumer provider excluded", "someone@gmail.com", ""},
		{"mail subdomain stripped", "noreply@mail.acme.com", "acme.com"},
		{"careers subdomain stripped", "jobs@careers.initech.io", "initech.io"},
		{"non-marker subdomain kept", "hr@eu.acme.com", "eu.acme.com"},
		{"two labels never stripped", "team@jobs.io", "jobs.io"},
		{"no at sign", "not-an-address", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.CompanyDomain(tt.from)
			if got != tt.want {
				t.Errorf("CompanyDomain(%q) = %q, want %q", tt.from, got, tt.want)
			}
		})
	}
}

func TestIsHiringPlatform(t *testing.T) {
	n := NewNormalizer(nil, nil, nil)

	if !n.IsHiringPlatform("greenhouse.io") {
		t.Error("greenhouse.io should be a hiring platform")
	}
	if !n.IsHiringPlatform("Lever.co") {
		t.Error("platform check should be case insensitive")
	}
	if n.IsHiringPlatform("acme.com") {
		t.Error("acme.com should not be a hiring platform")
	}

	custom := NewNormalizer(nil, []string{"hire.example"}, nil)
	if !custom.IsHiringPlatform("hire.example") {
		t.Error("injected platform set should be honored")
	}
	if custom.IsHiringPlatform("greenhouse.io") {
		t.Error("injected platform set should replace the default")
	}
}
