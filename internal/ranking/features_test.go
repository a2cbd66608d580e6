package ranking

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

const tolerance = 1e-9

func TestLexicalFeature(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate Candidate
		expected  float64
	}{
		{
			name:      "title match only",
			query:     "summit",
			candidate: Candidate{Title: "Legal Tech Summit"},
			expected:  0.4,
		},
		{
			name:      "snippet match only",
			query:     "summit",
			candidate: Candidate{Snippet: "the summit of the year"},
			expected:  0.3,
		},
		{
			name:      "content match only",
			query:     "summit",
			candidate: Candidate{Content: "join the summit"},
			expected:  0.1,
		},
		{
			name:      "all fields",
			query:     "summit",
			candidate: Candidate{Title: "Summit", Snippet: "summit", Content: "summit"},
			expected:  0.8,
		},
		{
			name:      "capped at one",
			query:     "legal tech",
			candidate: Candidate{Title: "Legal Tech Summit", Snippet: "tech", Content: "legal"},
			expected:  1.0,
		},
		{
			name:      "case insensitive substring",
			query:     "LEGAL",
			candidate: Candidate{Title: "Paralegal meetup"},
			expected:  0.4,
		},
		{
			name:      "empty query",
			query:     "   ",
			candidate: Candidate{Title: "Legal Tech Summit"},
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LexicalFeature(tt.query, tt.candidate)
			if math.Abs(got-tt.expected) > tolerance {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestRecencyFeature(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name     string
		metadata map[string]any
		expected float64
	}{
		{name: "no metadata", metadata: nil, expected: 0.5},
		{name: "no date keys", metadata: map[string]any{"author": "x"}, expected: 0.5},
		{name: "three days", metadata: map[string]any{"publishedDate": fixedNow.Add(-3 * day).Format(time.RFC3339)}, expected: 1.0},
		{name: "exactly seven days", metadata: map[string]any{"publishedDate": fixedNow.Add(-7 * day)}, expected: 1.0},
		{name: "twenty days", metadata: map[string]any{"publishedDate": fixedNow.Add(-20 * day).Format(time.RFC3339)}, expected: 0.8},
		{name: "sixty days", metadata: map[string]any{"publishedDate": fixedNow.Add(-60 * day).Format(time.RFC3339)}, expected: 0.6},
		{name: "two hundred days", metadata: map[string]any{"publishedDate": fixedNow.Add(-200 * day).Format(time.RFC3339)}, expected: 0.4},
		{name: "four hundred days", metadata: map[string]any{"publishedDate": fixedNow.Add(-400 * day).Format(time.RFC3339)}, expected: 0.2},
		{name: "future date", metadata: map[string]any{"publishedDate": fixedNow.Add(30 * day).Format(time.RFC3339)}, expected: 1.0},
		{name: "fallback key", metadata: map[string]any{"lastModified": "2025-06-10"}, expected: 1.0},
		{name: "snake case alias", metadata: map[string]any{"published_date": "2025-05-01"}, expected: 0.6},
		{name: "unparseable date", metadata: map[string]any{"publishedDate": "not a date"}, expected: 0.5},
		{name: "unsupported type", metadata: map[string]any{"publishedDate": []string{"2025-06-10"}}, expected: 0.5},
		{name: "unix seconds", metadata: map[string]any{"publishedDate": float64(fixedNow.Add(-10 * day).Unix())}, expected: 0.8},
		{name: "unix milliseconds", metadata: map[string]any{"publishedDate": float64(fixedNow.Add(-10 * day).UnixMilli())}, expected: 0.8},
		{name: "json number", metadata: map[string]any{"lastModified": json.Number("1749988800")}, expected: 1.0},
		{name: "negative timestamp", metadata: map[string]any{"publishedDate": -5}, expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyFeature(tt.metadata, fixedNow)
			if got != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestRecencyStep(t *testing.T) {
	tests := []struct {
		days     float64
		expected float64
	}{
		{0, 1.0},
		{7, 1.0},
		{7.01, 0.8},
		{30, 0.8},
		{30.5, 0.6},
		{90, 0.6},
		{91, 0.4},
		{365, 0.4},
		{366, 0.2},
		{math.NaN(), 0.5},
	}

	for _, tt := range tests {
		if got := RecencyStep(tt.days); got != tt.expected {
			t.Errorf("RecencyStep(%v) = %f, want %f", tt.days, got, tt.expected)
		}
	}
}

func TestAuthorityFeature(t *testing.T) {
	tests := []struct {
		url      string
		expected float64
	}{
		{"https://www.bundesregierung.gov", 1.0},
		{"http://cs.stanford.edu/events", 1.0},
		{"https://www.python.org/events/", 0.9},
		{"https://www.eventbrite.com/e/legal-tech-123", 0.8},
		{"https://meetup.com/legal-tech-munich", 0.8},
		{"http://lu.ma/abc", 0.8},
		{"https://example.com/blog", 0.7},
		{"HTTPS://Example.COM", 0.7},
		{"http://example.com/blog", 0.5},
		{"https://notmeetup.com", 0.7},
		{"", 0.5},
		{"not a url", 0.5},
		{"://missing-scheme", 0.5},
		{"http://[::1", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := AuthorityFeature(tt.url); got != tt.expected {
				t.Errorf("AuthorityFeature(%q) = %f, want %f", tt.url, got, tt.expected)
			}
		})
	}
}

func TestSchemaFeature(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected float64
	}{
		{name: "empty", content: "", expected: 0},
		{name: "no keywords", content: "just a cooking blog", expected: 0},
		{name: "two keywords", content: "See the Agenda and every Speaker", expected: 0.2},
		{name: "json-ld markup", content: `<script type="application/ld+json">json-ld startDate</script>`, expected: 0.2},
		{
			name: "capped",
			content: "json-ld schema.org @type Event startDate endDate location organizer " +
				"speaker agenda registration ticket",
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SchemaFeature(tt.content)
			if math.Abs(got-tt.expected) > tolerance {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestTopicFeature(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate Candidate
		expected  float64
	}{
		{
			name:      "one shared term",
			query:     "legal tech conference",
			candidate: Candidate{Title: "Legal Tech Conference 2025"},
			expected:  0.2,
		},
		{
			name:      "two shared terms across title and snippet",
			query:     "conference workshop",
			candidate: Candidate{Title: "Conference", Snippet: "with a hands-on workshop"},
			expected:  0.4,
		},
		{
			name:      "term only in query",
			query:     "legal tech conference",
			candidate: Candidate{Title: "Legal Tech Summit"},
			expected:  0,
		},
		{
			name:      "term only in candidate",
			query:     "legal tech",
			candidate: Candidate{Title: "Legal Tech Summit"},
			expected:  0,
		},
		{
			name:      "content is ignored",
			query:     "summit",
			candidate: Candidate{Title: "Legal Tech", Content: "summit"},
			expected:  0,
		},
		{
			name:      "empty query",
			query:     "",
			candidate: Candidate{Title: "Summit"},
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopicFeature(tt.query, tt.candidate)
			if math.Abs(got-tt.expected) > tolerance {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestGeoFeature(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		country   string
		expected  float64
	}{
		{
			name:      "german tld and city",
			candidate: Candidate{URL: "https://example.de/event", Title: "Legal Tech Summit München"},
			country:   "de",
			expected:  0.8,
		},
		{
			name:      "country code is case insensitive",
			candidate: Candidate{URL: "https://example.de/event"},
			country:   "DE",
			expected:  0.5,
		},
		{
			name:      "com url without german text",
			candidate: Candidate{URL: "https://example.com/event", Title: "Legal Tech Summit"},
			country:   "de",
			expected:  0,
		},
		{
			name:      "language words count once each",
			candidate: Candidate{URL: "https://example.com", Snippet: "Anmeldung und Networking und mehr"},
			country:   "de",
			expected:  0.4,
		},
		{
			name:      "words match on boundaries only",
			candidate: Candidate{URL: "https://www.delta.com", Title: "Under the hood", Content: "berliner"},
			country:   "de",
			expected:  0,
		},
		{
			name: "capped at one",
			candidate: Candidate{
				URL:     "https://example.de",
				Title:   "Berlin, München und Hamburg",
				Snippet: "Veranstaltung für Deutschland",
			},
			country:  "de",
			expected: 1.0,
		},
		{
			name:      "uk alias with multi word place",
			candidate: Candidate{URL: "https://events.example.co.uk", Title: "Legal Tech Week", Snippet: "Held in the United Kingdom"},
			country:   "uk",
			expected:  0.8,
		},
		{
			name:      "unknown country",
			candidate: Candidate{URL: "https://example.de/event", Title: "Berlin"},
			country:   "zz",
			expected:  0,
		},
		{
			name:      "empty country",
			candidate: Candidate{URL: "https://example.de/event"},
			country:   "",
			expected:  0,
		},
		{
			name:      "malformed url still scans text",
			candidate: Candidate{URL: "http://[::1", Title: "Wien"},
			country:   "at",
			expected:  0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GeoFeature(tt.candidate, tt.country)
			if math.Abs(got-tt.expected) > tolerance {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestGeoFeature_TLDBeatsCom checks that a country TLD outranks an otherwise
// identical .com candidate.
func TestGeoFeature_TLDBeatsCom(t *testing.T) {
	de := Candidate{URL: "https://example.de/event", Title: "Legal Tech Summit", Snippet: "Annual meeting"}
	com := de
	com.URL = "https://example.com/event"

	if GeoFeature(de, "de") <= GeoFeature(com, "de") {
		t.Errorf("expected .de candidate (%f) to beat .com candidate (%f)",
			GeoFeature(de, "de"), GeoFeature(com, "de"))
	}
}

// TestGeoFeature_EnglishTextHasNoForeignSignal checks that common English
// words never count as Italian, Spanish or French language hints.
func TestGeoFeature_EnglishTextHasNoForeignSignal(t *testing.T) {
	c := Candidate{
		URL:     "https://example.com/summit",
		Title:   "Data Summit: one price per ticket",
		Snippet: "Meet speakers con-side, pick a para track, inscription wall, register now",
		Content: "Two sessions per day with a panel con and pro debate.",
	}

	for _, country := range []string{"it", "es", "fr"} {
		if got := GeoFeature(c, country); got != 0 {
			t.Errorf("GeoFeature(%q) = %v, want 0 for an English page", country, got)
		}
	}

	it := Candidate{URL: "https://example.com/evento", Snippet: "Iscrizione e biglietti della conferenza"}
	if got := GeoFeature(it, "it"); math.Abs(got-0.8) > tolerance {
		t.Errorf("GeoFeature(it) = %v, want 0.8", got)
	}
}

func TestFeatureCalculator_Calculate(t *testing.T) {
	calc := NewFeatureCalculator(fixedClock)
	c := Candidate{
		URL:      "https://example.de/event",
		Title:    "Legal Tech Summit München",
		Snippet:  "Die Konferenz für Legal Tech",
		Content:  "agenda speaker",
		Metadata: map[string]any{"publishedDate": fixedNow.Format(time.RFC3339)},
	}

	f := calc.Calculate("legal tech summit", c, "de")

	if f.Lexical != 1.0 {
		t.Errorf("expected lexical 1.0, got %f", f.Lexical)
	}
	if f.Recency != 1.0 {
		t.Errorf("expected recency 1.0, got %f", f.Recency)
	}
	if f.Authority != 0.7 {
		t.Errorf("expected authority 0.7, got %f", f.Authority)
	}
	if math.Abs(f.Geo-1.0) > tolerance {
		t.Errorf("expected geo 1.0, got %f", f.Geo)
	}
	if math.Abs(f.Schema-0.2) > tolerance {
		t.Errorf("expected schema 0.2, got %f", f.Schema)
	}
	if math.Abs(f.Topic-0.2) > tolerance {
		t.Errorf("expected topic 0.2, got %f", f.Topic)
	}
}

// TestFeatureCalculator_AllFeaturesInRange checks every feature stays in [0, 1]
// for malformed and adversarial candidates.
func TestFeatureCalculator_AllFeaturesInRange(t *testing.T) {
	calc := NewFeatureCalculator(nil)
	candidates := []Candidate{
		{},
		{URL: "%%%", Metadata: map[string]any{"publishedDate": "31/31/2025"}},
		{URL: "ftp://x", Title: "conference conference summit workshop seminar meetup"},
		{
			URL:     "https://a.gov",
			Title:   "Berlin München Hamburg Frankfurt Köln Stuttgart",
			Content: "json-ld schema.org @type event startdate enddate location organizer speaker agenda registration ticket",
		},
	}

	for i, c := range candidates {
		f := calc.Calculate("conference summit workshop seminar meetup webinar", c, "de")
		for _, v := range []float64{f.Lexical, f.Recency, f.Authority, f.Geo, f.Schema, f.Topic} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("candidate %d: feature out of range: %+v", i, f)
				break
			}
		}
	}
}
