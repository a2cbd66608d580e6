package ranking

import (
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"time"
)

// neutralScore is returned by features that have no signal to work with.
const neutralScore = 0.5

// Lexical feature per-term contributions.
const (
	lexicalTitleWeight   = 0.4
	lexicalSnippetWeight = 0.3
	lexicalContentWeight = 0.1
)

// Increments for keyword-count features.
const (
	schemaIncrement = 0.1
	topicIncrement  = 0.2
)

// Metadata keys checked for a publication or modification date, in order.
var dateMetadataKeys = []string{
	"publishedDate",
	"lastModified",
	"published_date",
	"last_modified",
	"date",
}

// dateLayouts are tried in order when a date is given as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// authorityDomains are event platforms and professional networks that get an
// authority boost. Subdomains match too.
var authorityDomains = []string{
	"eventbrite.com",
	"eventbrite.de",
	"meetup.com",
	"lu.ma",
	"xing.com",
	"linkedin.com",
	"conference-service.com",
	"10times.com",
	"eventim.de",
	"ticketmaster.com",
}

// schemaKeywords indicate structured data or event semantics in page content.
var schemaKeywords = []string{
	"json-ld",
	"schema.org",
	"@type",
	"event",
	"startdate",
	"enddate",
	"location",
	"organizer",
	"speaker",
	"agenda",
	"registration",
	"ticket",
}

// topicTerms are event types matched between the query and the candidate.
var topicTerms = []string{
	"conference",
	"summit",
	"workshop",
	"seminar",
	"meetup",
	"webinar",
	"hackathon",
	"expo",
	"forum",
	"symposium",
	"congress",
	"convention",
	"festival",
	"fair",
	"training",
	"bootcamp",
	"kongress",
	"messe",
	"tagung",
}

// FeatureCalculator computes the per-candidate feature vector. It is safe for
// concurrent use.
type FeatureCalculator struct {
	now func() time.Time
}

// NewFeatureCalculator creates a FeatureCalculator. now is used as the
// reference time for recency; nil means time.Now.
func NewFeatureCalculator(now func() time.Time) *FeatureCalculator {
	if now == nil {
		now = time.Now
	}
	return &FeatureCalculator{now: now}
}

// Calculate returns the six features for one candidate.
func (f *FeatureCalculator) Calculate(query string, c Candidate, country string) Features {
	return Features{
		Lexical:   LexicalFeature(query, c),
		Recency:   RecencyFeature(c.Metadata, f.now()),
		Authority: AuthorityFeature(c.URL),
		Geo:       GeoFeature(c, country),
		Schema:    SchemaFeature(c.Content),
		Topic:     TopicFeature(query, c),
	}
}

// LexicalFeature scores substring matches of whitespace-separated query terms:
// each term adds 0.4 when found in the title, 0.3 in the snippet and 0.1 in the
// content. The result is capped at 1.
func LexicalFeature(query string, c Candidate) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(c.Title)
	snippet := strings.ToLower(c.Snippet)
	content := strings.ToLower(c.Content)

	var score float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += lexicalTitleWeight
		}
		if strings.Contains(snippet, term) {
			score += lexicalSnippetWeight
		}
		if strings.Contains(content, term) {
			score += lexicalContentWeight
		}
	}
	return capScore(score)
}

// RecencyFeature maps the age of the candidate's publication date to a step
// score. Missing or unparseable dates yield 0.5.
func RecencyFeature(metadata map[string]any, now time.Time) float64 {
	published, ok := PublishedAt(metadata)
	if !ok {
		return neutralScore
	}
	ageDays := now.Sub(published).Hours() / 24
	return RecencyStep(ageDays)
}

// RecencyStep maps an age in days to a recency score:
// <=7d 1.0, <=30d 0.8, <=90d 0.6, <=365d 0.4, else 0.2.
// Negative ages (future dates) count as brand new.
func RecencyStep(ageDays float64) float64 {
	switch {
	case math.IsNaN(ageDays):
		return neutralScore
	case ageDays <= 7:
		return 1.0
	case ageDays <= 30:
		return 0.8
	case ageDays <= 90:
		return 0.6
	case ageDays <= 365:
		return 0.4
	default:
		return 0.2
	}
}

// PublishedAt extracts a publication or modification time from candidate
// metadata, checking the known date keys in order. Strings, time.Time values
// and unix timestamps (seconds, or milliseconds when large) are accepted.
func PublishedAt(metadata map[string]any) (time.Time, bool) {
	for _, key := range dateMetadataKeys {
		v, ok := metadata[key]
		if !ok || v == nil {
			continue
		}
		return parseDate(v)
	}
	return time.Time{}, false
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return *d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return unixTime(f)
	case float64:
		return unixTime(d)
	case int:
		return unixTime(float64(d))
	case int64:
		return unixTime(float64(d))
	default:
		return time.Time{}, false
	}
}

// unixTime interprets f as unix seconds, or milliseconds when it is too large
// to be a plausible seconds value.
func unixTime(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	return time.Unix(int64(f), 0), true
}

// AuthorityFeature scores the candidate's domain: .gov/.edu 1.0, .org 0.9,
// known event platforms 0.8, any other https URL 0.7, else 0.5. Malformed URLs
// yield 0.5.
func AuthorityFeature(rawURL string) float64 {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return neutralScore
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return neutralScore
	}

	switch {
	case strings.HasSuffix(host, ".gov"), strings.HasSuffix(host, ".edu"):
		return 1.0
	case strings.HasSuffix(host, ".org"):
		return 0.9
	case isAuthorityDomain(host):
		return 0.8
	case strings.EqualFold(u.Scheme, "https"):
		return 0.7
	default:
		return neutralScore
	}
}

func isAuthorityDomain(host string) bool {
	for _, d := range authorityDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// SchemaFeature counts structured-data and event keywords in the content,
// 0.1 per keyword found, capped at 1.
func SchemaFeature(content string) float64 {
	if content == "" {
		return 0
	}
	lower := strings.ToLower(content)

	var score float64
	for _, kw := range schemaKeywords {
		if strings.Contains(lower, kw) {
			score += schemaIncrement
		}
	}
	return capScore(score)
}

// TopicFeature adds 0.2 for every event-type term that appears both in the
// query and in the candidate's title or snippet, capped at 1.
func TopicFeature(query string, c Candidate) float64 {
	q := strings.ToLower(query)
	if q == "" {
		return 0
	}
	text := strings.ToLower(c.Title + " " + c.Snippet)

	var score float64
	for _, term := range topicTerms {
		if strings.Contains(q, term) && strings.Contains(text, term) {
			score += topicIncrement
		}
	}
	return capScore(score)
}

// capScore clamps a feature score to [0, 1].
func capScore(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	return score
}
