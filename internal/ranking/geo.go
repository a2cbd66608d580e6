package ranking

import (
	"net/url"
	"strings"
)

// Geo indicator weights. A country-code TLD is a stronger signal than a place
// name, which is stronger than a common word of the country's language.
const (
	geoTLDWeight      = 0.5
	geoPlaceWeight    = 0.3
	geoLanguageWeight = 0.2
)

// geoIndicators lists, per country code, the TLDs, place names and language
// words that suggest a candidate is relevant to that country.
type geoIndicators struct {
	tlds     []string
	places   []string
	language []string
}

var geoTable = map[string]geoIndicators{
	"de": {
		tlds:     []string{".de"},
		places:   []string{"deutschland", "germany", "berlin", "münchen", "munich", "hamburg", "frankfurt", "köln", "cologne", "stuttgart", "düsseldorf", "leipzig"},
		language: []string{"und", "für", "veranstaltung", "anmeldung"},
	},
	"at": {
		tlds:     []string{".at"},
		places:   []string{"österreich", "austria", "wien", "vienna", "graz", "linz", "salzburg", "innsbruck"},
		language: []string{"und", "für", "veranstaltung", "anmeldung"},
	},
	"ch": {
		tlds:     []string{".ch"},
		places:   []string{"schweiz", "switzerland", "suisse", "zürich", "zurich", "genf", "geneva", "basel", "bern", "lausanne"},
		language: []string{"und", "für", "veranstaltung", "anmeldung"},
	},
	"us": {
		tlds:     []string{".us"},
		places:   []string{"usa", "united states", "new york", "san francisco", "los angeles", "chicago", "boston", "austin", "seattle"},
		language: []string{"register", "downtown"},
	},
	"gb": {
		tlds:     []string{".uk"},
		places:   []string{"united kingdom", "england", "london", "manchester", "edinburgh", "birmingham", "glasgow"},
		language: []string{"programme", "centre"},
	},
	"fr": {
		tlds:     []string{".fr"},
		places:   []string{"france", "paris", "lyon", "marseille", "toulouse", "bordeaux", "lille"},
		language: []string{"pour", "avec", "événement", "billetterie"},
	},
	"es": {
		tlds:     []string{".es"},
		places:   []string{"españa", "spain", "madrid", "barcelona", "valencia", "sevilla", "bilbao"},
		language: []string{"evento", "inscripción", "entradas", "ponentes"},
	},
	"it": {
		tlds:     []string{".it"},
		places:   []string{"italia", "italy", "roma", "rome", "milano", "milan", "torino", "napoli"},
		language: []string{"della", "evento", "iscrizione", "biglietti"},
	},
	"nl": {
		tlds:     []string{".nl"},
		places:   []string{"nederland", "netherlands", "amsterdam", "rotterdam", "utrecht", "den haag", "eindhoven"},
		language: []string{"voor", "het", "evenement", "aanmelden"},
	},
}

// countryAliases maps alternative country codes onto geoTable keys.
var countryAliases = map[string]string{
	"uk": "gb",
}

// GeoFeature scores how strongly a candidate points at the given country.
// A matching country-code TLD in the URL host adds 0.5, each place name 0.3 and
// each language word 0.2, capped at 1. Place names and words are matched as
// whole words across URL, title, snippet and content. Unknown countries score 0.
func GeoFeature(c Candidate, country string) float64 {
	ind, ok := lookupCountry(country)
	if !ok {
		return 0
	}

	var score float64
	host := candidateHost(c.URL)
	for _, tld := range ind.tlds {
		if host != "" && strings.HasSuffix(host, tld) {
			score += geoTLDWeight
		}
	}

	text := wordText(c.URL + " " + c.text())
	for _, place := range ind.places {
		if containsWords(text, place) {
			score += geoPlaceWeight
		}
	}
	for _, word := range ind.language {
		if containsWords(text, word) {
			score += geoLanguageWeight
		}
	}
	return capScore(score)
}

func lookupCountry(country string) (geoIndicators, bool) {
	code := strings.ToLower(strings.TrimSpace(country))
	if alias, ok := countryAliases[code]; ok {
		code = alias
	}
	ind, ok := geoTable[code]
	return ind, ok
}

func candidateHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// wordText normalizes text to its words separated by single spaces, padded on
// both sides, so phrases can be matched on word boundaries.
func wordText(text string) string {
	return " " + strings.Join(splitWords(text), " ") + " "
}

// containsWords reports whether phrase occurs in a wordText-normalized string
// on word boundaries.
func containsWords(text, phrase string) bool {
	words := splitWords(phrase)
	if len(words) == 0 {
		return false
	}
	return strings.Contains(text, " "+strings.Join(words, " ")+" ")
}
