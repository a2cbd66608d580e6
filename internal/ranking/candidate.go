package ranking

// Candidate is one retrieved item evaluated for relevance. URL is the key
// within a single ranking call. Candidates are owned by the caller and are
// never modified by the pipeline.
type Candidate struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Snippet  string         `json:"snippet"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// text returns the combined searchable text of the candidate.
func (c Candidate) text() string {
	return c.Title + " " + c.Snippet + " " + c.Content
}

// Features holds the six per-candidate ranking signals, each in [0, 1].
type Features struct {
	Lexical   float64 `json:"lexical"`
	Recency   float64 `json:"recency"`
	Authority float64 `json:"authority"`
	Geo       float64 `json:"geo"`
	Schema    float64 `json:"schema"`
	Topic     float64 `json:"topic"`
}

// Result is a ranked candidate. Relevance is the score produced by the
// relevance scorer that was used for the call; it replaces Features.Lexical in
// the final blend. Rank is positional (1-based) and only meaningful within the
// result set it was returned in.
type Result struct {
	Candidate  Candidate `json:"candidate"`
	Features   Features  `json:"features"`
	Relevance  float64   `json:"relevance"`
	FinalScore float64   `json:"finalScore"`
	Rank       int       `json:"rank"`
}
