package catalog

// Record is one catalog search hit.
type Record struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	CoverID          int64    `json:"cover_id,omitempty"`
	CoverURL         string   `json:"cover_url,omitempty"`
}

// SearchResult is a page of catalog hits plus the total match count.
type SearchResult struct {
	TotalCount int      `json:"total_count"`
	Records    []Record `json:"records"`
}

// CoverSize selects a cover image resolution.
type CoverSize string

const (
	// CoverSmall is thumbnail resolution.
	CoverSmall CoverSize = "S"
	// CoverMedium is list-view resolution.
	CoverMedium CoverSize = "M"
	// CoverLarge is detail-view resolution.
	CoverLarge CoverSize = "L"
)

// SubjectList is the curated list of works filed under one catalog subject
// slug ("science_fiction", "historical_romance").
type SubjectList struct {
	Name       string   `json:"name"`
	TotalCount int      `json:"total_count"`
	Records    []Record `json:"records"`
}

// searchResponse mirrors the Open Library search payload.
type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverI           int64    `json:"cover_i"`
}

// subjectResponse mirrors the Open Library subjects payload.
type subjectResponse struct {
	Name      string        `json:"name"`
	WorkCount int           `json:"work_count"`
	Works     []subjectWork `json:"works"`
}

type subjectWork struct {
	Key              string          `json:"key"`
	Title            string          `json:"title"`
	Authors          []subjectAuthor `json:"authors"`
	FirstPublishYear int             `json:"first_publish_year"`
	CoverID          int64           `json:"cover_id"`
}

type subjectAuthor struct {
	Name string `json:"name"`
}
