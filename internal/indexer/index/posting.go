package index

// Posting records a document containing a term and the term's weighted
// frequency in that document.
type Posting struct {
	Doc       int
	Frequency float64
}

type PostingList []Posting

// TermEntry describes one vocabulary term.
type TermEntry struct {
	Term    string  `json:"term"`
	DocFreq int     `json:"doc_freq"`
	IDF     float64 `json:"idf"`
}
