package ingest

// IngestResult counts what happened while ingesting content
type IngestResult struct {
	Files      int `json:"files"`
	Lines      int `json:"lines"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
	Failed     int `json:"failed"` // files that could not be read
}

// Add accumulates other into r
func (r *IngestResult) Add(other IngestResult) {
	r.Files += other.Files
	r.Lines += other.Lines
	r.Accepted += other.Accepted
	r.Duplicates += other.Duplicates
	r.Malformed += other.Malformed
	r.Failed += other.Failed
}
