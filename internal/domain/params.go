package domain

// LogParams holds parameters for querying records from a running instance.
// This type is shared between the TUI and CLI packages.
//
// Fields:
//   - Search: Case-insensitive substring over content and tags. Empty means no constraint.
//   - Level: Exact level match. Empty means no constraint.
//   - Tags: Records sharing at least one tag pass. Empty means no constraint.
//   - Lines: Number of most recent records to return. 0 means use server default.
//
// When none of Search, Level or Tags is set the server returns the session's
// filtered view as-is.
type LogParams struct {
	Search string
	Level  string
	Tags   []string
	Lines  int
}

// HasFilter returns true if any ad-hoc filter field is set
func (p LogParams) HasFilter() bool {
	return p.Search != "" || p.Level != "" || len(p.Tags) > 0
}

// Criteria converts the params to filter criteria
func (p LogParams) Criteria() FilterCriteria {
	return FilterCriteria{
		SearchQuery:   p.Search,
		SelectedLevel: p.Level,
		SelectedTags:  p.Tags,
	}
}
