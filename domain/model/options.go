package model

// ParseOptions configures a single parse
type ParseOptions struct {
	Name     string
	FileSize int
	JobID    string
}

// DefaultParseOptions returns options for an anonymous in-memory parse
func DefaultParseOptions() *ParseOptions {
	return &ParseOptions{}
}
