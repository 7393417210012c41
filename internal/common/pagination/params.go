package pagination

// Params represents pagination parameters for list queries.
type Params struct {
	Page  int // 1-based page number
	Limit int // Items per page
}
