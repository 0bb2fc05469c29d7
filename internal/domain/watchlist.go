package domain

// WatchlistEntry is a flagged creator address.
// ReportCount is at least 1 and never decreases.
type WatchlistEntry struct {
	Address     string
	Label       string // profile link or free-form label
	ReportCount int
}
