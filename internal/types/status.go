package types

// Status is the row status of a persisted resource. It is orthogonal to any
// domain lifecycle status and decides whether a row is included in queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
