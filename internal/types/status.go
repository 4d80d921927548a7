package types

// Status is a type for the status of a resource in the database.
// This is used to track the lifecycle of a row and to determine if it
// should be included in queries. Note that this is distinct from the
// subscription's own lifecycle status.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
