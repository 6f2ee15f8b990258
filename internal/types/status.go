package types

// Status is a type for the lifecycle state of a resource row in the database.
// This is used to determine if a row should be included in queries; rows are
// archived or marked deleted, never physically removed.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
