package core

// BulkOperation is one step of a batched write against the event store.
// The only implementations are DeleteMany and ReplaceOne.
type BulkOperation interface {
	isBulkOperation()
}

// DeleteMany removes every event owned by User whose provider ID is in GEventIDs.
type DeleteMany struct {
	User      string   `json:"user"`
	GEventIDs []string `json:"gEventIds"`
}

// ReplaceOne replaces the event matching (GEventID, User) with Replacement.
// When Upsert is set and nothing matches, Replacement is inserted.
type ReplaceOne struct {
	User        string       `json:"user"`
	GEventID    string       `json:"gEventId"`
	Replacement CompassEvent `json:"replacement"`
	Upsert      bool         `json:"upsert"`
}

func (DeleteMany) isBulkOperation() {}
func (ReplaceOne) isBulkOperation() {}

// BulkResult counts what a BulkWrite changed.
type BulkResult struct {
	Deleted  int `json:"deleted"`
	Upserted int `json:"upserted"`
	Modified int `json:"modified"`
}

// Add accumulates another result into r.
func (r *BulkResult) Add(other BulkResult) {
	r.Deleted += other.Deleted
	r.Upserted += other.Upserted
	r.Modified += other.Modified
}
