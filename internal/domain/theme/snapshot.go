package theme

// Snapshot is a read-only view of a document's theme state
type Snapshot struct {
	Stored    Preference       `json:"stored"`
	Preferred Preference       `json:"preferred"`
	Effective Effective        `json:"effective"`
	System    SystemPreference `json:"system"`
}
