package domain

// Snapshot is the position state of one coin immediately after a fill.
// Tainted is only meaningful when the reconstruction ran with taint
// classification requested.
type Snapshot struct {
	TimeMs      int64
	Coin        string
	NetSize     float64
	AvgEntryPx  float64
	Tainted     bool
	LifecycleID int
}

// ClassifiedFill is a fill annotated with the lifecycle it belongs to and the
// taint state of that lifecycle as of this fill.
type ClassifiedFill struct {
	Fill
	LifecycleID int
	Tainted     bool
}
