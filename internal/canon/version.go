package canon

// Version constants recorded with every run.
const (
	// FormatVersion is the canonical state format version.
	FormatVersion = "1"

	// EngineVersion is the tickflow engine version.
	EngineVersion = "0.3.0"
)
