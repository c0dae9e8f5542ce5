package discovery

// Recorder receives one call per decision taken during a pass.
// Implementations must be safe for concurrent passes.
type Recorder interface {
	Confirmed(fileType string)
	Discovered(fileType string)
	PassedThrough(fileType string)
	Skipped(fileType string, reason string)
	PassFailed(fileType string)
}

// Reasons given to Recorder.Skipped.
const (
	SkipAttributeMissing = "attribute_missing"
	SkipNameTaken        = "name_taken"
	SkipCaseCollision    = "case_collision"
)

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Confirmed(string)       {}
func (NopRecorder) Discovered(string)      {}
func (NopRecorder) PassedThrough(string)   {}
func (NopRecorder) Skipped(string, string) {}
func (NopRecorder) PassFailed(string)      {}
