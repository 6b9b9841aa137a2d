package enums

// AIStatus tags how far an upload got through emotion inference.
type AIStatus string

const (
	AIStatusProcessed  AIStatus = "processed"
	AIStatusSkipped    AIStatus = "skipped"
	AIStatusIneligible AIStatus = "ineligible"
	AIStatusError      AIStatus = "error"
	AIStatusDisabled   AIStatus = "disabled"
)

// String returns the literal string for the status.
func (s AIStatus) String() string {
	return string(s)
}
