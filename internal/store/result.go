package store

import "fmt"

// PublishResult tracks counts from a publish operation.
type PublishResult struct {
	PlayersUpserted    int
	StintsWritten      int
	CorrectionsWritten int
	ReviewWritten      int
}

// Summary returns a human-readable summary of the publish operation.
func (r *PublishResult) Summary() string {
	return fmt.Sprintf(
		"players=%d stints=%d corrections=%d review=%d",
		r.PlayersUpserted, r.StintsWritten, r.CorrectionsWritten, r.ReviewWritten,
	)
}
