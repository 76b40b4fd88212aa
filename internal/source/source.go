package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Club is one entry of a club reference table.
type Club struct {
	Name    string
	Country string
}

// Transfer is one move from a snapshot's transfer history. Reference is the
// moving player's profile reference, as on the player's row.
type Transfer struct {
	Reference string
	Date      time.Time
	FromClub  string
	ToClub    string
}

// Snapshot is one loaded pass. Rows are never mutated after loading.
type Snapshot struct {
	Name      string
	Pass      int
	Manual    bool
	Rows      []player.SourceRow
	Clubs     []Club
	Transfers []Transfer
	Failures  []player.ParseFailure
}

// Load reads every snapshot in manifest order.
func Load(ctx context.Context, m *Manifest, logger *slog.Logger) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, len(m.Snapshots))
	for pass, spec := range m.Snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		var (
			snap Snapshot
			err  error
		)
		switch spec.Kind {
		case KindCSV:
			snap, err = LoadCSV(spec, pass)
		case KindLegacy:
			snap, err = LoadLegacy(ctx, spec, pass)
		default:
			err = fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("load snapshot %q: %w", spec.Name, err)
		}

		logger.Info("Snapshot loaded",
			"name", spec.Name, "kind", spec.Kind, "pass", pass, "manual", spec.Manual,
			"rows", len(snap.Rows), "clubs", len(snap.Clubs), "transfers", len(snap.Transfers), "failures", len(snap.Failures),
			"duration", time.Since(start).Round(time.Millisecond))
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
