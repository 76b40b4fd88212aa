// Package pipeline sequences the canonicalization stages over a set of loaded
// snapshots: identity resolution, per-pass deduplication, merging, career
// parsing and scale correction.
package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/scoracle-canon/internal/career"
	"github.com/albapepper/scoracle-canon/internal/dedupe"
	"github.com/albapepper/scoracle-canon/internal/identity"
	"github.com/albapepper/scoracle-canon/internal/merge"
	"github.com/albapepper/scoracle-canon/internal/player"
	"github.com/albapepper/scoracle-canon/internal/scale"
	"github.com/albapepper/scoracle-canon/internal/source"
)

// Options configure a run. Zero values fall back to defaults.
type Options struct {
	Shards     int
	Extractor  *identity.Extractor
	Resolve    identity.Options
	Policy     *merge.Policy
	Scale      *scale.Options
	PriorAudit *scale.Audit
	Logger     *slog.Logger

	// InferYouthClubs derives youth clubs from transfers made before age 23
	// for records whose sources carry none.
	InferYouthClubs bool
}

// shardOutput is what one shard contributes to the dataset.
type shardOutput struct {
	records     []player.PlayerRecord
	failures    []player.ParseFailure
	corrections []player.Correction
	review      []player.ReviewItem
}

// Run canonicalizes snapshots into a dataset. Snapshot order is pass order.
// A *player.DuplicateIDError means a stage broke the one-record-per-id
// invariant; the run is aborted and no dataset is returned.
func Run(ctx context.Context, snapshots []source.Snapshot, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := merge.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	scaleOpts := scale.DefaultOptions()
	if opts.Scale != nil {
		scaleOpts = *opts.Scale
	}
	shards := opts.Shards
	if shards < 1 {
		shards = 1
	}

	res := &Result{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	logger = logger.With("run_id", res.RunID.String())
	res.Stats.Snapshots = len(snapshots)

	var (
		rows      []player.SourceRow
		transfers []source.Transfer
		clubs     = career.ClubDirectory{}
	)
	manual := make(map[int]bool, len(snapshots))
	names := make(map[int]string, len(snapshots))
	for _, snap := range snapshots {
		rows = append(rows, snap.Rows...)
		transfers = append(transfers, snap.Transfers...)
		res.Dataset.Failures = append(res.Dataset.Failures, snap.Failures...)
		for _, c := range snap.Clubs {
			clubs.Add(c.Name, c.Country)
		}
		manual[snap.Pass] = snap.Manual || policy.IsManual(snap.Name)
		names[snap.Pass] = snap.Name
	}
	res.Stats.Rows = len(rows)

	// 1. Identity
	logger.Info("Phase 1/3: Resolving identities...", "rows", len(rows))
	resolution := identity.NewResolver(opts.Extractor, opts.Resolve).Resolve(rows)
	for _, a := range resolution.Assigned {
		switch a.Method {
		case identity.MethodReference:
			res.Stats.ByReference++
		case identity.MethodNameMatch:
			res.Stats.ByNameMatch++
		case identity.MethodNameSynthetic:
			res.Stats.Synthetic++
		}
	}
	res.Stats.Unresolved = len(resolution.Failures)
	res.Dataset.Failures = append(res.Dataset.Failures, resolution.Failures...)
	res.Dataset.Review = append(res.Dataset.Review, resolution.Review...)
	logger.Info("Identities resolved",
		"by_reference", res.Stats.ByReference, "by_name", res.Stats.ByNameMatch,
		"synthetic", res.Stats.Synthetic, "unresolved", res.Stats.Unresolved)

	history := transferIndex(resolution.Assigned, transfers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Partition by shard and pass. Every record of an id lands in the
	// same shard, so shards never share an identity.
	passOrder := sortedPasses(names)
	buckets := make([]map[int][]player.PlayerRecord, shards)
	for i := range buckets {
		buckets[i] = make(map[int][]player.PlayerRecord)
	}
	for _, a := range resolution.Assigned {
		s := shardOf(a.ID, shards)
		buckets[s][a.Row.Pass] = append(buckets[s][a.Row.Pass], player.NewRecord(a.ID, a.Row))
	}

	// 3. Shards
	logger.Info("Phase 2/3: Merging passes, parsing careers, correcting scale...", "passes", len(passOrder), "shards", shards)
	outputs := make([]shardOutput, shards)
	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		s := s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			passes := make([]merge.Pass, 0, len(passOrder))
			for _, p := range passOrder {
				recs := dedupe.Collapse(buckets[s][p])
				passes = append(passes, merge.Pass{Name: names[p], Manual: manual[p], Records: recs})
			}
			out, err := processShard(gctx, passes, policy, clubs, history, opts.InferYouthClubs, scaleOpts, opts.PriorAudit)
			if err != nil {
				return fmt.Errorf("shard %d: %w", s, err)
			}
			outputs[s] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 4. Assemble
	logger.Info("Phase 3/3: Assembling dataset...")
	for _, out := range outputs {
		res.Dataset.Records = append(res.Dataset.Records, out.records...)
		res.Dataset.Failures = append(res.Dataset.Failures, out.failures...)
		res.Dataset.Corrections = append(res.Dataset.Corrections, out.corrections...)
		res.Dataset.Review = append(res.Dataset.Review, out.review...)
	}
	player.SortRecords(res.Dataset.Records)
	if err := dedupe.AssertUnique(res.Dataset.Records, "final dataset"); err != nil {
		logger.Error("Uniqueness check failed, aborting run", "error", err)
		return nil, err
	}
	sortLogs(&res.Dataset)

	res.Stats.Records = len(res.Dataset.Records)
	for _, rec := range res.Dataset.Records {
		res.Stats.Stints += len(rec.Stints)
	}
	for _, c := range res.Dataset.Corrections {
		if c.Action == player.ActionDivided {
			res.Stats.Divided++
		}
	}
	res.Stats.Duration = time.Since(res.StartedAt)
	logger.Info("Run complete", "summary", res.Summary(), "duration", res.Stats.Duration.Round(time.Millisecond))
	return res, nil
}

// processShard runs the per-identity stages for one shard.
func processShard(
	ctx context.Context,
	passes []merge.Pass,
	policy merge.Policy,
	clubs career.ClubDirectory,
	history career.TransferIndex,
	inferYouth bool,
	scaleOpts scale.Options,
	prior *scale.Audit,
) (shardOutput, error) {
	var out shardOutput

	merged, err := merge.NewMerger(policy).Merge(passes)
	if err != nil {
		return out, err
	}
	if err := dedupe.AssertUnique(merged.Records, "merge"); err != nil {
		return out, err
	}
	out.review = append(out.review, merged.Review...)
	if err := ctx.Err(); err != nil {
		return out, err
	}

	parser := career.NewParser(clubs)
	parser.UseTransfers(history, inferYouth)
	parser.Annotate(merged.Records)
	out.failures = append(out.failures, parser.Failures()...)

	corrected := scale.NewCorrector(scaleOpts, prior).Apply(merged.Records)
	out.failures = append(out.failures, corrected.Failures...)
	out.corrections = corrected.Corrections
	out.review = append(out.review, corrected.Review...)

	out.records = merged.Records
	return out, nil
}

// transferIndex keys transfer histories by the canonical id their player's
// reference resolved to. Transfers of unresolved references are dropped.
func transferIndex(assigned []identity.Assignment, transfers []source.Transfer) career.TransferIndex {
	idx := career.TransferIndex{}
	if len(transfers) == 0 {
		return idx
	}
	byRef := make(map[string]player.CanonicalID, len(assigned))
	for _, a := range assigned {
		if a.Row.Reference != "" {
			byRef[a.Row.Reference] = a.ID
		}
	}
	for _, t := range transfers {
		if id, ok := byRef[t.Reference]; ok {
			idx.Add(id, career.Transfer{Date: t.Date, FromClub: t.FromClub, ToClub: t.ToClub})
		}
	}
	return idx
}

func shardOf(id player.CanonicalID, shards int) int {
	if shards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(id.String()))
	return int(h.Sum32() % uint32(shards))
}

func sortedPasses(names map[int]string) []int {
	out := make([]int, 0, len(names))
	for p := range names {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// sortLogs orders every log so the dataset does not depend on shard count.
func sortLogs(ds *player.Dataset) {
	sort.SliceStable(ds.Failures, func(i, j int) bool {
		a, b := ds.Failures[i], ds.Failures[j]
		if a.Reference != b.Reference {
			return a.Reference < b.Reference
		}
		if a.RawText != b.RawText {
			return a.RawText < b.RawText
		}
		return a.Reason < b.Reason
	})
	sort.SliceStable(ds.Corrections, func(i, j int) bool {
		a, b := ds.Corrections[i], ds.Corrections[j]
		if a.ID != b.ID {
			return a.ID.Less(b.ID)
		}
		return a.Field < b.Field
	})
	sort.SliceStable(ds.Review, func(i, j int) bool {
		a, b := ds.Review[i], ds.Review[j]
		if a.ID != b.ID {
			return a.ID.Less(b.ID)
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Detail < b.Detail
	})
}
