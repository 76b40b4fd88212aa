package scale

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-canon/internal/player"
)

func record(id int64, fields map[player.Field]string) player.PlayerRecord {
	return player.NewRecord(player.NumericID(id), player.SourceRow{
		Source:    "bulk",
		Reference: "/x/profil/spieler/" + strconv.FormatInt(id, 10),
		Fields:    fields,
	})
}

func TestApplyDividesSuspectValues(t *testing.T) {
	records := []player.PlayerRecord{
		record(1, map[player.Field]string{player.FieldMarketValue: "25000000"}),
		record(2, map[player.Field]string{player.FieldMarketValue: "€500k", player.FieldLatestFee: "1000000.0"}),
		record(3, map[player.Field]string{player.FieldMarketValue: "999999"}),
	}

	out := NewCorrector(DefaultOptions(), nil).Apply(records)

	assert.Equal(t, "250000", records[0].Get(player.FieldMarketValue))
	assert.Equal(t, "bulk", records[0].Fields[player.FieldMarketValue].Source)
	assert.Equal(t, "500000", records[1].Get(player.FieldMarketValue))
	assert.Equal(t, "10000", records[1].Get(player.FieldLatestFee))
	assert.Equal(t, "999999", records[2].Get(player.FieldMarketValue))

	require.Len(t, out.Corrections, 2)
	c := out.Corrections[0]
	assert.Equal(t, player.NumericID(1), c.ID)
	assert.Equal(t, player.FieldMarketValue, c.Field)
	assert.True(t, c.Original.Equal(decimal.NewFromInt(25_000_000)))
	assert.True(t, c.Corrected.Equal(decimal.NewFromInt(250_000)))
	assert.Equal(t, player.ActionDivided, c.Action)
	assert.Empty(t, out.Failures)
	assert.Empty(t, out.Review)
}

func TestApplyIsIdempotentWithinARun(t *testing.T) {
	records := []player.PlayerRecord{
		record(1, map[player.Field]string{player.FieldMarketValue: "25000000"}),
		record(2, map[player.Field]string{player.FieldMarketValue: "250000000"}),
	}
	c := NewCorrector(DefaultOptions(), nil)

	first := c.Apply(records)
	assert.Equal(t, "250000", records[0].Get(player.FieldMarketValue))
	assert.Equal(t, "2500000", records[1].Get(player.FieldMarketValue))
	require.Len(t, first.Review, 1)
	assert.Equal(t, player.ReviewScaleStillHigh, first.Review[0].Kind)
	assert.Equal(t, player.NumericID(2), first.Review[0].ID)

	second := c.Apply(records)
	assert.Equal(t, "250000", records[0].Get(player.FieldMarketValue))
	assert.Equal(t, "2500000", records[1].Get(player.FieldMarketValue), "a still-high value must not be divided again")
	require.Len(t, second.Corrections, 2)
	for _, corr := range second.Corrections {
		assert.Equal(t, player.ActionAlreadyCorrected, corr.Action)
	}
	assert.True(t, second.Corrections[1].Original.Equal(decimal.NewFromInt(250_000_000)))
	assert.Empty(t, second.Review)
}

func TestApplyHonorsPriorAudit(t *testing.T) {
	prior := NewAudit([]player.Correction{
		{
			ID:        player.NumericID(7),
			Field:     player.FieldMarketValue,
			Original:  decimal.NewFromInt(300_000_000),
			Corrected: decimal.NewFromInt(3_000_000),
			Action:    player.ActionDivided,
		},
		{
			ID:        player.NumericID(8),
			Field:     player.FieldMarketValue,
			Original:  decimal.NewFromInt(5_000_000),
			Corrected: decimal.NewFromInt(5_000_000),
			Action:    player.ActionAlreadyCorrected,
		},
	})
	records := []player.PlayerRecord{
		record(7, map[player.Field]string{player.FieldMarketValue: "3000000"}),
		record(8, map[player.Field]string{player.FieldMarketValue: "5000000"}),
	}

	out := NewCorrector(DefaultOptions(), prior).Apply(records)

	assert.Equal(t, "3000000", records[0].Get(player.FieldMarketValue))
	assert.Equal(t, "5000000", records[1].Get(player.FieldMarketValue), "already_corrected entries protect the value too")
	require.Len(t, out.Corrections, 2)
	for _, corr := range out.Corrections {
		assert.Equal(t, player.ActionAlreadyCorrected, corr.Action)
	}
	assert.True(t, out.Corrections[0].Original.Equal(decimal.NewFromInt(300_000_000)))
	assert.True(t, out.Corrections[1].Original.Equal(decimal.NewFromInt(5_000_000)))
}

func TestApplyAcrossChainedRuns(t *testing.T) {
	// Each run reads the previous run's output and audit, the way the
	// default prior-audit path chains runs in one output directory.
	value := "18000000000"
	var audit []player.Correction
	for run := 1; run <= 4; run++ {
		records := []player.PlayerRecord{record(9, map[player.Field]string{player.FieldMarketValue: value})}

		out := NewCorrector(DefaultOptions(), NewAudit(audit)).Apply(records)

		value = records[0].Get(player.FieldMarketValue)
		assert.Equal(t, "180000000", value, "run %d", run)
		require.Len(t, out.Corrections, 1, "run %d", run)
		want := player.ActionAlreadyCorrected
		if run == 1 {
			want = player.ActionDivided
		}
		assert.Equal(t, want, out.Corrections[0].Action, "run %d", run)
		assert.True(t, out.Corrections[0].Original.Equal(decimal.NewFromInt(18_000_000_000)), "run %d", run)
		audit = out.Corrections
	}
}

func TestApplyNormalizesDisplayStringsWithoutDividing(t *testing.T) {
	records := []player.PlayerRecord{
		record(10, map[player.Field]string{player.FieldLatestFee: "€24.00m", player.FieldMarketValue: "$1.2bn"}),
		record(11, map[player.Field]string{player.FieldLatestFee: "€750k"}),
	}

	out := NewCorrector(DefaultOptions(), nil).Apply(records)

	assert.Equal(t, "24000000", records[0].Get(player.FieldLatestFee))
	assert.Equal(t, "1200000000", records[0].Get(player.FieldMarketValue))
	assert.Equal(t, "750000", records[1].Get(player.FieldLatestFee))
	require.Len(t, out.Corrections, 2)
	for _, corr := range out.Corrections {
		assert.Equal(t, player.ActionNormalized, corr.Action)
		assert.True(t, corr.Original.Equal(corr.Corrected))
	}
	assert.Empty(t, out.Review)

	// The rewritten plain value must survive the next run untouched.
	again := NewCorrector(DefaultOptions(), NewAudit(out.Corrections)).Apply(records)
	assert.Equal(t, "24000000", records[0].Get(player.FieldLatestFee))
	assert.Equal(t, "1200000000", records[0].Get(player.FieldMarketValue))
	require.Len(t, again.Corrections, 2)
	for _, corr := range again.Corrections {
		assert.Equal(t, player.ActionAlreadyCorrected, corr.Action)
	}
}

func TestApplyNewValueAfterPriorCorrectionIsDivided(t *testing.T) {
	prior := NewAudit([]player.Correction{{
		ID:        player.NumericID(7),
		Field:     player.FieldMarketValue,
		Original:  decimal.NewFromInt(300_000_000),
		Corrected: decimal.NewFromInt(3_000_000),
		Action:    player.ActionDivided,
	}})
	records := []player.PlayerRecord{record(7, map[player.Field]string{player.FieldMarketValue: "400000000"})}

	out := NewCorrector(DefaultOptions(), prior).Apply(records)

	assert.Equal(t, "4000000", records[0].Get(player.FieldMarketValue))
	require.Len(t, out.Corrections, 1)
	assert.Equal(t, player.ActionDivided, out.Corrections[0].Action)
}

func TestApplyLogsUnparseableValues(t *testing.T) {
	records := []player.PlayerRecord{record(4, map[player.Field]string{player.FieldMarketValue: "-"})}

	out := NewCorrector(DefaultOptions(), nil).Apply(records)

	assert.Equal(t, "-", records[0].Get(player.FieldMarketValue))
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "/x/profil/spieler/4", out.Failures[0].Reference)
	assert.Equal(t, "-", out.Failures[0].RawText)
	assert.Contains(t, out.Failures[0].Reason, "market_value")
	assert.Empty(t, out.Corrections)
}

func TestApplyCustomThreshold(t *testing.T) {
	opts := Options{
		Fields:    []player.Field{player.FieldLatestFee},
		Threshold: decimal.NewFromInt(500),
		Factor:    decimal.NewFromInt(10),
	}
	records := []player.PlayerRecord{record(5, map[player.Field]string{
		player.FieldLatestFee:   "1000",
		player.FieldMarketValue: "90000000",
	})}

	out := NewCorrector(opts, nil).Apply(records)

	assert.Equal(t, "100", records[0].Get(player.FieldLatestFee))
	assert.Equal(t, "90000000", records[0].Get(player.FieldMarketValue), "fields outside the set are untouched")
	require.Len(t, out.Corrections, 1)
}
