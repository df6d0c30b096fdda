package db

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/njohner/Methods-in-Microbiomics/pkg/expression"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *ExprDB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own empty in-memory database
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	edb, err := NewExprDB(sqldb)
	require.NoError(t, err)
	return edb
}

func testRecords() []expression.Record {
	pair1 := profile.SamplePair{Metag: "MG_1", Metat: "MT_1"}
	pair2 := profile.SamplePair{Metag: "MG_2", Metat: "MT_2"}
	return []expression.Record{
		{KO: "K01887", Pair: pair1, GeneAbundance: 10, TranscriptAbundance: 30, Expression: 3},
		{KO: "K01887", Pair: pair2, GeneAbundance: 4, TranscriptAbundance: 2, Expression: 0.5},
		{KO: "K01889", Pair: pair1, GeneAbundance: 0, TranscriptAbundance: 5, Expression: math.Inf(1)},
	}
}

func TestRecordRunAndQueries(t *testing.T) {

	edb := testDB(t)
	ctx := context.Background()

	run := Run{
		RunID:        "run-1",
		StartedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		MatrixPath:   "gene_counts.tsv.gz",
		MetadataPath: "sample_metadata.csv",
	}
	require.NoError(t, edb.RecordRun(ctx, run, testRecords()))

	runs, err := edb.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-1", runs[0].RunID)
	require.Equal(t, 3, runs[0].Records)

	byKO, err := edb.ExpressionByKO(ctx, "run-1", "K01887")
	require.NoError(t, err)
	require.Len(t, byKO, 2)
	require.Equal(t, 3.0, byKO[0].Expression)
	require.Equal(t, 0.5, byKO[1].Expression)

	byPair, err := edb.ExpressionByPair(ctx, "run-1", "MG_1:MT_1")
	require.NoError(t, err)
	require.Len(t, byPair, 2)
}

func TestNonFiniteExpressionSurvivesStorage(t *testing.T) {

	edb := testDB(t)
	ctx := context.Background()

	run := Run{RunID: "run-1", StartedAt: time.Now(), MatrixPath: "m", MetadataPath: "md"}
	require.NoError(t, edb.RecordRun(ctx, run, testRecords()))

	recs, err := edb.ExpressionByKO(ctx, "run-1", "K01889")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Stored as NULL, read back as the flagged non-finite value.
	require.True(t, math.IsInf(recs[0].Expression, 1))
	require.False(t, recs[0].Finite())
}

func TestDuplicateRunRejected(t *testing.T) {

	edb := testDB(t)
	ctx := context.Background()

	run := Run{RunID: "run-1", StartedAt: time.Now(), MatrixPath: "m", MetadataPath: "md"}
	require.NoError(t, edb.RecordRun(ctx, run, nil))
	require.Error(t, edb.RecordRun(ctx, run, nil))
}
