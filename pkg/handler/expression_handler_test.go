package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	exprdb "github.com/njohner/Methods-in-Microbiomics/pkg/db"
	"github.com/njohner/Methods-in-Microbiomics/pkg/expression"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own empty in-memory database
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	edb, err := exprdb.NewExprDB(sqldb)
	require.NoError(t, err)

	run := exprdb.Run{RunID: "run-1", StartedAt: time.Now(), MatrixPath: "m", MetadataPath: "md"}
	records := []expression.Record{
		{KO: "K01887", Pair: profile.SamplePair{Metag: "MG_1", Metat: "MT_1"},
			GeneAbundance: 10, TranscriptAbundance: 30, Expression: 3},
		{KO: "K01889", Pair: profile.SamplePair{Metag: "MG_1", Metat: "MT_1"},
			GeneAbundance: 0, TranscriptAbundance: 5, Expression: math.Inf(1)},
	}
	require.NoError(t, edb.RecordRun(context.Background(), run, records))

	dbctx := &DBContext{Expr: edb}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", HealthCheck)
	mux.HandleFunc("GET /api/v1/runs", dbctx.RunsHandler)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/expression", dbctx.ExpressionHandler)
	return mux
}

func TestHealthCheck(t *testing.T) {

	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Health)
}

func TestRunsHandler(t *testing.T) {

	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var runs []exprdb.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "run-1", runs[0].RunID)
}

func TestExpressionHandlerByKO(t *testing.T) {

	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/runs/run-1/expression?ko=K01889", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "MG_1:MT_1", records[0]["sample_pair"])
	require.Nil(t, records[0]["expression"], "non-finite expression must serialise as null")
}

func TestExpressionHandlerByPair(t *testing.T) {

	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/runs/run-1/expression?pair=MG_1:MT_1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
}

func TestExpressionHandlerRequiresOneFilter(t *testing.T) {

	mux := testMux(t)

	for _, target := range []string{
		"/api/v1/runs/run-1/expression",
		"/api/v1/runs/run-1/expression?ko=K01887&pair=MG_1:MT_1",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestExpressionHandlerUnknownKO(t *testing.T) {

	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/runs/run-1/expression?ko=K99999", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
