// JSON endpoints over the stored expression tables. These serve downstream
// plotting tools; nothing here recomputes the pipeline.

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/njohner/Methods-in-Microbiomics/logger"
	"github.com/njohner/Methods-in-Microbiomics/pkg/expression"
	"go.uber.org/zap"
)

// List recorded pipeline runs.
func (dbctx *DBContext) RunsHandler(w http.ResponseWriter, r *http.Request) {

	runs, err := dbctx.Expr.Runs(r.Context())
	if err != nil {
		logger.Error("Listing runs failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// Expression records of one run, filtered by ko= or pair=. Exactly one of
// the two filters must be given.
func (dbctx *DBContext) ExpressionHandler(w http.ResponseWriter, r *http.Request) {

	runID := r.PathValue("run_id")
	ko := r.URL.Query().Get("ko")
	pair := r.URL.Query().Get("pair")

	var records []expression.Record
	var err error

	switch {
	case ko != "" && pair == "":
		records, err = dbctx.Expr.ExpressionByKO(r.Context(), runID, ko)
	case pair != "" && ko == "":
		records, err = dbctx.Expr.ExpressionByPair(r.Context(), runID, pair)
	default:
		http.Error(w, "need exactly one of ko= or pair=", http.StatusBadRequest)
		return
	}

	if err != nil {
		logger.Error("Expression query failed",
			zap.String("run_id", runID), zap.String("ko", ko), zap.String("pair", pair),
			zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []expression.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
