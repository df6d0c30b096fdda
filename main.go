// Command-line entry point for the metagenomics/metatranscriptomics
// gene-expression pipeline: load the count matrix and sample metadata,
// normalise by gene length and by per-sample marker-gene medians, combine
// paired samples into per-KO expression levels, then write the tables and
// record the run in SQLite. With -serve the recorded results are exposed
// over a small JSON API for plotting tools.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/njohner/Methods-in-Microbiomics/internal/util"
	"github.com/njohner/Methods-in-Microbiomics/logger"
	exprdb "github.com/njohner/Methods-in-Microbiomics/pkg/db"
	"github.com/njohner/Methods-in-Microbiomics/pkg/expression"
	"github.com/njohner/Methods-in-Microbiomics/pkg/handler"
	"github.com/njohner/Methods-in-Microbiomics/pkg/middle"
	"github.com/njohner/Methods-in-Microbiomics/pkg/norm"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"
)

func main() {

	VERSION := "0.1.0"
	LOG_LEVEL := zapcore.InfoLevel

	if err := logger.Init(LOG_LEVEL); err != nil {
		panic(err)
	}

	// Try load env
	dotenvErr := godotenv.Load()

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	defer logger.Sync() // Make sure that the buffered is flushed.

	dataDir := os.Getenv("MICROBIOMICS_DATA")
	if dataDir == "" {
		logger.Warn("No local environment (MICROBIOMICS_DATA), using default value (./data)")
		dataDir = "./data"
	}
	if !util.DirExists(dataDir) {
		logger.Warn("Data directory does not exist", zap.String("dir", dataDir))
	}

	var (
		countsPath   = flag.String("counts", path.Join(dataDir, "gene_counts.tsv.gz"), "tab-separated gene count matrix, optionally gzipped")
		metadataPath = flag.String("metadata", path.Join(dataDir, "sample_metadata.csv"), "comma-separated sample metadata")
		outDir       = flag.String("outdir", path.Join(dataDir, "out"), "directory for the normalised and combined tables")
		dbPath       = flag.String("db", envOr("MICROBIOMICS_DB", path.Join(dataDir, "expression.db")), "sqlite database for recorded runs")
		markersPath  = flag.String("markers", "", "file with one marker KO per line, overriding the built-in set")
		serve        = flag.Bool("serve", false, "serve recorded results over HTTP after the run")
		addr         = flag.String("addr", "0.0.0.0:8080", "listen address for -serve")
		skipRun      = flag.Bool("no-run", false, "skip the pipeline and only serve recorded results")
	)
	flag.Parse()

	logger.Info("Start:", zap.String("Version", VERSION))

	sqldb, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		logger.Fatal("Cannot open database", zap.String("db", *dbPath), zap.Error(err))
	}
	defer sqldb.Close()

	edb, err := exprdb.NewExprDB(sqldb)
	if err != nil {
		logger.Fatal("Cannot initialise database", zap.String("db", *dbPath), zap.Error(err))
	}

	if !*skipRun {
		markers := norm.DefaultMarkers
		if *markersPath != "" {
			markers, err = loadMarkers(*markersPath)
			if err != nil {
				logger.Fatal("Cannot load marker set", zap.Error(err))
			}
			logger.Info("Using marker set from file",
				zap.String("path", *markersPath),
				zap.Strings("kos", markers.KOs()))
		}

		if err := runPipeline(edb, *countsPath, *metadataPath, *outDir, markers); err != nil {
			logger.Fatal("Pipeline failed", zap.Error(err))
		}
	}

	if *serve {
		dbctx := &handler.DBContext{Expr: edb}
		mux := NewRouter(dbctx)
		wrapped := middle.LoggingMiddleware(logger.L())(mux)

		logger.Info("Server starting", zap.String("addr", *addr))
		if err := http.ListenAndServe(*addr, wrapped); err != nil {
			logger.Error("Error starting server:", zap.String("error message", err.Error()))
		}
	}
}

func runPipeline(edb *exprdb.ExprDB, countsPath, metadataPath, outDir string, markers norm.MarkerSet) error {

	started := time.Now()

	counts, err := profile.LoadMatrix(countsPath)
	if err != nil {
		return fmt.Errorf("load counts: %w", err)
	}
	logger.Info("Loaded count matrix",
		zap.String("path", countsPath),
		zap.Int("genes", len(counts.Genes)),
		zap.Int("samples", len(counts.Samples)))

	metadata, err := profile.LoadMetadata(metadataPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	logger.Info("Loaded sample metadata",
		zap.String("path", metadataPath),
		zap.Int("pairs", len(metadata.Records)))

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	byLength, err := norm.Lengths(counts)
	if err != nil {
		return fmt.Errorf("length normalisation: %w", err)
	}
	if err := profile.SaveMatrix(path.Join(outDir, "length_normalised.tsv"), byLength); err != nil {
		return err
	}

	perCell, err := norm.Markers(byLength, markers)
	if err != nil {
		return fmt.Errorf("marker normalisation: %w", err)
	}
	if err := profile.SaveMatrix(path.Join(outDir, "per_cell.tsv"), perCell); err != nil {
		return err
	}

	aggregated := expression.AggregateKO(perCell)
	records := expression.Combine(aggregated, metadata.Pairs())
	logger.Info("Combined expression",
		zap.Int("kos", len(aggregated.Genes)),
		zap.Int("records", len(records)))

	if err := expression.SaveTable(path.Join(outDir, "expression.tsv"), records); err != nil {
		return err
	}

	for _, s := range expression.Summarize(records) {
		logger.Info("Sample pair summary",
			zap.String("pair", s.Pair.Name()),
			zap.Int("records", s.Records),
			zap.Int("finite", s.Finite),
			zap.Float64("median_expression", s.MedianExpression),
			zap.Float64("log_correlation", s.LogCorrelation))
	}

	run := exprdb.Run{
		RunID:        uuid.New().String(),
		StartedAt:    started,
		MatrixPath:   countsPath,
		MetadataPath: metadataPath,
	}
	if err := edb.RecordRun(context.Background(), run, records); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	logger.Info("Recorded run", zap.String("run_id", run.RunID))

	return nil
}

// Move to router.go in the next iteration
func NewRouter(dbctx *handler.DBContext) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", handler.HealthCheck)
	mux.HandleFunc("GET /api/v1/runs", dbctx.RunsHandler)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/expression", dbctx.ExpressionHandler)

	return mux
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadMarkers reads a replacement marker set, one KO per line.
func loadMarkers(path string) (norm.MarkerSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var kos []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			kos = append(kos, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(kos) == 0 {
		return nil, fmt.Errorf("marker file %s is empty", path)
	}

	return norm.NewMarkerSet(kos...), nil
}
