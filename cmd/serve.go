package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/dedup"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Face Attendance web server.
The server exposes the teacher API (sessions, summaries, registration)
and the websocket camera stream that performs live recognition.

Set DATABASE_URL to persist sessions and records in PostgreSQL;
without it everything is kept in memory. Set ROSTER_DATABASE_URL to
read students and teachers from the school system's MariaDB.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildStores wires the PostgreSQL backend when DATABASE_URL is set,
// falling back to in-memory stores otherwise.
func buildStores(cfg *config.Config) (attendance.Store, handlers.VectorLog, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set, using in-memory stores (records are lost on restart)")
		return attendance.NewMemoryStore(), nil, func() {}, nil
	}

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return postgres.NewAttendanceStore(pool), postgres.NewFaceVectorRepository(pool), func() { _ = pool.Close() }, nil
}

// buildRoster connects to the school system's MariaDB when configured.
func buildRoster(cfg *config.Config) (roster.Roster, func(), error) {
	if cfg.Roster.DatabaseURL == "" {
		fmt.Println("ROSTER_DATABASE_URL not set, using an empty in-memory roster")
		return roster.NewMemoryRoster(), func() {}, nil
	}

	pool, err := mariadb.NewPool(cfg.Roster.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to roster database: %w", err)
	}
	return mariadb.NewRoster(pool), func() { _ = pool.Close() }, nil
}

// rebuildIndex refills an empty index from the durable vector log, used
// when the snapshot file was lost but PostgreSQL still has the vectors.
func rebuildIndex(ctx context.Context, idx *faceindex.Index, vectorLog handlers.VectorLog) {
	repo, ok := vectorLog.(*postgres.FaceVectorRepository)
	if !ok || idx.Count() > 0 {
		return
	}

	vectors, err := repo.LoadAll(ctx)
	if err != nil {
		fmt.Printf("Warning: could not load face vectors from database: %v\n", err)
		return
	}
	if len(vectors) == 0 {
		return
	}

	embeddings := make([][]float32, len(vectors))
	ids := make([]string, len(vectors))
	for i, v := range vectors {
		embeddings[i] = v.Embedding
		ids[i] = v.StudentID
	}
	if err := idx.Add(embeddings, ids); err != nil {
		fmt.Printf("Warning: could not rebuild face index: %v\n", err)
		return
	}
	fmt.Printf("Rebuilt face index from database (%d vectors)\n", len(vectors))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	if d := cfg.Thresholds.Recognition.Dimension; d != faceindex.Dimension {
		return fmt.Errorf("unsupported embedding dimension %d, the face index stores %d", d, faceindex.Dimension)
	}

	if cfg.Index.Path != "" {
		fmt.Printf("Loading face index from %s...\n", cfg.Index.Path)
	} else {
		fmt.Println("FACE_INDEX_PATH not set, face index is in-memory only")
	}
	idx, err := faceindex.New(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("failed to load face index: %w", err)
	}

	store, vectorLog, closeStore, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if vectorLog != nil {
		rebuildIndex(ctx, idx, vectorLog)
	}
	fmt.Printf("Face index ready with %d vectors\n", idx.Count())

	schoolRoster, closeRoster, err := buildRoster(cfg)
	if err != nil {
		return err
	}
	defer closeRoster()

	manager, err := attendance.NewManager(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	detector := embedder.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)
	cache := dedup.New(cfg.Thresholds.Dedup.Capacity, time.Duration(cfg.Thresholds.Dedup.FlushIntervalSeconds)*time.Second)
	framePipeline := pipeline.New(
		detector,
		faceindex.NewResolver(idx, cfg.Thresholds.Recognition.SearchK),
		cache,
		manager,
		schoolRoster,
		cfg.Thresholds.Recognition.MarkThreshold,
	)

	statsCtx, cancelStats := context.WithCancel(ctx)
	defer cancelStats()
	go framePipeline.LogStats(statsCtx)

	server := web.NewServer(cfg, web.Dependencies{
		Index:     idx,
		Detector:  detector,
		Pipeline:  framePipeline,
		Manager:   manager,
		Cache:     cache,
		Roster:    schoolRoster,
		VectorLog: vectorLog,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if err := idx.Save(); err != nil {
			fmt.Printf("Warning: failed to save face index: %v\n", err)
		} else if cfg.Index.Path != "" {
			fmt.Println("Face index saved to disk")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
