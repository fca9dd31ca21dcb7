package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var registerCmd = &cobra.Command{
	Use:   "register [student-id] [photo-path]",
	Short: "Register student faces into the index",
	Long: `Register student faces into the local vector index.

Single photo:
  face-attendance register alice photos/alice.jpg

Batch mode registers every image in a directory; the file name without
extension becomes the student id (diacritics removed, lowercased):
  face-attendance register --dir photos/class-4b/`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("dir", "", "Directory of photos to register in batch")
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// registerOne detects the largest face in the photo and adds it to the
// index under the student id.
func registerOne(ctx context.Context, client *embedder.Client, idx *faceindex.Index, vectorLog handlers.VectorLog, studentID, path string) error {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	faces, err := client.DetectFaces(ctx, imageData)
	if err != nil {
		return fmt.Errorf("detecting face in %s: %w", path, err)
	}

	face, ok := embedder.LargestFace(faces)
	if !ok {
		return fmt.Errorf("detecting face in %s: %w", path, embedder.ErrNoFaceDetected)
	}

	if err := idx.Add([][]float32{face.Embedding}, []string{studentID}); err != nil {
		return fmt.Errorf("indexing face for %s: %w", studentID, err)
	}
	if vectorLog != nil {
		if err := vectorLog.Save(ctx, studentID, face.Embedding); err != nil {
			fmt.Printf("Warning: vector log write failed for %s: %v\n", studentID, err)
		}
	}
	return nil
}

// studentIDFromFilename derives a student id from a photo file name,
// e.g. "Jiří Novák.jpg" -> "jiri novak".
func studentIDFromFilename(path string) string {
	base := filepath.Base(path)
	return roster.NormalizeName(strings.TrimSuffix(base, filepath.Ext(base)))
}

func runRegisterBatch(ctx context.Context, client *embedder.Client, idx *faceindex.Index, vectorLog handlers.VectorLog, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var photos []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		photos = append(photos, filepath.Join(dir, e.Name()))
	}
	if len(photos) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Registering"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var failed []string
	for _, photo := range photos {
		studentID := studentIDFromFilename(photo)
		if err := registerOne(ctx, client, idx, vectorLog, studentID, photo); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", photo, err))
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if len(failed) > 0 {
		fmt.Printf("%d of %d photos failed:\n", len(failed), len(photos))
		for _, f := range failed {
			fmt.Printf("  %s\n", f)
		}
	}
	fmt.Printf("Face index now holds %d vectors\n", idx.Count())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	idx, err := faceindex.New(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("failed to load face index: %w", err)
	}

	var vectorLog handlers.VectorLog
	if cfg.Database.URL != "" {
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()
		vectorLog = postgres.NewFaceVectorRepository(pool)
	}

	client := embedder.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)

	dir := mustGetString(cmd, "dir")
	if dir != "" {
		if len(args) != 0 {
			return errors.New("--dir cannot be combined with positional arguments")
		}
		return runRegisterBatch(ctx, client, idx, vectorLog, dir)
	}

	if len(args) != 2 {
		return errors.New("expected: register <student-id> <photo-path> (or --dir <folder>)")
	}

	if err := registerOne(ctx, client, idx, vectorLog, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Registered face for %s (%d vectors total)\n", args[0], idx.Count())
	return nil
}
