package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"docchat/internal/adapter/chunker"
	"docchat/internal/adapter/loader"
	"docchat/internal/usecase"
)

var (
	ingestCollection string
	ingestChunkSize  int
	ingestOverlap    int
	ingestBatchSize  int
	ingestWorkers    int
	ingestIncludes   []string
	ingestExcludes   []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index a directory of documentation pages",
	Long: `Load documentation pages from a directory, split them into chunks,
embed the chunks and write them to the vector index. Re-running over the
same directory is safe: chunk IDs are deterministic and writes are upserts.

Examples:
  docchat ingest ./docs
  docchat ingest ./docs --chunk-size 800 --overlap 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "index collection name (default from config)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "chunk overlap in characters (default from config)")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "embedding batch size (default from config)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent embedding workers")
	ingestCmd.Flags().StringSliceVar(&ingestIncludes, "include", nil, "glob patterns to include (default html, md, txt)")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns to exclude")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	if ingestCollection != "" {
		cfg.Index.Collection = ingestCollection
	}

	size := cfg.Chunking.Size
	if ingestChunkSize > 0 {
		size = ingestChunkSize
	}
	overlap := cfg.Chunking.Overlap
	if ingestOverlap >= 0 {
		overlap = ingestOverlap
	}
	chk, err := chunker.NewWindowChunker(size, overlap)
	if err != nil {
		return fmt.Errorf("invalid chunking parameters: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ctx := cmd.Context()
	index, closeIndex, err := newIndex(ctx, cfg, embedder.Dimension())
	if err != nil {
		return err
	}
	defer closeIndex()

	fmt.Printf("Loading documents from %s...\n", path)
	docs, err := loader.NewDirLoader(ingestIncludes, ingestExcludes).Load(path)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	fmt.Printf("Loaded %d documents.\n", len(docs))

	batchSize := cfg.Embedding.BatchSize
	if ingestBatchSize > 0 {
		batchSize = ingestBatchSize
	}
	pipeline := usecase.NewIngestPipeline(chk, embedder, index, batchSize, ingestWorkers)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var initialized bool

	progress := func(processed, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}
		bar.Set(processed)
	}

	report, err := pipeline.Ingest(ctx, docs, progress)
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents processed: %d\n", report.DocumentsProcessed)
	fmt.Printf("  Chunks written:      %d\n", report.ChunksWritten)
	fmt.Printf("  Chunks failed:       %d\n", report.ChunksFailed)

	if count, err := index.Count(ctx); err == nil {
		fmt.Printf("  Index size:          %d\n", count)
	}

	if report.ChunksFailed > 0 {
		fmt.Printf("\nFailed chunk IDs:\n")
		for _, id := range report.FailedChunkIDs {
			fmt.Printf("  - %s\n", id)
		}
		return fmt.Errorf("%d chunks failed; re-run ingest to retry them", report.ChunksFailed)
	}
	return nil
}
