package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/INLOpen/factstore/config"
	"github.com/INLOpen/factstore/core"
	"github.com/INLOpen/factstore/segment"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Define command-line flags
	filePath := flag.String("file", "", "Path to a single segment file to inspect")
	dirPath := flag.String("dir", "", "Store directory to inspect (used with -table)")
	tableName := flag.String("table", "", "Table name whose segment files should be inspected")
	configPath := flag.String("config", "", "Path to a factstore config file supplying shape defaults")
	measureCount := flag.Int("measures", 0, "Number of measure columns per blocklet (0 = from config)")
	keyLength := flag.Int("key-length", 0, "Fixed key width in bytes (0 = from config)")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	logOutput := flag.String("log-output", "stdout", "Log output (stdout, file, none)")
	logFile := flag.String("log-file", "segment-inspect.log", "Path to log file if output is 'file'")
	flag.Parse()

	// Validate required flags
	if *filePath == "" && *dirPath == "" {
		fmt.Println("Usage: segment-inspect -file <segment_file> | -dir <store_dir> [-table <name>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// --- Logger Setup ---
	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		fmt.Printf("Invalid log level: %s. Defaulting to info.\n", *logLevel)
		level = slog.LevelInfo
	}

	var output io.Writer = os.Stdout
	switch strings.ToLower(*logOutput) {
	case "stdout":
		// Already set
	case "file":
		file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			slog.Error("Failed to open log file", "path", *logFile, "error", err)
			os.Exit(1)
		}
		defer file.Close()
		output = file
	case "none":
		output = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))

	// Flags win over the config file; the config file wins over built-in
	// defaults.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	measures := *measureCount
	if measures == 0 {
		measures = cfg.Store.MeasureCount
	}
	keyLen := *keyLength
	if keyLen == 0 {
		keyLen = cfg.Store.KeyLength
	}
	table := *tableName
	if table == "" {
		table = cfg.Store.TableName
	}

	if err := run(*filePath, *dirPath, table, cfg.Store.FileExtension, measures, keyLen, logger); err != nil {
		logger.Error("Inspection failed", "error", err)
		os.Exit(1)
	}
}

func run(filePath, dirPath, table, ext string, measures, keyLen int, logger *slog.Logger) error {
	if filePath != "" {
		return inspectFile(filePath, measures, keyLen)
	}
	return inspectDir(dirPath, table, ext, measures, keyLen, logger)
}

// inspectDir decodes every finalized segment file of a table in parallel and
// prints them in sequence order. In-progress files are listed but not
// decoded; their footer may not be on disk yet.
func inspectDir(dirPath, table, ext string, measures, keyLen int, logger *slog.Logger) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read store directory %s: %w", dirPath, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, table) || !strings.Contains(name, ext) {
			continue
		}
		if strings.HasSuffix(name, core.InProgressMarker) {
			fmt.Printf("Skipping in-progress file: %s\n", name)
			continue
		}
		paths = append(paths, filepath.Join(dirPath, name))
	}
	if len(paths) == 0 {
		fmt.Printf("No segment files for table %q found in %s\n", table, dirPath)
		return nil
	}

	// Files are independent, so decode them concurrently and order the
	// output afterwards.
	type result struct {
		path      string
		sequence  uint32
		blocklets []core.BlockletInfo
		footer    uint64
		size      int64
	}

	var mu sync.Mutex
	results := make([]result, 0, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			seq, err := core.ParseFileSequence(filepath.Base(path))
			if err != nil {
				logger.Warn("Skipping file without a sequence number", "file", path, "error", err)
				return nil
			}
			r, err := segment.OpenReader(path, measures, keyLen)
			if err != nil {
				return err
			}
			defer r.Close()

			fi, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}

			mu.Lock()
			results = append(results, result{
				path:      path,
				sequence:  seq,
				blocklets: r.Blocklets(),
				footer:    r.FooterStart(),
				size:      fi.Size(),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].sequence < results[j].sequence })

	var totalBlocklets int
	var totalBytes int64
	for _, res := range results {
		printSegment(res.path, res.size, res.footer, res.blocklets)
		totalBlocklets += len(res.blocklets)
		totalBytes += res.size
	}
	fmt.Printf("Total: %d files, %d blocklets, %d bytes\n", len(results), totalBlocklets, totalBytes)
	return nil
}

func inspectFile(path string, measures, keyLen int) error {
	r, err := segment.OpenReader(path, measures, keyLen)
	if err != nil {
		return err
	}
	defer r.Close()

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	printSegment(path, fi.Size(), r.FooterStart(), r.Blocklets())
	return nil
}

func printSegment(path string, size int64, footerStart uint64, blocklets []core.BlockletInfo) {
	fmt.Printf("Segment: %s\n", path)
	fmt.Printf("  size:         %d bytes\n", size)
	fmt.Printf("  footer start: %d\n", footerStart)
	fmt.Printf("  blocklets:    %d\n", len(blocklets))
	for i, info := range blocklets {
		fmt.Printf("  [%d] rows=%d keys=[%x..%x] key_offset=%d key_len=%d\n",
			i, info.RowCount, info.StartKey, info.EndKey, info.KeyOffset, info.KeyLength)
		for m := range info.MeasureOffsets {
			fmt.Printf("      measure[%d] offset=%d len=%d\n", m, info.MeasureOffsets[m], info.MeasureLengths[m])
		}
	}
}
