// Package main provides the vectordb CLI entry point.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/vectordb/internal/filter"
	"github.com/orneryd/vectordb/internal/index"
	"github.com/orneryd/vectordb/internal/server"
	"github.com/orneryd/vectordb/internal/store"
	"github.com/orneryd/vectordb/internal/vector"
)

var version = "0.1.0"

// Global flags, shared across subcommands (§6).
var (
	flagIndexKind string
	flagDataDir   string
	flagMetric    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vectordb",
		Short: "vectordb - an embeddable vector database",
		Long: `vectordb stores fixed-dimension vectors keyed by string IDs,
augments them with metadata, and answers k-nearest-neighbor queries
under a chosen distance metric with optional metadata filtering.`,
	}
	rootCmd.PersistentFlags().StringVar(&flagIndexKind, "index", "flat", "index kind: flat or hnsw")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (enables persistence)")
	rootCmd.PersistentFlags().StringVar(&flagMetric, "metric", "euclidean", "distance metric: euclidean, cosine, or dot")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vectordb v%s\n", version)
		},
	})

	insertCmd := &cobra.Command{
		Use:   "insert <id> <vector-json> [metadata-json]",
		Short: "Insert or overwrite a vector",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runInsert,
	}
	rootCmd.AddCommand(insertCmd)

	searchCmd := &cobra.Command{
		Use:   "search <vector-json> <k> [filter-json]",
		Short: "Search for the k nearest neighbors of a vector",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runSearch,
	}
	rootCmd.AddCommand(searchCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a vector by ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	rootCmd.AddCommand(deleteCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored IDs",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	rootCmd.AddCommand(listCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vectordb HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error onto the CLI's exit code convention (§6):
// 0 success, 1 user error, 2 internal error. cliUserError marks the first
// kind directly; a *store.Error also counts as user error when its Kind
// reflects bad input rather than an engine/IO failure.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := err.(*cliUserError); ok {
		return 1
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch storeErr.Kind {
		case store.KindDimensionMismatch, store.KindInvalidVector, store.KindInvalidFilter,
			store.KindInvalidParameter, store.KindNotFound:
			return 1
		}
	}
	return 2
}

// cliUserError marks an error as caused by bad CLI input rather than an
// internal failure, so exitCodeFor can distinguish exit code 1 from 2.
type cliUserError struct{ err error }

func (e *cliUserError) Error() string { return e.err.Error() }
func (e *cliUserError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return &cliUserError{err: fmt.Errorf(format, args...)}
}

func openStore() (*store.Store, error) {
	metric, err := vector.ParseMetric(flagMetric)
	if err != nil {
		return nil, userErrorf("%v", err)
	}

	opts := store.Options{Metric: metric, SnapshotEvery: 1000}
	switch flagIndexKind {
	case "flat":
		opts.IndexKind = store.IndexFlat
	case "hnsw":
		opts.IndexKind = store.IndexHNSW
		opts.HNSW = index.DefaultConfig()
	default:
		return nil, userErrorf("unknown index kind %q", flagIndexKind)
	}
	opts.DataDir = flagDataDir

	s, err := store.Open(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func runInsert(cmd *cobra.Command, args []string) error {
	id := args[0]
	var v []float32
	if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
		return userErrorf("invalid vector JSON: %v", err)
	}
	var metadata map[string]any
	if len(args) == 3 {
		if err := json.Unmarshal([]byte(args[2]), &metadata); err != nil {
			return userErrorf("invalid metadata JSON: %v", err)
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Insert(id, v, metadata); err != nil {
		return err
	}
	fmt.Printf("inserted %q\n", id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	var v []float32
	if err := json.Unmarshal([]byte(args[0]), &v); err != nil {
		return userErrorf("invalid vector JSON: %v", err)
	}

	var k int
	if _, err := fmt.Sscanf(args[1], "%d", &k); err != nil {
		return userErrorf("invalid k: %v", err)
	}

	var f *filter.Filter
	if len(args) == 3 {
		var parsed filter.Filter
		if err := json.Unmarshal([]byte(args[2]), &parsed); err != nil {
			return userErrorf("invalid filter JSON: %v", err)
		}
		f = &parsed
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.Search(v, k, f, 0)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func runDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %q\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s.List())
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(s, server.Config{Addr: addr})
	fmt.Printf("vectordb v%s serving on %s (index=%s metric=%s)\n", version, addr, flagIndexKind, flagMetric)
	return srv.Start()
}
