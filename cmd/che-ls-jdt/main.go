package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	chels "github.com/bdshadow/che-ls-jdt"
	"github.com/bdshadow/che-ls-jdt/internal/config"
	"github.com/bdshadow/che-ls-jdt/internal/server"
	"github.com/bdshadow/che-ls-jdt/internal/watch"
)

var (
	flagDB     string
	flagFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "che-ls-jdt",
	Short:         "Java file structure service",
	Long:          "che-ls-jdt indexes Java sources with tree-sitter into a SQLite database and serves nested file-structure outlines, locally or over JSON-RPC.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "index.db", "SQLite index path")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(serveCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory of Java sources",
	Long:  "Parses Java files with tree-sitter and writes their declarations and supertype edges to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	engine, err := chels.New(flagDB)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer engine.Close()

	if err := engine.IndexDirectory(context.Background(), targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", flagDB)
	return nil
}

var flagShowInherited bool

var structureCmd = &cobra.Command{
	Use:   "structure <file>",
	Short: "Print the symbol tree of an indexed Java file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStructure,
}

func init() {
	structureCmd.Flags().BoolVar(&flagShowInherited, "show-inherited", false, "merge members inherited from supertypes into each top-level type")
}

func runStructure(cmd *cobra.Command, args []string) error {
	engine, err := chels.New(flagDB)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer engine.Close()

	fileURI, err := toFileURI(args[0])
	if err != nil {
		return err
	}

	nodes, err := engine.FileStructure(context.Background(), fileURI, flagShowInherited)
	if err != nil {
		return fmt.Errorf("file structure: %w", err)
	}

	if flagFormat == "text" {
		formatTreeText(os.Stdout, nodes)
		return nil
	}
	return writeJSON(os.Stdout, nodes)
}

var flagConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extension commands over JSON-RPC on stdio",
	Long:  "Indexes the configured workspace folders, then answers workspace/executeCommand requests for the fileStructure and updateWorkspace commands over stdin/stdout.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		if cfg, err = config.Load(flagConfig); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = flagDB
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	// stdout carries the protocol; all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	engine, err := chels.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	for _, folder := range cfg.WorkspaceFolders {
		if err := engine.IndexDirectory(ctx, folder); err != nil {
			return fmt.Errorf("indexing workspace folder %s: %w", folder, err)
		}
		logger.Info("indexed workspace folder", "folder", folder)
	}

	if cfg.Watch {
		w, err := watch.New(engine, logger)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Close()
		for _, folder := range cfg.WorkspaceFolders {
			if err := w.Add(folder); err != nil {
				return fmt.Errorf("watching %s: %w", folder, err)
			}
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("watcher stopped", "err", err)
			}
		}()
	}

	logger.Info("serving on stdio", "db", cfg.DBPath)
	return server.New(engine, logger).Run(ctx, stdio{})
}

// stdio adapts the process streams to the connection interface the
// JSON-RPC stream expects.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// toFileURI accepts either a filesystem path or a file:// URI.
func toFileURI(arg string) (string, error) {
	if strings.HasPrefix(arg, "file://") {
		u, err := uri.Parse(arg)
		if err != nil {
			return "", fmt.Errorf("parsing uri %q: %w", arg, err)
		}
		return string(u), nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", arg, err)
	}
	return string(uri.File(abs)), nil
}
