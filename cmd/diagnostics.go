// file: cmd/diagnostics.go
// version: 2.0.0
// guid: c8f6a0d4-2a8b-48cf-9d08-02cc9915d9fc

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/jdfalk/music-catalog/internal/metadata"
	"github.com/spf13/cobra"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Diagnostics and maintenance commands",
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List catalog records",
	Long: `List songs from the catalog. With --raw (Pebble only) the underlying
keys are dumped instead, optionally restricted to a key prefix such as "song:".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		prefix, _ := cmd.Flags().GetString("prefix")
		raw, _ := cmd.Flags().GetBool("raw")
		return runDiagnosticsQuery(cmd, limit, prefix, raw)
	},
}

var cleanupArtifactsCmd = &cobra.Command{
	Use:   "cleanup-artifacts",
	Short: "Remove temporary extraction files left by interrupted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		force, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runCleanupArtifacts(cmd, olderThan, force, dryRun)
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
	diagnosticsCmd.AddCommand(queryCmd)
	diagnosticsCmd.AddCommand(cleanupArtifactsCmd)

	queryCmd.Flags().Int("limit", 20, "maximum number of records to print")
	queryCmd.Flags().String("prefix", "", "key prefix for --raw (e.g. song:)")
	queryCmd.Flags().Bool("raw", false, "dump raw Pebble keys and values")

	cleanupArtifactsCmd.Flags().Duration("older-than", time.Hour, "only remove files last modified before this age")
	cleanupArtifactsCmd.Flags().BoolP("yes", "y", false, "delete without prompting")
	cleanupArtifactsCmd.Flags().Bool("dry-run", false, "list files without deleting them")
}

func runDiagnosticsQuery(cmd *cobra.Command, limit int, prefix string, raw bool) error {
	if limit <= 0 {
		return errors.New("limit must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if raw {
		if cfg.DatabaseType != "pebble" {
			return fmt.Errorf("raw inspection is only available for Pebble databases")
		}
		store, err := database.NewPebbleStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open Pebble database: %w", err)
		}
		defer store.Close()
		return dumpPebble(out, store.DB(), limit, prefix)
	}

	store, err := openCatalog(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	songs, err := store.ListSongs(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to fetch songs: %w", err)
	}
	if len(songs) == 0 {
		fmt.Fprintln(out, "No songs found.")
		return nil
	}

	for i, song := range songs {
		if i >= limit {
			fmt.Fprintf(out, "... %d more\n", len(songs)-limit)
			break
		}
		fmt.Fprintf(out, "%2d. ID: %d\n", i+1, song.ID)
		fmt.Fprintf(out, "    Title:  %s\n", song.Title)
		fmt.Fprintf(out, "    Singer: %s\n", song.Singer)
		fmt.Fprintf(out, "    Year:   %d\n", song.Year)
		fmt.Fprintf(out, "    Song:   %s\n", song.SongURL)
		fmt.Fprintln(out, "---")
	}
	return nil
}

func dumpPebble(out io.Writer, db *pebble.DB, limit int, prefix string) error {
	iterOpts := &pebble.IterOptions{}
	if prefix != "" {
		iterOpts.LowerBound = []byte(prefix)
		iterOpts.UpperBound = append([]byte(prefix), 0xFF)
	}

	iter, err := db.NewIter(iterOpts)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for ok := iter.First(); ok && iter.Valid(); ok = iter.Next() {
		fmt.Fprintf(out, "Key: %s\n", string(iter.Key()))
		val := iter.Value()
		fmt.Fprintf(out, "Value length: %d bytes\n", len(val))
		fmt.Fprintf(out, "Value preview: %s\n", truncateString(string(val), 500))
		fmt.Fprintln(out, "---")

		count++
		if count >= limit {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if count == 0 {
		fmt.Fprintln(out, "No keys matched the requested prefix.")
	}
	return nil
}

func runCleanupArtifacts(cmd *cobra.Command, olderThan time.Duration, force, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	stale, err := metadata.StaleArtifacts(cfg.Extract.TempDir, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	if len(stale) == 0 {
		fmt.Fprintln(out, "No stale artifacts found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d stale artifacts:\n", len(stale))
	for _, path := range stale {
		fmt.Fprintf(out, "  %s\n", path)
	}

	if dryRun {
		fmt.Fprintln(out, "Dry run enabled; no files were removed.")
		return nil
	}

	if !force {
		confirmed, err := promptYesNo(out, cmd.InOrStdin(), fmt.Sprintf("Remove %d files", len(stale)))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted. No files removed.")
			return nil
		}
	}

	removed := 0
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			fmt.Fprintf(out, "Failed to remove %s: %v\n", path, err)
			continue
		}
		removed++
	}
	fmt.Fprintf(out, "Removed %d stale artifacts.\n", removed)
	return nil
}

func promptYesNo(out io.Writer, in io.Reader, action string) (bool, error) {
	fmt.Fprintf(out, "%s? Type 'yes' to confirm: ", action)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes", nil
}

func truncateString(in string, max int) string {
	if len(in) <= max {
		return in
	}
	return in[:max] + "..."
}
