package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"citymemory/application/commands"
	"citymemory/domain/core/entities"
	"citymemory/infrastructure/di"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema and check connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := c.Store.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("store not reachable: %w", err)
		}
		info := c.Store.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "store ready: %s (persistent=%t)\n", info.Type, info.IsPersistent)
		return nil
	},
}

var (
	exportUser string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one user's memories as an export file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		requester, err := lookupIdentity(cmd, c, exportUser)
		if err != nil {
			return err
		}
		envelope, err := c.MemoryService.ExportAll(cmd.Context(), requester)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"success": true, "data": envelope})
	},
}

var (
	importUser string
	importFile string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace one user's memories with the contents of an export file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := readInput(cmd, importFile)
		if err != nil {
			return err
		}
		payload, err := parseImportFile(raw)
		if err != nil {
			return err
		}

		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		requester, err := lookupIdentity(cmd, c, importUser)
		if err != nil {
			return err
		}
		result, err := c.MemoryService.ImportAll(cmd.Context(), requester, payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d memories for %s (%d skipped)\n", result.Count, importUser, result.Skipped)
		return nil
	},
}

var statsUser string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print theme, emotion and monthly counts for one user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		requester, err := lookupIdentity(cmd, c, statsUser)
		if err != nil {
			return err
		}
		stats, err := c.MemoryService.Stats(cmd.Context(), requester)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "Username to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("user")

	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "Username to import into")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "-", "Export file to read (- for stdin)")
	_ = importCmd.MarkFlagRequired("user")

	statsCmd.Flags().StringVarP(&statsUser, "user", "u", "", "Username to summarize")
	_ = statsCmd.MarkFlagRequired("user")
}

// lookupIdentity acts on behalf of an existing account
func lookupIdentity(cmd *cobra.Command, c *di.Container, username string) (*entities.Identity, error) {
	user, err := c.Store.Users().GetByUsername(cmd.Context(), username)
	if err != nil {
		return nil, fmt.Errorf("look up user %q: %w", username, err)
	}
	return &entities.Identity{UserID: user.ID(), Username: user.Username(), Email: user.Email()}, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

// parseImportFile accepts both the API response shape {"data": {...}} and a
// bare export envelope
func parseImportFile(raw []byte) (commands.ImportCommand, error) {
	var cmd commands.ImportCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, fmt.Errorf("parse import file: %w", err)
	}
	if len(cmd.Data.Memories) > 0 {
		return cmd, nil
	}
	var bare struct {
		Memories json.RawMessage `json:"memories"`
	}
	if err := json.Unmarshal(raw, &bare); err != nil {
		return cmd, fmt.Errorf("parse import file: %w", err)
	}
	cmd.Data.Memories = bare.Memories
	return cmd, nil
}
