/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package commands

import (
	"fmt"
	"os"

	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the discovered netspeed export files",
	Long: `List every netspeed export the service can see: the current file, the
numbered rotations and any dated backups, with their creation dates and
line counts.

Discovery uses the same environment configuration as 'netspeed serve', so
the listing shows exactly what the service would index.

Examples:
  # List all discovered exports
  netspeed files

  # Point discovery somewhere else
  NETSPEED_CURRENT_DIR=/mnt/export netspeed files`,
	RunE: runFiles,
}

func init() {
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := InitLogger(cfg.LogLevel, cfg.LogFile)

	resolver := files.NewResolver(logger, cfg.Roots())
	svc := files.NewService(logger, resolver, normalize.New(logger, normalize.Options{}))

	fmt.Println("\n========================================")
	fmt.Println("   Netspeed - Export Files")
	fmt.Println("========================================")

	entries, err := svc.List()
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error listing files: %v\n", err)
	case len(entries) == 0:
		fmt.Println("\nNo netspeed files found.")
		fmt.Printf("\nSearched under: %v\n", cfg.Roots())
	default:
		fmt.Print(files.FormatEntriesTable(entries))

		if info, err := svc.CurrentInfo(); err == nil {
			fmt.Println("\nCurrent export:")
			fmt.Printf("  Date:          %s\n", info.Date)
			fmt.Printf("  Lines:         %d\n", info.LineCount)
			fmt.Printf("  Last modified: %s\n", info.LastModified)
			if info.UsingFallback {
				fmt.Printf("  Fallback:      %s (no current file present)\n", info.FallbackFile)
			}
		}
	}

	fmt.Println("\nNotes:")
	fmt.Println("  - The file marked * is served as the current export")
	fmt.Println("  - Dates come from the file name for backups, from mtime otherwise")
	fmt.Println()

	return nil
}
