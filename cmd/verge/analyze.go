package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"verge/internal/diagfmt"
	"verge/internal/driver"
	"verge/internal/dump"
	"verge/internal/observ"
)

var (
	analyzeJSON     bool
	analyzeTimings  bool
	analyzeNoCache  bool
	analyzeCacheDir string
	analyzeWidth    int
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit machine-readable JSON")
	analyzeCmd.Flags().BoolVar(&analyzeTimings, "timings", false, "show phase timings")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "recompute everything, skip the result cache")
	analyzeCmd.Flags().StringVar(&analyzeCacheDir, "cache-dir", "", "result cache directory (default: user cache)")
	analyzeCmd.Flags().IntVar(&analyzeWidth, "width", 0, "cap table columns at this width (0 = unlimited)")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dump>",
	Short: "Compute accessibility and replay permission transfers for a dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		colorMode, _ := cmd.Flags().GetString("color")
		configureColor(colorMode)

		dumpPath := args[0]

		// A verge.toml near the dump supplies defaults; explicit flags win.
		manifest, haveManifest, err := loadProjectManifest(filepath.Dir(dumpPath))
		if err != nil {
			return err
		}
		jobs, _ := cmd.Flags().GetInt("jobs")
		maxDiag, _ := cmd.Flags().GetInt("max-diagnostics")
		if haveManifest {
			mc := manifest.Config.Analyze
			if !cmd.Flags().Changed("jobs") && mc.Jobs > 0 {
				jobs = mc.Jobs
			}
			if !cmd.Flags().Changed("width") && mc.Width > 0 {
				analyzeWidth = mc.Width
			}
			if !cmd.Flags().Changed("cache-dir") && mc.CacheDir != "" {
				analyzeCacheDir = mc.CacheDir
				if !filepath.IsAbs(analyzeCacheDir) {
					analyzeCacheDir = filepath.Join(manifest.Root, analyzeCacheDir)
				}
			}
			if !cmd.Flags().Changed("no-cache") && mc.NoCache {
				analyzeNoCache = true
			}
		}

		f, err := os.Open(dumpPath)
		if err != nil {
			return err
		}
		defer f.Close()
		file, err := dump.Decode(f)
		if err != nil {
			return err
		}

		var cache *driver.DiskCache
		if !analyzeNoCache {
			if analyzeCacheDir != "" {
				cache, err = driver.OpenDiskCacheAt(analyzeCacheDir)
			} else {
				cache, err = driver.OpenDiskCache("verge")
			}
			if err != nil {
				return fmt.Errorf("failed to open result cache: %w", err)
			}
		}

		timer := observ.NewTimer()
		results, err := driver.AnalyzeFile(cmd.Context(), file, driver.Options{
			Jobs:           jobs,
			MaxDiagnostics: maxDiag,
			Cache:          cache,
			Timer:          timer,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		if analyzeJSON {
			payloads := make([]diagfmt.ProcJSON, len(results))
			for i, res := range results {
				payloads[i] = diagfmt.ProcPayload(res.Proc, res.Cached, res.Access, res.HasAccess, res.Bag)
				if res.Bag.HasErrors() {
					failed++
				}
			}
			if err := diagfmt.WriteJSON(out, payloads); err != nil {
				return err
			}
		} else {
			opts := diagfmt.PrettyOpts{Width: analyzeWidth}
			for _, res := range results {
				if res.HasAccess {
					if err := diagfmt.WriteAccessibility(out, res.Proc, res.Access, opts); err != nil {
						return err
					}
				}
				if res.Bag.Len() > 0 {
					if err := diagfmt.WriteDiagnostics(out, res.Bag, opts); err != nil {
						return err
					}
				}
				if res.Bag.HasErrors() {
					failed++
				}
			}
		}

		if analyzeTimings {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d procedures failed", failed, len(results))
		}
		return nil
	},
}
