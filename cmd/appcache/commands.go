package main

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/FyshOS/appcache"
)

func newTopCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "top N",
		Short: "List the N most used applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("N must be a positive number, got %q", args[0])
			}

			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			start := time.Now()
			apps, err := cache.ReadTop(n)
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			elapsed := time.Since(start)

			printApps(apps)
			fmt.Printf("read_ms\t%d\n", elapsed.Milliseconds())

			if refresh {
				start = time.Now()
				if err := cache.Refresh(); err != nil {
					return fmt.Errorf("refresh cache: %w", err)
				}
				fmt.Printf("update_ms\t%d\n", time.Since(start).Milliseconds())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the cache afterwards and report how long it took")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload installed applications, keeping usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			start := time.Now()
			if err := cache.Refresh(); err != nil {
				return fmt.Errorf("refresh cache: %w", err)
			}
			fmt.Printf("update_ms\t%d\n", time.Since(start).Milliseconds())
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search PATTERN",
		Short: "List applications whose title matches PATTERN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			found := appcache.Match(cache.Load(), args[0])
			if limit > 0 && len(found) > limit {
				found = found[:limit]
			}
			printApps(found)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results, 0 for all")
	return cmd
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch APPID",
		Short: "Launch an application and count its use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			for _, app := range cache.Load() {
				if app.ID == args[0] {
					return appcache.LaunchAndRecord(appcache.ExecLauncher{}, cache, app)
				}
			}
			return fmt.Errorf("no application with id %q", args[0])
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cfg.CacheDir()
			if err != nil {
				return err
			}
			if err := appcache.DeleteCacheDir(dir); err != nil {
				return fmt.Errorf("delete %s: %w", dir, err)
			}
			fmt.Println("removed", dir)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(versionString())
		},
	}
}

func printApps(apps []appcache.App) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "title\tusage\ticon\tsize\ticon_path")
	for _, app := range apps {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", app.Title, app.ExecCount, iconKind(app.Handle), iconSize(app.Handle), iconPath(app.Icon))
	}
	w.Flush()
}

func iconKind(h appcache.IconHandle) string {
	switch h.Kind {
	case appcache.IconRaster:
		return "raster"
	case appcache.IconVector:
		return "vector"
	case appcache.IconFallback:
		return "fallback"
	}
	return "-"
}

func iconSize(h appcache.IconHandle) string {
	switch {
	case h.Kind == appcache.IconFallback:
		return "-"
	case h.Image != nil:
		if img, ok := h.Image.(*image.NRGBA); ok {
			return humanize.Bytes(uint64(len(img.Pix)))
		}
	case h.Resource != nil:
		return humanize.Bytes(uint64(len(h.Resource.Content())))
	}
	return "-"
}

func iconPath(icon appcache.IconPath) string {
	switch icon.State {
	case appcache.IconResolved:
		return icon.Path
	case appcache.IconKnownAbsent:
		return "(none)"
	}
	return "-"
}
