package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/eonet-explorer/internal/adapter/themestore"
	"github.com/couchcryptid/eonet-explorer/internal/app"
	"github.com/couchcryptid/eonet-explorer/internal/config"
	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/explorer"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

// cli carries what every subcommand needs once config is loaded.
type cli struct {
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "eonetctl",
		Short: "Browse NASA EONET natural events",
		Long: `eonetctl lists EONET event categories and events, resolves place names
for coordinates, manages the explorer theme, and runs the explorer service.
Settings come from the same environment variables as the service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := "warn"
			if c.verbose {
				level = cfg.LogLevel
			}
			c.cfg = cfg
			c.logger = observability.NewCLILogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at LOG_LEVEL instead of warn")

	root.AddCommand(
		c.categoriesCmd(),
		c.eventsCmd(),
		c.locateCmd(),
		c.themeCmd(),
		c.serveCmd(),
	)
	return root
}

// newExplorer builds an explorer for one-shot commands. Its metrics go to a
// private registry that nothing scrapes.
func (c *cli) newExplorer(themes explorer.ThemeStore) *explorer.Explorer {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	return explorer.New(explorer.Options{
		Catalog:      app.Catalog(c.cfg, metrics, c.logger),
		Geocoder:     app.Geocoder(c.cfg, metrics, c.logger),
		Themes:       themes,
		DefaultLimit: c.cfg.EventLimit,
		DefaultTheme: c.cfg.ThemeDefault,
		Logger:       c.logger,
		Metrics:      metrics,
	})
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the supported event categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			x := c.newExplorer(nil)
			s := x.NewSession("cli")
			if err := x.ListCategories(cmd.Context(), s); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tLINK")
			for _, cat := range s.View().Categories {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cat.ID, cat.Title, cat.Link)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var (
		start, end string
		limit      int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "events <category title>",
		Short: "List events of a category with their coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x := c.newExplorer(nil)
			s := x.NewSession("cli")
			if err := x.ListCategories(cmd.Context(), s); err != nil {
				return err
			}
			cat, ok := findCategory(s.View().Categories, args[0])
			if !ok {
				return fmt.Errorf("unknown category %q", args[0])
			}

			err := x.SelectCategory(cmd.Context(), s, explorer.Selection{
				Title: cat.Title,
				Link:  cat.Link,
				Start: start,
				End:   end,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			view := s.View()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view.Layers)
			}
			if len(view.Markers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TITLE\tLAT, LNG\tSOURCE")
			for _, m := range view.Markers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Properties.Message, m.Properties.CoordinatesLabel, m.Properties.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Earliest event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Latest event date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of events (default EVENT_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print layers as JSON")
	return cmd
}

func findCategory(categories []explorer.CategoryView, name string) (domain.Category, bool) {
	for _, cat := range categories {
		if strings.EqualFold(cat.Title, name) || strings.EqualFold(cat.ID, name) {
			return cat.Category, true
		}
	}
	return domain.Category{}, false
}

func (c *cli) locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <lng> <lat>",
		Short: "Resolve the place name at a coordinate pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lng, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[0])
			}
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[1])
			}

			metrics := observability.NewMetricsWith(prometheus.NewRegistry())
			geocoder := app.Geocoder(c.cfg, metrics, c.logger)
			if geocoder == nil {
				return errors.New("reverse geocoding is disabled; set MAPBOX_TOKEN")
			}
			result, err := geocoder.ReverseGeocode(cmd.Context(), lat, lng)
			if err != nil {
				return err
			}
			if result.FormattedAddress == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No place found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.FormattedAddress)
			return nil
		},
	}
}

func (c *cli) themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [color]",
		Short: "Show or set the explorer theme colour",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := themestore.NewFileStore(c.cfg.ThemeFile)
			if len(args) == 0 {
				color, ok, err := store.LoadTheme()
				if err != nil {
					return err
				}
				if !ok {
					color = c.cfg.ThemeDefault
				}
				fmt.Fprintln(cmd.OutOrStdout(), domain.ThemeDeclaration(color))
				return nil
			}

			decl, err := c.newExplorer(store).ApplyTheme(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), decl)
			return nil
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the explorer HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := observability.NewLogger(c.cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, c.cfg, logger, observability.NewMetrics())
		},
	}
}
