// Package main provides the meshgen command line tool. It generates BGP
// neighbor and global configuration for devices found in a CMDB by applying
// pattern rules to device names.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"meshgen/internal/cmdb"
	"meshgen/internal/cmdb/netbox"
	"meshgen/internal/cmdb/sqlite"
	"meshgen/internal/codec"
	"meshgen/internal/config"
	"meshgen/internal/hub"
	"meshgen/internal/mesh"
	"meshgen/internal/service"
	"meshgen/internal/storage"
	"meshgen/internal/watcher"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "meshgen",
	Short: "Generate BGP mesh configuration from CMDB topology",
	Long: `meshgen reads devices and cabling from NetBox (or a local snapshot), applies
name-pattern rules and prints the BGP global options and neighbors of every
selected device.`,
	SilenceUsage: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate <query>...",
	Short: "Generate BGP configuration for the selected devices",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <query>...",
	Short: "List the selected devices and their cabled neighbors",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNeighbors,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generated configuration over HTTP",
	Long: `Serve the mesh API. The rule file and snapshot YAML are watched and
reloaded when they change; clients can follow reloads on /api/events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	configPath   string
	snapshotPath string
	rulesPath    string
	outputFormat string
	exactHost    bool
	debug        bool
	listenAddr   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "read devices from a snapshot YAML instead of NetBox")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "rule file (overrides rules.path)")
	rootCmd.PersistentFlags().BoolVar(&exactHost, "exact", false, "match device names exactly")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	generateCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format: json, yaml or ansible-inventory")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "HTTP listen address")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is everything a command needs after configuration is resolved
type app struct {
	cfg     *config.Config
	svc     *service.MeshService
	bus     *service.EventBus
	storage *storage.Storage
	repo    *sqlite.Repository
	close   func()
}

func loadConfig() (*config.Config, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if snapshotPath != "" {
		cfg.Snapshot.YAML = snapshotPath
		if cfg.Snapshot.Database == "" {
			cfg.Snapshot.Database = ":memory:"
		}
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}
	if exactHost {
		cfg.CMDB.ExactHostFilter = true
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	log = l
	storage.SetLogger(l)
	mesh.SetLogger(l)
	service.SetLogger(l)
	netbox.SetLogger(l)
	hub.SetLogger(l)
	watcher.SetLogger(l)

	if path != "" {
		log.WithField("path", path).Debug("config loaded")
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, bus: service.NewEventBus(), close: func() {}}

	var client cmdb.Client
	if cfg.Snapshot.Enabled() {
		repo, err := sqlite.New(cfg.Snapshot.Database)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		a.repo = repo
		a.close = func() { repo.Close() }
		if cfg.Snapshot.YAML != "" {
			if err := importSnapshot(ctx, repo, cfg.Snapshot.YAML); err != nil {
				a.close()
				return nil, err
			}
		}
		client = repo
	} else {
		nb, err := netbox.NewClient(netbox.Options{
			URL:      cfg.CMDB.URL,
			Token:    cfg.CMDB.Token,
			Insecure: cfg.CMDB.Insecure,
			Timeout:  cfg.CMDB.Timeout.Duration(),
			PageSize: cfg.CMDB.PageSize,
		})
		if err != nil {
			return nil, err
		}
		client = nb
	}

	a.storage = storage.New(client, storage.Options{ExactHostFilter: cfg.CMDB.ExactHostFilter})
	a.svc, err = service.NewMeshService(a.storage, cfg.Rules.Path, a.bus)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func importSnapshot(ctx context.Context, repo *sqlite.Repository, path string) error {
	snap, err := sqlite.LoadSnapshotYAML(path)
	if err != nil {
		return err
	}
	if err := repo.Import(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot %s: %w", path, err)
	}
	log.WithField("path", path).Info("snapshot imported")
	return nil
}

// writeMetrics dumps the registry for the node exporter textfile collector
func (a *app) writeMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, prometheus.DefaultGatherer); err != nil {
		log.WithError(err).Warn("failed to write metrics textfile")
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	exporter, ok := codec.Exporters()[outputFormat]
	if !ok {
		return fmt.Errorf("unknown format %q", outputFormat)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.writeMetrics()

	docs, err := a.svc.Generate(ctx, storage.NewQuery(args...))
	if err != nil {
		return err
	}
	return exporter.Export(docs, cmd.OutOrStdout())
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	devices, err := a.svc.Devices(ctx, storage.NewQuery(args...))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range devices {
		fmt.Fprintf(out, "%s (%s %s, %s)\n", d.FQDN, d.Hardware.Vendor, d.Hardware.Model, d.Breed)
		for _, n := range d.Neighbors {
			conns, err := a.storage.SearchConnections(d, n)
			if err != nil {
				return err
			}
			for _, c := range conns {
				fmt.Fprintf(out, "  %-20s -> %s %s\n", c.Local.Name, n.FQDN, c.Remote.Name)
			}
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	w := watcher.New()
	if err := w.Add(a.cfg.Rules.Path, func() {
		if err := a.svc.ReloadRules(); err != nil {
			log.WithError(err).Error("rules rejected, keeping previous rules")
		}
	}); err != nil {
		return err
	}
	if a.repo != nil {
		if err := w.Add(a.cfg.Snapshot.YAML, func() {
			if err := importSnapshot(ctx, a.repo, a.cfg.Snapshot.YAML); err != nil {
				log.WithError(err).Error("snapshot reload failed")
				return
			}
			a.svc.RefreshInventory()
		}); err != nil {
			return err
		}
	}
	go func() {
		if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("file watcher stopped")
		}
	}()

	return serve(ctx, listenAddr, a)
}
