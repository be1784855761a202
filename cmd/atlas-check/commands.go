package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fungiatlas/internal/blob"
	"fungiatlas/internal/config"
	"fungiatlas/internal/content"
	"fungiatlas/internal/core"
	"fungiatlas/internal/infra/logging"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	logger *logging.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "atlas-check",
		Short:         "Validate and publish fungiatlas content documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return a.fail(err)
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.LogLevel,
				Format: logging.Format(cfg.LogFormat),
				Prefix: "atlas-check",
				Output: stderr,
			})
			if err != nil {
				return a.fail(err)
			}
			a.cfg, a.logger = cfg, logger.With("command", cmd.Name())
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(a.validateCmd(), a.publishCmd(), a.imagesCmd(), a.watchCmd())
	return root
}

func (a *app) fail(err error) error {
	_, _ = fmt.Fprintf(a.stderr, "atlas-check: %v\n", err)
	return err
}

// source returns a file source for path, or the configured content source
// when path is empty.
func (a *app) source(ctx context.Context, path string) (content.Source, error) {
	if path != "" {
		return content.File{Path: path}, nil
	}
	return core.OpenContentSource(ctx, a.cfg)
}


func (a *app) validateCmd() *cobra.Command {
	var asJSON, strict bool
	cmd := &cobra.Command{
		Use:   "validate [document]",
		Short: "Load a content document and print its lint findings",
		Long: "Loads the document at the given path (or the configured content source) the same way\n" +
			"the service does and prints the findings of the content rules. With FUNGIATLAS_WATCH set\n" +
			"and no path given, the configured content files are re-validated whenever they change.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.source(ctx, firstArg(args))
			if err != nil {
				return a.fail(err)
			}
			defer func() { _ = core.CloseSource(src) }()

			report := func(ds *core.Dataset) error {
				if asJSON {
					return writeJSON(a.stdout, summarize(src.Name(), ds))
				}
				return writeSummary(a.stdout, src.Name(), ds)
			}
			svc := core.NewService(src, core.WithLogger(a.logger))
			ds, err := svc.Reload(ctx)
			if err != nil {
				return a.fail(err)
			}
			if err := report(ds); err != nil {
				return a.fail(err)
			}
			if warnings := ds.Report().Count(core.SeverityWarn); strict && warnings > 0 {
				return a.fail(fmt.Errorf("%d content warnings", warnings))
			}
			if a.cfg.Watch && len(args) == 0 {
				return a.watch(ctx, svc, a.cfg.ContentPaths(), report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any warning is reported")
	return cmd
}

// watch reloads svc whenever one of paths changes and reports every dataset
// that loads, until ctx is cancelled or the process is interrupted.
func (a *app) watch(ctx context.Context, svc *core.Service, paths []string, report func(*core.Dataset) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	watcher := core.NewContentWatcher(svc, paths,
		core.WithWatchLogger(a.logger),
		core.WithReloadHook(func(ds *core.Dataset, err error) {
			if err == nil {
				_ = report(ds)
			}
		}),
	)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return a.fail(err)
	}
	return nil
}

func (a *app) publishCmd() *cobra.Command {
	var (
		target string
		keep   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "publish <document>",
		Short: "Validate a document and publish it as a blob snapshot or into the content store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := content.File{Path: args[0]}.Fetch(ctx)
			if err != nil {
				return a.fail(err)
			}
			ds, err := core.LoadDataset(ctx, doc)
			if err != nil {
				return a.fail(fmt.Errorf("document rejected: %w", err))
			}

			switch target {
			case "blob":
				store, err := blob.Open(ctx, a.cfg.Blob)
				if err != nil {
					return a.fail(err)
				}
				snaps := blob.NewSnapshots(store,
					blob.WithSnapshotPrefix(a.cfg.Blob.SnapshotPrefix),
					blob.WithSnapshotFormat(content.Format(format)),
				)
				info, err := snaps.Publish(ctx, content.Normalize(doc))
				if err != nil {
					return a.fail(err)
				}
				a.logger.Info("snapshot published", "key", info.Key, "size", info.Size, "species", ds.Len())
				_, _ = fmt.Fprintln(a.stdout, info.Key)
				if keep > 0 {
					deleted, err := snaps.Prune(ctx, keep)
					if err != nil {
						return a.fail(err)
					}
					for _, key := range deleted {
						a.logger.Info("snapshot pruned", "key", key)
					}
				}
			case "store":
				src, err := core.OpenContentSource(ctx, a.cfg)
				if err != nil {
					return a.fail(err)
				}
				defer func() { _ = core.CloseSource(src) }()
				imported, err := core.NewService(src, core.WithLogger(a.logger)).Import(ctx, doc)
				if err != nil {
					return a.fail(err)
				}
				_, _ = fmt.Fprintf(a.stdout, "%s %s\n", src.Name(), imported.ID())
			default:
				return a.fail(fmt.Errorf("unknown publish target %q (want blob or store)", target))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "blob", "where to publish: blob or store")
	cmd.Flags().IntVar(&keep, "keep", 0, "prune all but the newest N snapshots (blob target)")
	cmd.Flags().StringVar(&format, "format", string(content.FormatYAML), "snapshot encoding: yaml or json")
	return cmd
}

func (a *app) imagesCmd() *cobra.Command {
	var upload string
	cmd := &cobra.Command{
		Use:   "images <species>",
		Short: "Upload or list the images stored for a species",
		Long: "The species may be given by id, scientific name, or synonym. Uploads are stored under\n" +
			"the canonical species id; listing shows declared images and every stored upload.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := blob.Open(ctx, a.cfg.Blob)
			if err != nil {
				return a.fail(err)
			}
			src, err := core.OpenContentSource(ctx, a.cfg)
			if err != nil {
				return a.fail(err)
			}
			defer func() { _ = core.CloseSource(src) }()
			svc := core.NewService(src, core.WithLogger(a.logger), core.WithImageResolver(blob.NewImageLinks(store, 0)))
			if _, err := svc.Reload(ctx); err != nil {
				return a.fail(err)
			}

			if upload != "" {
				f, err := os.Open(upload) // #nosec G304 -- operator supplied upload path
				if err != nil {
					return a.fail(err)
				}
				defer func() { _ = f.Close() }()
				key, err := svc.UploadSpeciesImage(ctx, args[0], filepath.Base(upload), f, contentTypeFor(upload))
				if err != nil {
					return a.fail(err)
				}
				_, _ = fmt.Fprintln(a.stdout, key)
				return nil
			}

			urls, err := svc.SpeciesImages(ctx, args[0])
			if err != nil {
				return a.fail(err)
			}
			for _, u := range urls {
				_, _ = fmt.Fprintln(a.stdout, u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&upload, "upload", "", "image file to store for the species")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <document>...",
		Short: "Re-validate documents every time they change",
		Long:  "Several documents are layered in the order given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := core.FileSource(args)
			svc := core.NewService(src, core.WithLogger(a.logger))
			report := func(ds *core.Dataset) error { return writeSummary(a.stdout, src.Name(), ds) }
			if ds, err := svc.Reload(ctx); err != nil {
				a.logger.Warn("initial load failed", "error", err)
			} else {
				_ = report(ds)
			}
			return a.watch(ctx, svc, args, report)
		},
	}
}

type summary struct {
	Source     string           `json:"source"`
	DatasetID  string           `json:"dataset_id"`
	Version    string           `json:"version,omitempty"`
	Species    int              `json:"species"`
	Edges      int              `json:"edges"`
	Features   int              `json:"features"`
	Violations []core.Violation `json:"violations,omitempty"`
}

func summarize(source string, ds *core.Dataset) summary {
	return summary{
		Source:     source,
		DatasetID:  ds.ID(),
		Version:    ds.Version(),
		Species:    ds.Len(),
		Edges:      ds.Graph().Len(),
		Features:   ds.Vocabulary().Len(),
		Violations: ds.Report().Violations,
	}
}

func writeJSON(w io.Writer, s summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func writeSummary(w io.Writer, source string, ds *core.Dataset) error {
	s := summarize(source, ds)
	if _, err := fmt.Fprintf(w, "%s: version %q, %d species, %d edges, %d features\n",
		s.Source, s.Version, s.Species, s.Edges, s.Features); err != nil {
		return err
	}
	if len(s.Violations) == 0 {
		_, err := fmt.Fprintln(w, "no findings")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range s.Violations {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Severity, v.Rule, v.EntityID, v.Message)
	}
	return tw.Flush()
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
