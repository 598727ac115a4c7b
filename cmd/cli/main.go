package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/himanishpuri/tunebot/internal/app"
	"github.com/himanishpuri/tunebot/internal/config"
	"github.com/himanishpuri/tunebot/internal/extractor"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/spf13/cobra"
)

var errOffline = errors.New("extraction tool not loaded for this command")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tunebot",
		Short:        "Operate the song catalog, interaction cache and fetcher",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("data", "", "Directory holding the corpora and cache (default DATA_PATH)")
	cmd.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR (default LOG_LEVEL)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCandidatesCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newCachedCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newRebuildIndexCmd())
	return cmd
}

// openService builds the service from the environment and persistent flags.
// Commands that never touch the extraction tool skip locating it.
func openService(cmd *cobra.Command, needsExtractor bool) (*app.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data"); dir != "" {
		cfg.DataPath = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	lcfg := logger.DefaultConfig()
	lcfg.Level = logger.ParseLevel(cfg.LogLevel)
	lcfg.Output = os.Stderr
	lcfg.ErrorFile = cfg.LogFilePath()

	opts := []app.Option{app.WithLogger(logger.New(lcfg))}
	if !needsExtractor {
		opts = append(opts, app.WithExtractor(extractor.Unavailable{Err: errOffline}))
	}
	return app.New(cmd.Context(), cfg, opts...)
}

// withService opens the service, runs fn and closes it.
func withService(cmd *cobra.Command, needsExtractor bool, fn func(ctx context.Context, svc *app.Service) error) error {
	svc, err := openService(cmd, needsExtractor)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(cmd.Context(), svc)
}

func corpusFlag(cmd *cobra.Command) (models.Corpus, error) {
	raw, _ := cmd.Flags().GetString("corpus")
	return models.ParseCorpus(raw)
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search both corpora",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				matches, err := svc.Search(ctx, args[0])
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CORPUS\tID\tCACHED\tPERFORMER\tTITLE")
				for _, m := range matches {
					fmt.Fprintf(w, "%s\t%d\t%v\t%s\t%s\n", m.Corpus, m.SongID, m.IsCached, m.Performer, m.Title)
				}
				return w.Flush()
			})
		},
	}
}

func newCandidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <query>",
		Short: "List what the extraction tool finds for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, true, func(ctx context.Context, svc *app.Service) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDURATION\tTITLE")
				for _, c := range svc.Candidates(ctx, args[0]) {
					fmt.Fprintf(w, "%s\t%.0fs\t%s\n", c.ExternalID, c.Duration, c.Title)
				}
				return w.Flush()
			})
		},
	}
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <query|url>",
		Short: "Download one song and record it in the interaction cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			requester, _ := cmd.Flags().GetInt64("requester")
			return withService(cmd, true, func(ctx context.Context, svc *app.Service) error {
				got, err := svc.Fetch(ctx, args[0], requester, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s - %s\n", got.Meta.Artist, got.Meta.Title)
				fmt.Fprintf(cmd.OutOrStdout(), "   Session: %s\n", got.Key)
				fmt.Fprintf(cmd.OutOrStdout(), "   Saved:   %s\n", got.SavedPath)
				return nil
			})
		},
	}
	cmd.Flags().String("out", ".", "Directory the audio file is saved to")
	cmd.Flags().Int64("requester", 0, "Requester id stored with the session")
	return cmd
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Add a song to a corpus unless it is a duplicate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := corpusFlag(cmd)
			if err != nil {
				return err
			}
			fileID, _ := cmd.Flags().GetString("file-id")
			uniqueID, _ := cmd.Flags().GetString("unique-id")
			title, _ := cmd.Flags().GetString("title")
			performer, _ := cmd.Flags().GetString("performer")
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				outcome := svc.Index(ctx, corpus, fileID, uniqueID, title, performer)
				fmt.Fprintln(cmd.OutOrStdout(), outcome)
				if outcome == models.IndexError {
					return fmt.Errorf("indexing failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().String("corpus", string(models.CorpusChannel), "channel or chat")
	cmd.Flags().String("file-id", "", "Transport file id")
	cmd.Flags().String("unique-id", "", "Transport file-unique id")
	cmd.Flags().String("title", "", "Song title")
	cmd.Flags().String("performer", "", "Performer")
	_ = cmd.MarkFlagRequired("file-id")
	_ = cmd.MarkFlagRequired("unique-id")
	return cmd
}

func songIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid song ID %q", arg)
	}
	return id, nil
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a song and its search index entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := corpusFlag(cmd)
			if err != nil {
				return err
			}
			id, err := songIDArg(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				if err := svc.Remove(ctx, corpus, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s song %d\n", corpus, id)
				return nil
			})
		},
	}
	cmd.Flags().String("corpus", string(models.CorpusChannel), "channel or chat")
	return cmd
}

func newCachedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cached <id> <true|false>",
		Short: "Set whether the transport can still serve a song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := corpusFlag(cmd)
			if err != nil {
				return err
			}
			id, err := songIDArg(args[0])
			if err != nil {
				return err
			}
			cached, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				return svc.SetCached(ctx, corpus, id, cached)
			})
		},
	}
	cmd.Flags().String("corpus", string(models.CorpusChannel), "channel or chat")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired interaction cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				n, err := svc.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", n)
				return nil
			})
		},
	}
}

func newRebuildIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild-index",
		Short: "Rebuild a corpus's full-text index from its songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := corpusFlag(cmd)
			if err != nil {
				return err
			}
			return withService(cmd, false, func(ctx context.Context, svc *app.Service) error {
				n, err := svc.RebuildIndex(ctx, corpus)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d songs in %s\n", n, corpus)
				return nil
			})
		},
	}
	cmd.Flags().String("corpus", string(models.CorpusChannel), "channel or chat")
	return cmd
}
