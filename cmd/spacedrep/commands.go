package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/spacedrep/internal/config"
	"github.com/conorfennell/spacedrep/internal/mcpserver"
	"github.com/conorfennell/spacedrep/internal/web"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spacedrep",
		Short:         "Spaced repetition flashcards scheduled with FSRS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newHTTPCmd(), newSourceCmd(), newSyncCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the card tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			slog.Info("Starting MCP server", "db", a.cfg.DB)
			return mcpserver.Serve(mcpserver.New(a.cards, a.syncer))
		},
	}
}

func newHTTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "http",
		Short: "Serve the JSON API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           web.NewServer(a.cards, a.syncer),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				slog.Info("Starting HTTP server", "addr", a.cfg.HTTPAddr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newSourceCmd() *cobra.Command {
	source := &cobra.Command{
		Use:   "source",
		Short: "Manage deck sources",
	}

	var syncNow bool
	add := &cobra.Command{
		Use:   "add <path/or/url.git>",
		Short: "Register a local directory or git repository of markdown decks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.syncer.AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", src.Type, src.ID, src.Path)
			if !syncNow {
				return nil
			}
			res, err := a.syncer.SyncSource(cmd.Context(), *src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new cards, removed %d\n", res.Inserted, res.Removed)
			return nil
		},
	}
	add.Flags().BoolVar(&syncNow, "sync", false, "Sync the source right away")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.syncer.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tPATH\tLAST SCANNED")
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned != nil {
					scanned = s.LastScanned.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
			}
			return tw.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a source and the cards imported from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID %q", args[0])
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.syncer.RemoveSource(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed source %d\n", id)
			return nil
		},
	}

	source.AddCommand(add, list, remove)
	return source
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import new cards from every source and drop removed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.syncer.RunSync(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d parsed, %d new, %d removed, %d errors\n",
					r.Path, r.Parsed, r.Inserted, r.Removed, len(r.Errors))
			}
			return nil
		},
	}
}
