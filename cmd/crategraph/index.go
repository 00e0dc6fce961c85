package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/pipeline"
	"github.com/josephleblanc/crategraph/internal/store"
	"github.com/josephleblanc/crategraph/internal/watcher"
)

func runPipeline(ctx context.Context, flags *rootFlags) (*pipeline.Result, error) {
	return pipeline.Run(ctx, pipeline.Options{
		ProjectRoot: flags.projectRoot,
		CratePaths:  flags.crates,
		IgnoreFile:  flags.ignoreFile,
		Workers:     flags.workers,
	})
}

func newIndexCmd(flags *rootFlags) *cobra.Command {
	var dbPath, project string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the graph and persist it to SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := runPipeline(ctx, flags)
			if err != nil {
				return err
			}
			reportParseErrors(cmd, res)

			if project == "" {
				project = projectName(flags.projectRoot)
			}
			s, err := openStore(dbPath, project)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SaveSnapshot(ctx, project, res.Discovery, res.Graph, res.Resolution.Unresolved); err != nil {
				return err
			}
			cmd.Printf("indexed %d files: %d nodes, %d relations, %d types, %d unresolved\n",
				res.Stats.Files, res.Stats.Nodes, res.Stats.Relations, res.Stats.Types, res.Stats.Unresolved)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default: per-project cache file)")
	cmd.Flags().StringVar(&project, "project", "", "project name (default: root directory name)")
	return cmd
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var dbPath, project string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the graph, then keep it updated as files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := runPipeline(ctx, flags)
			if err != nil {
				return err
			}
			reportParseErrors(cmd, res)

			if project == "" {
				project = projectName(flags.projectRoot)
			}
			s, err := openStore(dbPath, project)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SaveSnapshot(ctx, project, res.Discovery, res.Graph, res.Resolution.Unresolved); err != nil {
				return err
			}
			cmd.Printf("indexed %d files, watching for changes\n", res.Stats.Files)

			w := watcher.New(res.Discovery, func(ctx context.Context, changes *graph.ChangeSet) error {
				next, delta, err := pipeline.Rerun(ctx, res, changes, pipeline.Options{
					Workers: flags.workers,
				})
				if err != nil {
					return err
				}
				res = next
				reportParseErrors(cmd, res)
				return s.ApplyDelta(ctx, project, res.Discovery, delta, res.Resolution.Unresolved)
			})
			w.Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default: per-project cache file)")
	cmd.Flags().StringVar(&project, "project", "", "project name (default: root directory name)")
	return cmd
}

func openStore(dbPath, project string) (*store.Store, error) {
	if dbPath != "" {
		return store.OpenPath(dbPath)
	}
	return store.Open(project)
}

func reportParseErrors(cmd *cobra.Command, res *pipeline.Result) {
	for _, fe := range res.ParseErrors {
		fmt.Fprintln(cmd.ErrOrStderr(), "parse error:", fe.Error())
	}
}
