package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/loader"
	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/cortex/internal/usecase/query"
	"github.com/kailas-cloud/cortex/internal/watcher"
)

func newIngestCmd(c *cli) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "ingest <directory> <collection>",
		Short: "Ingest a directory into a collection",
		Long: `Load every allow-listed file under the directory, skip documents the
collection already holds, and embed and store the rest.

  cortexctl ingest ./docs handbook -d "Team handbook"`,
		Args: cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			dir, name := args[0], args[1]
			if err := c.checkDir(dir); err != nil {
				return err
			}
			if description != "" {
				if err := c.backend.EnsureCollection(cmd.Context(), name, description); err != nil {
					return err
				}
			}
			res, err := c.backend.IngestDirectory(cmd.Context(), name, dir)
			if err != nil {
				return err
			}
			printIngest(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "collection description, used when the collection is created")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections with their chunk counts",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string) error {
			rows, err := c.backend.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No collections.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCHUNKS\tDESCRIPTION\tSOURCE")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.Name, row.Count, row.Description, row.Source)
			}
			return tw.Flush()
		}),
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection and all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			if err := c.backend.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted collection %s\n", args[0])
			return nil
		}),
	}
}

func newClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>",
		Short: "Remove every chunk of a collection, keeping its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			if err := c.backend.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared collection %s\n", args[0])
			return nil
		}),
	}
}

func newQueryCmd(c *cli) *cobra.Command {
	var (
		topK    int
		sources bool
	)
	cmd := &cobra.Command{
		Use:   "query <collection> <question...>",
		Short: "Answer a question from a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			answer, err := c.backend.Query(cmd.Context(), queryuc.Request{
				Collection:     args[0],
				Text:           strings.Join(args[1:], " "),
				TopK:           topK,
				IncludeSources: sources,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if sources && len(answer.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, src := range answer.Sources {
					fmt.Fprintf(out, "  %d. %s (score %.3f)\n", i+1, src.Path, src.Score)
					fmt.Fprintf(out, "     %s\n", oneLine(chunk.Preview(src.Text, 120)))
				}
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (0 = configured default)")
	cmd.Flags().BoolVar(&sources, "sources", false, "print the retrieved sources")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <directory> <collection>",
		Short: "Ingest a directory now and again whenever its files change",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			dir, name := args[0], args[1]
			if err := loader.Check(dir); err != nil {
				return err
			}
			release, err := watcher.Claim("", name)
			if err != nil {
				return err
			}
			defer release()

			accept := loader.New(c.cfg.Ingest.Extensions, nil).Accepts
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for collection %s (Ctrl-C to stop)\n", dir, name)
			return watcher.New(dir, name, c.backend.IngestDirectory, c.logger).
				WithDebounce(debounce).
				WithFilter(accept).
				Run(cmd.Context())
		}),
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before re-ingesting")
	return cmd
}

func printIngest(out io.Writer, res ingestuc.Result) {
	if res.Ingested == 0 {
		fmt.Fprintf(out, "All documents already exist in collection %s (%d skipped, %d chunks total)\n",
			res.Collection, res.Skipped, res.TotalChunks)
		return
	}
	fmt.Fprintf(out, "Ingested %d documents into %s (%d skipped, %d chunks total)\n",
		res.Ingested, res.Collection, res.Skipped, res.TotalChunks)
}

// checkDir validates a directory that is read locally. In remote mode the
// server resolves the path and reports its own errors.
func (c *cli) checkDir(dir string) error {
	if c.server != "" {
		return nil
	}
	return loader.Check(dir)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
