package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/app"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/atomicfile"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/nativelog"
)

type cliState struct {
	configPath string
	verbose    bool
	jsonOut    bool
	timeout    time.Duration
	comps      *app.Components
}

func newRootCmd() *cobra.Command {
	st := &cliState{}
	root := &cobra.Command{
		Use:           "optinctl",
		Short:         "Operate the Silksong newsletter stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			comps, err := app.Build(cfg, nativelog.NewConsoleLogger(st.verbose))
			if err != nil {
				return err
			}
			st.comps = comps
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if st.comps != nil {
				st.comps.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&st.configPath, "config", "c", config.DefaultConfigPath, "Path to YAML config file")
	root.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&st.jsonOut, "json", false, "Print JSON instead of text")
	root.PersistentFlags().DurationVar(&st.timeout, "timeout", time.Minute, "Operation timeout")

	root.AddCommand(
		st.sweepCmd(),
		st.statsCmd(),
		st.pendingCmd(),
		st.subscribersCmd(),
		st.confirmCmd(),
		st.backupCmd(),
	)
	return root
}

func (st *cliState) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), st.timeout)
}

func (st *cliState) print(w io.Writer, v interface{}, text string) error {
	if st.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (st *cliState) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired pending tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			removed, err := st.comps.Newsletter.Sweep(ctx)
			if err != nil {
				return err
			}
			return st.print(cmd.OutOrStdout(), map[string]int{"removed": removed},
				fmt.Sprintf("removed %d expired token(s)", removed))
		},
	}
}

func (st *cliState) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show subscriber and pending counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			stats, err := st.comps.Newsletter.Stats(ctx)
			if err != nil {
				return err
			}
			return st.print(cmd.OutOrStdout(), stats,
				fmt.Sprintf("subscribers: %d\npending:     %d", stats.Subscribers, stats.Pending))
		},
	}
}

func (st *cliState) pendingCmd() *cobra.Command {
	pending := &cobra.Command{
		Use:   "pending",
		Short: "Inspect pending confirmation tokens",
	}
	pending.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending tokens (addresses are hashed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			items, err := st.comps.Newsletter.Pending(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if st.jsonOut {
				return st.print(out, items, "")
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOKEN\tEMAIL_HASH\tCREATED\tEXPIRES")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Token, it.EmailHash,
					optin.FormatTimestamp(it.Created), optin.FormatTimestamp(it.ExpiresAt))
			}
			return tw.Flush()
		},
	}, &cobra.Command{
		Use:   "rm <token>",
		Short: "Withdraw a pending token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			if err := st.comps.Newsletter.RemovePending(ctx, args[0]); err != nil {
				return err
			}
			return st.print(cmd.OutOrStdout(), map[string]string{"removed": args[0]}, "removed "+args[0])
		},
	})
	return pending
}

func (st *cliState) subscribersCmd() *cobra.Command {
	subs := &cobra.Command{
		Use:   "subscribers",
		Short: "Work with the confirmed subscriber list",
	}
	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the list as CSV (email,subscribed_at)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			list, err := st.comps.Newsletter.Subscribers(ctx)
			if err != nil {
				return err
			}
			data, err := optin.EncodeCSV(list)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := atomicfile.WriteFile(outPath, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d subscriber(s) to %s\n", len(list), outPath)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	subs.AddCommand(export)
	return subs
}

func (st *cliState) confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token>",
		Short: "Confirm a pending token on a visitor's behalf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			res, err := st.comps.Newsletter.Confirm(ctx, args[0])
			if err != nil {
				return err
			}
			return st.print(cmd.OutOrStdout(), map[string]string{"message": res.Message}, res.Message)
		},
	}
}

func (st *cliState) backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Export the subscriber list into the backups directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := st.ctx(cmd)
			defer cancel()
			res, err := st.comps.Backup.Run(ctx)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("wrote %s (%d subscriber(s))", res.Filename, res.Count)
			if res.Location != "" {
				text += ", uploaded to " + res.Location
			}
			return st.print(cmd.OutOrStdout(), res, text)
		},
	}
}
