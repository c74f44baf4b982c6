package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/client"
)

type rootOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(client.Config{BaseURL: o.server, Token: o.token, Timeout: o.timeout})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "stickerctl",
		Short:        "Generate and order stickers from the command line",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("STICKERGEN_SERVER", "http://localhost:8080"), "API server address")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("STICKERGEN_TOKEN"), "session token")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")

	cmd.AddCommand(
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newOrderCmd(opts),
		newDownloadCmd(opts),
		newTokenCmd(),
	)
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Queue a sticker generation job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			jobID, err := c.Submit(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job queued: %s\n", jobID)

			if !wait {
				return nil
			}
			return watch(cmd, c, jobID, interval)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Poll a job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, opts.client(), args[0], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}

func newOrderCmd(opts *rootOptions) *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "order <job-id>",
		Short: "Order printed stickers of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().PlaceOrder(cmd.Context(), args[0], quantity)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nPartner order: %s\nTotal: $%.2f\n",
				res.Message, res.PrintPartnerOrderID, res.TotalCost)
			return nil
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of stickers")
	return cmd
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Save a finished job's image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			st, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st.Status != "complete" || st.ResultURL == nil {
				return fmt.Errorf("job %s is %s, nothing to download", args[0], st.Status)
			}

			if output == "" {
				output = fmt.Sprintf("sticker-%s%s", args[0], path.Ext(*st.ResultURL))
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := c.Download(cmd.Context(), *st.ResultURL, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default sticker-<job-id>.<ext>)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var userID, secret, issuer string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or AUTH_JWT_SECRET is required")
			}
			token, err := middleware.NewAuthenticator(secret, issuer).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local-dev", "user id placed in the token subject")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("AUTH_ISSUER"), "token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func watch(cmd *cobra.Command, c *client.Client, jobID string, interval time.Duration) error {
	out := cmd.OutOrStdout()
	last := ""

	final, err := client.NewPoller(c, interval).Run(cmd.Context(), jobID, func(st *client.JobStatus) {
		if st.Status != last {
			renderStatus(out, st)
			last = st.Status
		}
	})
	if err != nil {
		return err
	}
	if final.Status == "error" {
		if final.Prompt != "" {
			fmt.Fprintf(out, "Try again with: stickerctl submit %s\n", strconv.Quote(final.Prompt))
		}
		return errors.New("job failed")
	}
	return nil
}

func renderStatus(w io.Writer, st *client.JobStatus) {
	switch st.Status {
	case "complete":
		fmt.Fprintf(w, "complete: %s\n", deref(st.ResultURL))
	case "error":
		fmt.Fprintf(w, "error: %s\n", deref(st.ErrorMsg))
	default:
		fmt.Fprintf(w, "%s: %s\n", st.Status, st.Prompt)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
