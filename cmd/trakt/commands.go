package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adeilh/go-trakt/media"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			err = a.Server().Start(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newListsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Print the curated lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			lists, err := a.Aggregator.CuratedMovieLists(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lists)
		},
	}
}

func newDetailsCmd(load loader) *cobra.Command {
	var (
		typ   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "details ID...",
		Short: "Look up details for ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			recs, err := a.Aggregator.DetailsForIDs(cmd.Context(), args, media.Type(typ), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(media.Movie), "movie or tv")
	cmd.Flags().IntVarP(&limit, "limit", "n", media.DefaultDetailLimit, "maximum ids to look up")
	return cmd
}

func newFetchCmd(load loader) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "fetch PATH",
		Short: "Fetch a raw listing-service path, e.g. /network/213",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("query %q must be key=value", p)
				}
				query.Add(k, v)
			}

			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			body, err := a.Gateway.Fetch(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			var v any
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "query", "q", nil, "query parameter key=value (repeatable)")
	return cmd
}

func newAuthCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect or change the stored bearer token",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether a usable token is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !a.Tokens.IsAuthenticated(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "unauthenticated")
				return nil
			}
			tok, _ := a.Tokens.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "authenticated until %s\n", tok.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Authenticate now and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tok, err := a.Tokens.Authenticate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "authenticated until %s\n", tok.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.Tokens.Logout(context.WithoutCancel(cmd.Context()))
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}

	cmd.AddCommand(status, login, logout)
	return cmd
}
