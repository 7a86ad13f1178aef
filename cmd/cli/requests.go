package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type accountRequest struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Status               string     `json:"status"`
	AdminComment         string     `json:"adminComment"`
	IsFirstLogin         bool       `json:"isFirstLogin"`
	HasTemporaryPassword bool       `json:"hasTemporaryPassword"`
	RequestedAt          time.Time  `json:"requestedAt"`
	ProcessedAt          *time.Time `json:"processedAt"`
}

func newRequestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Review account requests",
	}
	cmd.AddCommand(newRequestsListCmd(), newRequestsProcessCmd("approve"), newRequestsProcessCmd("reject"))
	return cmd
}

func newRequestsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List account requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			path := "/account-requests"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			var out struct {
				Requests []accountRequest `json:"requests"`
			}
			if err := client.do(cmd, http.MethodGet, path, nil, &out); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tSTATUS\tREQUESTED\tFIRST LOGIN")
			for _, r := range out.Requests {
				firstLogin := "-"
				if r.Status == "approved" {
					firstLogin = fmt.Sprintf("%t", r.IsFirstLogin)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Email, r.Status, r.RequestedAt.Format(time.RFC3339), firstLogin)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, approved, rejected)")
	return cmd
}

func newRequestsProcessCmd(action string) *cobra.Command {
	var comment, password string
	cmd := &cobra.Command{
		Use:   action + " <request-id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a pending account request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cmd)
			if err != nil {
				return err
			}
			body := map[string]string{"requestId": args[0], "action": action}
			if comment != "" {
				body["comment"] = comment
			}
			if password != "" {
				body["temporaryPassword"] = password
			}
			var out struct {
				Data struct {
					Request           accountRequest `json:"request"`
					TemporaryPassword string         `json:"temporaryPassword"`
				} `json:"data"`
			}
			if err := client.do(cmd, http.MethodPut, "/admin/account-requests", body, &out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", out.Data.Request.Email, out.Data.Request.Status)
			if out.Data.TemporaryPassword != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "temporary password: %s\n", out.Data.TemporaryPassword)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "comment shown to the requester")
	if action == "approve" {
		cmd.Flags().StringVar(&password, "temporary-password", "", "temporary password to issue (generated when empty)")
	}
	return cmd
}
