package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dopemusic/dopesite/store"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(newUserCreateCmd(a), newUserListCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operator account",
		Long:  "Create an operator account. Without --password the password is read from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			user, err := store.NewUserStore(a.db).Create(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prefer stdin)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List operator accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := store.NewUserStore(a.db).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.UTC().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
