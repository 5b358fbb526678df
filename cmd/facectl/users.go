package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List directory users and whether a face is enrolled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, release, err := a.openDirectory(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			users, err := dir.LoadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found in directory.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tFULL NAME\tFACE\tMETHOD\tDIMENSION")
			fmt.Fprintln(w, "--------\t---------\t----\t------\t---------")
			for i := range users {
				u := &users[i]
				face := "no"
				if u.HasFace() {
					face = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", u.Username, u.FullName, face, u.FaceMethod, len(u.FaceVector))
			}
			return w.Flush()
		},
	}
}
