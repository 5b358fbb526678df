package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facegate/internal/config"
)

func (a *app) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "Print the configured matching profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.Profiles()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "\tNAME\tMETHOD\tDIMENSION\tNORMALIZED\tTHRESHOLD")
			for _, name := range config.ProfileNames(profiles) {
				p := profiles[name]
				active := ""
				if name == a.cfg.MatchProfile {
					active = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%g\n", active, p.Name, p.Method, p.Dimension, p.Normalized, p.Threshold)
			}
			return w.Flush()
		},
	}
}
