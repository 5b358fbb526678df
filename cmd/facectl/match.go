package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
)

func (a *app) matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <query.json>",
		Short: "Run the matcher for a vector file against the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			profile, err := a.profile()
			if err != nil {
				return err
			}
			matcher, err := biometric.NewMatcher(profile)
			if err != nil {
				return err
			}

			query, err := readVector(ctx, args[0])
			if err != nil {
				return err
			}

			dir, release, err := a.openDirectory(ctx)
			if err != nil {
				return err
			}
			defer release()

			users, err := dir.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to load users: %w", err)
			}

			result, err := matcher.Match(query, biometric.CandidatesFrom(users))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.CandidateUsername == nil:
				fmt.Fprintf(out, "no usable candidates for profile %s\n", profile.Name)
			case result.Accepted:
				fmt.Fprintf(out, "match: %s (distance %.4f, confidence %.2f)\n",
					*result.CandidateUsername, result.Distance, result.Confidence)
			default:
				fmt.Fprintf(out, "no match: nearest %s at distance %.4f, threshold %.4f\n",
					*result.CandidateUsername, result.Distance, profile.Threshold)
			}
			return nil
		},
	}
}

func (a *app) distanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <a.json> <b.json>",
		Short: "Profile distance between two vector files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.profile()
			if err != nil {
				return err
			}

			first, err := readVector(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			second, err := readVector(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			d, err := profile.Distance(first, second)
			if err != nil {
				return err
			}

			verdict := "different"
			if d < profile.Threshold {
				verdict = "same"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "distance %.4f, confidence %.2f, %s face (threshold %.4f)\n",
				d, biometric.Confidence(d), verdict, profile.Threshold)
			return nil
		},
	}
}
