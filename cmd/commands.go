package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), migrate)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Auto-migrate the schema before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			a.Log.Info("Schema is up to date")
			return nil
		},
	}
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <document-a> <document-b>",
		Short: "Compare two evidence documents and print the stored comparison",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Services.Comparison.CompareDocuments(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func newRecalculateCmd() *cobra.Command {
	var (
		yes     bool
		actorID uint
	)
	cmd := &cobra.Command{
		Use:   "recalculate <document-a> <document-b>",
		Short: "Re-extract both documents' sections, discarding their comparisons",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Services.Comparison.RecalculateSections(cmd.Context(), ids[0], ids[1], yes, actorID)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm that existing sections and comparisons may be discarded")
	cmd.Flags().UintVar(&actorID, "actor", 0, "Actor id recorded in the review log")
	return cmd
}

func parseIDs(args []string) ([]uint, error) {
	out := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid document id %q", a)
		}
		out = append(out, uint(id))
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
