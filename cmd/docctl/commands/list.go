package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-docs/internal/store"
)

// NewListCmd creates the list command
func NewListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := opts.store()
			if err != nil {
				return err
			}
			files, err := fs.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents stored")
				return nil
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

// NewShowCmd creates the show command
func NewShowCmd(opts *Options) *cobra.Command {
	var cutoff float64

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored document, matching the name loosely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := opts.store(store.WithMatchCutoff(cutoff))
			if err != nil {
				return err
			}
			match, err := fs.FindBestMatch(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNoMatch) {
				return fmt.Errorf("no document matches %q", args[0])
			}
			if err != nil {
				return err
			}
			content, err := fs.Read(cmd.Context(), match.Filename)
			if err != nil {
				return err
			}
			if match.Score < 1 {
				fmt.Fprintf(cmd.ErrOrStderr(), "matched %s (similarity %.2f)\n", match.Filename, match.Score)
			}
			return printJSON(cmd.OutOrStdout(), content)
		},
	}
	cmd.Flags().Float64Var(&cutoff, "cutoff", store.DefaultMatchCutoff, "minimum name similarity (0-1]")
	return cmd
}
