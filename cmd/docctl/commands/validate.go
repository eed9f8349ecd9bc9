package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/models"
)

// NewValidateCmd creates the validate command
func NewValidateCmd(opts *Options) *cobra.Command {
	var (
		kind    string
		write   bool
		repairs bool
	)

	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Normalize documents and print the canonical form",
		Long: "Normalize JSON documents read from files (or stdin when no file or \"-\" is given).\n" +
			"With --write, files inside the data directory are rewritten in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalizer, err := opts.normalizer()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}

			for _, arg := range args {
				data, err := readInput(cmd.InOrStdin(), arg)
				if err != nil {
					return err
				}
				var candidate any
				if err := json.Unmarshal(data, &candidate); err != nil {
					return fmt.Errorf("%s: invalid JSON: %w", arg, err)
				}

				doc, report, err := normalizer.ValidateKindReport(models.DocumentKind(kind), candidate)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}

				if repairs {
					printRepairs(cmd.ErrOrStderr(), arg, report)
				}
				if write && arg != "-" {
					if err := writeBack(cmd.Context(), opts, arg, doc); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d repairs written\n", arg, report.Len())
					continue
				}
				if err := printJSON(cmd.OutOrStdout(), doc); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "treat every input as this kind (table, todolist, habit)")
	cmd.Flags().BoolVar(&write, "write", false, "rewrite files in place")
	cmd.Flags().BoolVar(&repairs, "repairs", false, "print the repairs made to stderr")

	return cmd
}

func readInput(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return data, nil
}

// writeBack goes through the store so the write is atomic and locked
func writeBack(ctx context.Context, opts *Options, path string, doc *models.Document) error {
	fs, err := opts.store()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) != fs.Dir() {
		return fmt.Errorf("%s is outside the data directory %s", path, fs.Dir())
	}
	return fs.Write(ctx, filepath.Base(abs), doc)
}

func printRepairs(w io.Writer, source string, report *document.Report) {
	if report.Len() == 0 {
		fmt.Fprintf(w, "%s: canonical\n", source)
		return
	}
	for _, r := range report.Repairs {
		fmt.Fprintf(w, "%s: %s at %s\n", source, r.Kind, r.Path)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
