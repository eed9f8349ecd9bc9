// Package commands implements the docctl command tree.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/store"
)

// Options are the flags shared by every subcommand
type Options struct {
	DataDir    string
	SchemaPath string
}

// NewRootCmd builds the docctl command tree
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:           "docctl",
		Short:         "Inspect and repair smart-docs documents",
		Long:          "CLI tool for validating, listing and showing the JSON documents kept in the data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDir := os.Getenv("DATA_DIR")
	if defaultDir == "" {
		defaultDir = "./data"
	}
	rootCmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", defaultDir, "document directory")
	rootCmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", os.Getenv("SCHEMA_PATH"), "YAML schema registry (built-in when empty)")

	rootCmd.AddCommand(NewValidateCmd(opts))
	rootCmd.AddCommand(NewListCmd(opts))
	rootCmd.AddCommand(NewShowCmd(opts))
	rootCmd.AddCommand(NewSchemaCmd(opts))

	return rootCmd
}

func (o *Options) schema() (*document.Schema, error) {
	if o.SchemaPath == "" {
		return document.DefaultSchema(), nil
	}
	return document.LoadSchema(o.SchemaPath)
}

func (o *Options) normalizer() (*document.Normalizer, error) {
	schema, err := o.schema()
	if err != nil {
		return nil, err
	}
	return document.New(document.WithSchema(schema)), nil
}

func (o *Options) store(opts ...store.Option) (*store.FileStore, error) {
	return store.NewFileStore(o.DataDir, zap.NewNop(), opts...)
}
