package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/output"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Force   bool
	Example bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapquery project",
		Long: `Initialize a new leapquery project with a leapquery.yaml and a sql/
directory for .sq and .sqm files.

Use --example to also create a schema with labeled queries that compiles
as is.`,
		Example: `  # Initialize in current directory
  leapquery init

  # Initialize a new directory with the example schema
  leapquery init my-project --example

  # Overwrite an existing config
  leapquery init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&opts.Example, "example", false, "Create an example schema with queries")
	return cmd
}

func runInit(r *output.Renderer, dir string, opts *InitOptions) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigFile)
	}

	template := "minimal"
	if opts.Example {
		template = "example"
	}
	if err := copyTemplate(template, dir, opts.Force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	for _, f := range files {
		r.StatusLine(filepath.ToSlash(f), "success", "")
	}

	r.Println("")
	r.Success("leapquery project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapquery check      Report diagnostics for the .sq files")
	r.Println("  leapquery compile    Write the typed manifest")
	r.Println("  leapquery migrate    Create the schema on the target database")
	return nil
}
