package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/jsharness/internal/config"
)

const configHeader = `# jsharness configuration.
#
# framework:   force a framework (qunit, jasmine); empty detects per file
# runtime_dir: directory holding <framework>/<runtime file>, copied next to each harness
# temp_dir:    parent of build directories; empty uses the OS temp dir
# workers:     concurrent builds
`

// newInitCmd implements `jsharness init`, which writes a default config file.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Long: `Write the default jsharness configuration to path, which defaults to
./` + config.DefaultPath + `. An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := generateConfig()
			if err != nil {
				return err
			}

			if dryRun {
				_, _ = fmt.Fprint(stdout, content)
				return nil
			}

			path := config.DefaultPath
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(stderr, "wrote config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the config without writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// generateConfig returns the commented default config document.
func generateConfig() (string, error) {
	data, err := config.DefaultConfig().Marshal()
	if err != nil {
		return "", err
	}
	return configHeader + "\n" + string(data), nil
}
