package cmd

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	"gapfill.dev/pkg/gapfill/internal/controller"
)

//go:embed hooks/pre-commit hooks/post-commit
var hookScripts embed.FS

var hookNames = []string{"pre-commit", "post-commit"}

const hookMode = 0o755

func runInstallHooks(cmd *cobra.Command, fs afero.Fs, vcs adapter.VCSAdapter, ui controller.UI, root string) error {
	installed, err := installHooks(cmd.Context(), fs, vcs, root)
	if err != nil {
		return err
	}

	return ui.DisplayHooksInstalled(cmd.Context(), installed)
}

// installHooks writes the embedded hook scripts into the repository hook
// directory, replacing existing ones, and returns their paths.
func installHooks(ctx context.Context, fs afero.Fs, vcs adapter.VCSAdapter, root string) ([]string, error) {
	dir, err := vcs.HooksDir(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to locate git hooks: %w", err)
	}

	if err := fs.MkdirAll(dir, hookMode); err != nil {
		return nil, fmt.Errorf("failed to create hooks directory: %w", err)
	}

	installed := make([]string, 0, len(hookNames))

	for _, name := range hookNames {
		script, err := hookScripts.ReadFile("hooks/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded %s hook: %w", name, err)
		}

		target := filepath.Join(dir, name)

		if err := afero.WriteFile(fs, target, script, hookMode); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", target, err)
		}

		// WriteFile keeps the mode of an existing file.
		if err := fs.Chmod(target, hookMode); err != nil {
			return nil, fmt.Errorf("failed to make %s executable: %w", target, err)
		}

		installed = append(installed, target)
	}

	return installed, nil
}
