package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/config"
	"github.com/vx-run/vx/internal/providerpaths"
)

var useEnvName string

var useCmd = &cobra.Command{
	Use:   "use <tool>@<version>",
	Short: "Pin a tool version for the current project, or a named environment with --env",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, version := splitAtVersion(args[0])

		a, err := newApp()
		if err != nil {
			return err
		}

		if useEnvName != "" {
			return pinInEnvironment(a, useEnvName, name, version)
		}

		return pinInProject(name, version)
	},
}

func init() {
	useCmd.Flags().StringVar(&useEnvName, "env", "", "pin into a named environment (envs/<name>/env.toml) instead of the project")
	rootCmd.AddCommand(useCmd)
}

func pinInProject(name, version string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	root, ok := providerpaths.FindProjectRoot(cwd)
	if !ok {
		root = cwd
	}

	path := filepath.Join(root, ".vx.toml")

	proj, _, err := loadOrInitProject(path)
	if err != nil {
		return err
	}

	proj.Tools[name] = version

	if err := config.SaveProject(path, proj); err != nil {
		return err
	}

	fmt.Printf("pinned %s = %q in %s\n", name, version, path)

	return nil
}

func loadOrInitProject(path string) (*config.Project, []string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &config.Project{Tools: map[string]string{}, Env: map[string]string{}, Scripts: map[string]string{}}, nil, nil
	}

	return config.LoadProject(path)
}

func pinInEnvironment(a *app, envName, name, version string) error {
	path := a.Layout.EnvFile(envName)

	env, err := config.LoadEnvironment(path)
	if err != nil {
		return err
	}

	env.Tools[name] = version

	if err := config.SaveEnvironment(path, env); err != nil {
		return err
	}

	fmt.Printf("pinned %s = %q in environment %q\n", name, version, envName)

	return nil
}
