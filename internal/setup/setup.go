// Package setup prepares a fresh checkout for its first run.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// RequiredKeys must be present and non-empty in the env file.
var RequiredKeys = []string{"DATABASE_URL", "JWT_SECRET"}

// Installer fetches project dependencies.
type Installer func(ctx context.Context, dir string) error

// GoModDownload runs "go mod download" in dir.
func GoModDownload(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "go", "mod", "download")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("go mod download: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

type Options struct {
	Dir     string
	Install Installer
	Out     io.Writer
}

// Run copies .env.example to .env when .env is missing, checks the
// required keys, installs dependencies and prints the next steps.
func Run(ctx context.Context, opts Options) error {
	if opts.Install == nil {
		opts.Install = GoModDownload
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	envPath := filepath.Join(opts.Dir, ".env")

	created, err := ensureEnvFile(envPath, filepath.Join(opts.Dir, ".env.example"))
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(opts.Out, "Created %s from .env.example. Review the values before the first run.\n", envPath)
	} else {
		fmt.Fprintf(opts.Out, "Using existing %s\n", envPath)
	}

	missing, err := MissingKeys(envPath)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Fprintf(opts.Out, "Warning: %s has no value for %s\n", envPath, strings.Join(missing, ", "))
	}

	fmt.Fprintln(opts.Out, "Installing dependencies...")
	if err := opts.Install(ctx, opts.Dir); err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	fmt.Fprintln(opts.Out, "Setup complete. Next steps:")
	fmt.Fprintln(opts.Out, "  1. Edit .env and point DATABASE_URL at your PostgreSQL instance")
	fmt.Fprintln(opts.Out, "  2. relayloop-server migrate up")
	fmt.Fprintln(opts.Out, "  3. relayloop-server seed")
	fmt.Fprintln(opts.Out, "  4. relayloop-server serve")
	return nil
}

func ensureEnvFile(envPath, examplePath string) (bool, error) {
	if _, err := os.Stat(envPath); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", envPath, err)
	}

	src, err := os.ReadFile(examplePath)
	if err != nil {
		return false, fmt.Errorf("read env template: %w", err)
	}
	if err := os.WriteFile(envPath, src, 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", envPath, err)
	}
	return true, nil
}

// MissingKeys lists the RequiredKeys that are absent or empty in path.
func MissingKeys(path string) ([]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var missing []string
	for _, k := range RequiredKeys {
		if strings.TrimSpace(values[k]) == "" {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
