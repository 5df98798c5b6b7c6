package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const githubRepoSlug = "kubetestenv/kubetestenv"

// release is the part of a published release the update needs.
type release struct {
	Version   string
	AssetURL  string
	AssetName string
}

// For mocking in tests
var (
	detectLatest = func(ctx context.Context, slug string) (release, bool, error) {
		rel, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(slug))
		if err != nil || !found {
			return release{}, found, err
		}
		return release{Version: rel.Version(), AssetURL: rel.AssetURL, AssetName: rel.AssetName}, true, nil
	}
	executablePath = selfupdate.ExecutablePath
	updateTo       = selfupdate.UpdateTo
)

func newSelfUpdateCmd() *cobra.Command {
	var repository string
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update kubetestenv to the latest version",
		Long: `Checks for the latest release of kubetestenv on GitHub and
updates the current binary if a newer version is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(commandContext(cmd), cmd.OutOrStdout(), repository)
		},
	}
	cmd.Flags().StringVar(&repository, "repository", githubRepoSlug, "GitHub repository (owner/name) to fetch releases from")
	return cmd
}

func runSelfUpdate(ctx context.Context, out io.Writer, repository string) error {
	currentVersion := strings.TrimPrefix(rootCmd.Version, "v")
	if currentVersion == "" || currentVersion == "dev" {
		return errors.New("cannot self-update a development version")
	}
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("current version %q is not a release version: %w", currentVersion, err)
	}

	fmt.Fprintln(out, "Checking for updates...")
	latest, found, err := detectLatest(ctx, repository)
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s could not be found from GitHub repository", repository)
	}
	latestVersion, err := semver.NewVersion(latest.Version)
	if err != nil {
		return fmt.Errorf("release %q of %s has an invalid version: %w", latest.Version, repository, err)
	}

	if !latestVersion.GreaterThan(current) {
		fmt.Fprintf(out, "Current version (%s) is the latest\n", currentVersion)
		return nil
	}

	exe, err := executablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	fmt.Fprintf(out, "Updating to %s...\n", latestVersion)
	if err := updateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Fprintf(out, "Successfully updated to version %s\n", latestVersion)
	return nil
}
