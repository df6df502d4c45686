// Package cmd defines the calfire CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/app"
	"github.com/JakeFAU/calfire-history/internal/config"
	"github.com/JakeFAU/calfire-history/internal/dataset"
	"github.com/JakeFAU/calfire-history/internal/incident"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	holderKey appKeyType = "app_holder"
)

// appHolder keeps the App reachable after the command returns, so it is
// closed on error paths too.
type appHolder struct {
	app App
}

func (h *appHolder) close() {
	if h.app != nil {
		h.app.Close()
		h.app = nil
	}
}

// DatasetGetter is satisfied by *dataset.Cache.
type DatasetGetter interface {
	GetDataset(ctx context.Context, today time.Time) (incident.Snapshot, error)
}

// App is what commands need from the service container. Tests inject a mock.
type App interface {
	Logger() *zap.Logger
	Now() time.Time
	Dataset() DatasetGetter
	Fetcher() dataset.Fetcher
	Snapshots() dataset.Store
	Close()
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) Dataset() DatasetGetter {
	return a.App.Dataset()
}

// newApp is the application factory, replaced in tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "calfire",
		Short: "California wildfire history collector",
		Long: `calfire assembles a history of California wildfires from the official
incident archive (2013 onward) and yearly encyclopedia tables (2002-2012),
keeps a dated CSV snapshot on disk and refreshes it as it ages.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if holder, ok := cmd.Context().Value(holderKey).(*appHolder); ok {
				holder.app = appInstance
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(newDatasetCmd())
	cmd.AddCommand(newActiveCmd())
	cmd.AddCommand(newYearCmd())
	cmd.AddCommand(newStatsCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// executeRoot runs root and closes the App it created, whether or not the
// command failed.
func executeRoot(ctx context.Context, root *cobra.Command) error {
	holder := &appHolder{}
	defer holder.close()
	return root.ExecuteContext(context.WithValue(ctx, holderKey, holder))
}

// Execute is the main entry point.
func Execute() {
	if err := executeRoot(context.Background(), newRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
