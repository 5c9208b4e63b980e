// Package ctl implements almanacctl, the operator tool for the review queue
// and for checking how messages are classified and routed.
package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"frameworks/almanac/internal/drafts"
	"frameworks/almanac/pkg/database"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Reviewer is the slice of the draft manager the pending commands use.
type Reviewer interface {
	ListPending(ctx context.Context, tenantID string) ([]drafts.PendingEntry, error)
	Approve(ctx context.Context, tenantID, pendingID, reviewerID string, edit *drafts.Edit) (drafts.Document, error)
	Reject(ctx context.Context, tenantID, pendingID, reviewerID, reason string) error
}

// ReviewerFactory opens a reviewer for one command. The returned func
// releases whatever the reviewer holds.
type ReviewerFactory func(ctx context.Context, v *viper.Viper) (Reviewer, func(), error)

type app struct {
	v            *viper.Viper
	cfgFile      string
	openReviewer ReviewerFactory
}

// NewRootCmd builds the command tree. A nil factory connects to Postgres
// using database_url.
func NewRootCmd(open ReviewerFactory) *cobra.Command {
	if open == nil {
		open = postgresReviewer
	}
	a := &app{v: viper.New(), openReviewer: open}

	rootCmd := &cobra.Command{
		Use:           "almanacctl",
		Short:         "Almanac operator tool",
		Long:          "almanacctl reviews pending knowledge entries and explains how Almanac classifies and routes messages.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.almanac/config.yaml)")
	flags.String("output", "text", "output format: json|text")
	flags.String("tenant", "", "tenant id")
	flags.String("database-url", "", "Postgres connection string")
	flags.String("routing-file", "", "routing and threshold YAML file")
	_ = a.v.BindPFlag("output", flags.Lookup("output"))
	_ = a.v.BindPFlag("tenant", flags.Lookup("tenant"))
	_ = a.v.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = a.v.BindPFlag("routing_file", flags.Lookup("routing-file"))

	rootCmd.AddCommand(a.newPendingCmd())
	rootCmd.AddCommand(a.newClassifyCmd())
	rootCmd.AddCommand(a.newRouteCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.almanac")
			a.v.SetConfigName("config")
		}
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("ALMANAC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		// Missing config is fine; a named file that fails to load is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && a.cfgFile != "" {
			return fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
	}
	return nil
}

func (a *app) tenant() (string, error) {
	tenant := strings.TrimSpace(a.v.GetString("tenant"))
	if tenant == "" {
		return "", fmt.Errorf("tenant is required (--tenant or ALMANAC_TENANT)")
	}
	return tenant, nil
}

func (a *app) jsonOutput() bool {
	return strings.EqualFold(a.v.GetString("output"), "json")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func postgresReviewer(ctx context.Context, v *viper.Viper) (Reviewer, func(), error) {
	url := strings.TrimSpace(v.GetString("database_url"))
	if url == "" {
		return nil, nil, fmt.Errorf("database url is required (--database-url or ALMANAC_DATABASE_URL)")
	}
	logger := logging.NewLoggerWithService("almanacctl")
	cfg := database.DefaultConfig()
	cfg.URL = url
	cfg.MaxOpenConns = 2
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	// Approvals from the CLI are embedded the same way the server does it;
	// without an embedding model the document is stored unsearchable.
	embedder, err := llm.NewEmbeddingClient(llm.LoadEmbeddingConfig())
	if err != nil {
		logger.WithError(err).Warn("Embedding client not configured - approved documents will not be searchable until re-embedded")
		embedder = nil
	}
	appID := v.GetString("app_id")
	if appID == "" {
		appID = "almanac"
	}
	manager, err := drafts.NewManager(drafts.ManagerConfig{
		Repository: drafts.NewPostgresRepository(db),
		Embedder:   embedder,
		Logger:     logger,
		AppID:      appID,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return manager, func() { _ = db.Close() }, nil
}
