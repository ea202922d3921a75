package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/config"
	"github.com/ent0n29/voicecard/internal/httpapi"
	"github.com/ent0n29/voicecard/internal/observability"
	"github.com/ent0n29/voicecard/internal/provision"
)

type ProvisioningInfo struct {
	Ready          bool
	Missing        []string
	CardStoreMode  string
	SeededCards    int
	DocStoreConfig bool
}

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Provisioner *provision.Service
	Cards       card.Store
	Metrics     *observability.Metrics
	Info        ProvisioningInfo

	// Cleanup releases the card store connection pool.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log *logrus.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	cards, err := card.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("card store init failed: %w", err)
	}
	seeded := 0
	if cfg.CardsSeedFile != "" {
		seeded, err = card.Seed(ctx, cards, cfg.CardsSeedFile)
		if err != nil {
			_ = cards.Close()
			return nil, fmt.Errorf("card seed failed: %w", err)
		}
		log.WithFields(logrus.Fields{"path": cfg.CardsSeedFile, "cards": seeded}).Info("card store seeded")
	}

	provisioner := provision.NewFromConfig(cfg, metrics, log)
	api := httpapi.New(cfg, provisioner, cards, metrics, log)

	info := ProvisioningInfo{
		Ready:          provisioner.Ready() == nil,
		Missing:        cfg.MissingProvisioningKeys(),
		CardStoreMode:  "in-memory",
		SeededCards:    seeded,
		DocStoreConfig: len(cfg.MissingDocStoreKeys()) == 0,
	}
	if _, ok := cards.(*card.PostgresStore); ok {
		info.CardStoreMode = "postgres"
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Provisioner: provisioner,
		Cards:       cards,
		Metrics:     metrics,
		Info:        info,
		Cleanup:     cards.Close,
	}, nil
}
