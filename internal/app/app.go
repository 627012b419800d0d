// Package app wires configuration into a runnable ingest pipeline.
package app

import (
	"context"
	"fmt"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/assetstore"
	"github.com/nemo-app/photoingest/internal/assetstore/gcs"
	"github.com/nemo-app/photoingest/internal/assetstore/local"
	"github.com/nemo-app/photoingest/internal/assetstore/memory"
	"github.com/nemo-app/photoingest/internal/config"
	"github.com/nemo-app/photoingest/internal/fetch"
	"github.com/nemo-app/photoingest/internal/ingest"
	"github.com/nemo-app/photoingest/internal/logging"
	"github.com/nemo-app/photoingest/internal/metrics"
	"github.com/nemo-app/photoingest/internal/publisher"
	pspub "github.com/nemo-app/photoingest/internal/publisher/pubsub"
	"github.com/nemo-app/photoingest/internal/transcode"
)

// App holds the assembled pipeline and the handles that need closing.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Fetcher *fetch.Client
	Store   *assetstore.Store
	Ingest  *ingest.Service

	gcsClient    *gcstorage.Client
	pubsubClient *gcpubsub.Client
	pubsubTopic  *gcpubsub.Topic
}

// New assembles the pipeline from configuration. Cloud clients are only
// dialed for the providers the config actually selects.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	objects, err := a.buildObjectStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	compressor := transcode.New(transcode.Config{
		MaxLongEdge:   cfg.Transcode.MaxLongEdge,
		WebPQuality:   cfg.Transcode.WebPQuality,
		JPEGQuality:   cfg.Transcode.JPEGQuality,
		WebPThreshold: cfg.Transcode.WebPThreshold,
		JPEGThreshold: cfg.Transcode.JPEGThreshold,
		PNGThreshold:  cfg.Transcode.PNGThreshold,
	}, logger)

	a.Store = assetstore.New(objects, compressor, logger, assetstore.Config{
		Prefix:        cfg.Storage.Prefix,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})

	a.Fetcher = fetch.NewClient(fetch.Config{
		ConnectTimeout: cfg.HTTP.ConnectTimeout(),
		ReadTimeout:    cfg.HTTP.ReadTimeout(),
		UserAgent:      cfg.HTTP.UserAgent,
		MaxBytes:       cfg.HTTP.MaxBytes,
	})

	pub, topic, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Ingest = ingest.NewService(a.Fetcher, a.Store, logger, ingest.Config{
		MaxRedirects:   cfg.Resolve.MaxRedirects,
		MaxHTMLFollows: cfg.Resolve.MaxHTMLFollows,
		MinImageBytes:  cfg.Resolve.MinImageBytes,
		PublishTopic:   topic,
	}, ingest.WithPublisher(pub))

	logger.Info("pipeline assembled",
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.Bool("pubsub_enabled", cfg.PubSub.Enabled))
	return a, nil
}

func (a *App) buildObjectStore(ctx context.Context, cfg config.Config) (assetstore.ObjectStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("dial gcs: %w", err)
		}
		a.gcsClient = client
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalBaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (publisher.Publisher, string, error) {
	if !cfg.PubSub.Enabled {
		return publisher.NoOp{}, "", nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("dial pubsub: %w", err)
	}
	a.pubsubClient = client
	a.pubsubTopic = client.Topic(cfg.PubSub.TopicName)
	return pspub.New(a.pubsubTopic), cfg.PubSub.TopicName, nil
}

// Close releases cloud clients and flushes the logger. Safe to call on a
// partially constructed App.
func (a *App) Close() {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		_ = a.pubsubClient.Close()
	}
	if a.gcsClient != nil {
		_ = a.gcsClient.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
