package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
	"github.com/mind-engage/cms485-trainer/internal/config"
	"github.com/mind-engage/cms485-trainer/internal/events"
	"github.com/mind-engage/cms485-trainer/internal/kvstore"
	"github.com/mind-engage/cms485-trainer/internal/metrics"
	"github.com/mind-engage/cms485-trainer/internal/outbox"
	"github.com/mind-engage/cms485-trainer/internal/report"
	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/agshttp"
	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/gradebook"
	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/sqlstore"
)

func loadCatalog(dir string) (*casebook.Catalog, error) {
	if dir == "" {
		return casebook.Default()
	}
	log.Printf("loading cases from %s", dir)
	return casebook.Load(os.DirFS(dir), ".")
}

// openStateStore builds the learner-state stack: a bounded suspend buffer
// mirrored into the configured durable backend.
func openStateStore(cfg config.Config, dbh *sql.DB) (kvstore.Store, error) {
	var durable kvstore.Store
	switch cfg.StateBackend {
	case "sql", "":
		durable = kvstore.NewSQL(dbh)
	case "fs":
		fs, err := kvstore.NewFS(cfg.StateBasePath)
		if err != nil {
			return nil, err
		}
		durable = fs
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		durable = kvstore.NewRedis(client, "cms485:"+cfg.SiteID+":", cfg.RedisTTL)
	case "memory":
		durable = kvstore.NewMemory()
	default:
		return nil, fmt.Errorf("unknown STATE_BACKEND %q (sql|fs|redis|memory)", cfg.StateBackend)
	}

	buffer := kvstore.NewBounded(kvstore.NewMemory(), cfg.SuspendBudget, cfg.SuspendWarnRatio)
	buffer.OnWarn = func(key string, used, capacity int) {
		metrics.SuspendWarnings.Inc()
	}
	return kvstore.NewMirror(buffer, durable), nil
}

func openPublisher(cfg config.Config) (*events.Publisher, error) {
	return events.NewPublisher(cfg.AMQPURI, cfg.AMQPExchange)
}

// openGradebook returns nil when LTI passback is off.
func openGradebook(ctx context.Context, cfg config.Config, dbh *sql.DB) (*gradebook.Syncer, error) {
	if !cfg.EnableLTI {
		return nil, nil
	}
	if cfg.LTITokenURL == "" || cfg.LTIClientID == "" {
		log.Println("lti gradebook disabled: LTI_TOKEN_URL or LTI_CLIENT_ID not configured")
		return nil, nil
	}
	if err := gradebook.Migrate(ctx, dbh, cfg.DBDriver); err != nil {
		return nil, err
	}
	ags := agshttp.New(agshttp.Config{
		TokenURL:     cfg.LTITokenURL,
		ClientID:     cfg.LTIClientID,
		ClientSecret: cfg.LTIClientSecret,
		Timeout:      cfg.DeliveryTimeout,
	})
	activity := gradebook.Activity{ID: report.ModuleID, Title: "CMS-485 Plan of Care Trainer", MaxPts: 100}
	return gradebook.New(sqlstore.New(dbh), ags, activity, time.Now), nil
}

// targetsFor resolves the delivery channels for one learner's report.
func targetsFor(cfg config.Config, repo *outbox.EventRepo, pub *events.Publisher, syncer *gradebook.Syncer) func(learnerID, learnerName string) report.Target {
	var parents report.Posters
	if repo != nil {
		parents = append(parents, repo)
	}
	if pub.Enabled() {
		parents = append(parents, pub)
	}
	xapi := report.XAPIConfig{
		Endpoint:     cfg.XAPIEndpoint,
		Username:     cfg.XAPIUsername,
		Password:     cfg.XAPIPassword,
		TokenURL:     cfg.XAPITokenURL,
		ClientID:     cfg.XAPIClientID,
		ClientSecret: cfg.XAPIClientSecret,
		ActivityID:   cfg.XAPIActivityID,
		HomePage:     cfg.PublicURL,
	}
	return func(learnerID, learnerName string) report.Target {
		t := report.Target{WebhookURL: cfg.WebhookURL, XAPI: xapi}
		if len(parents) > 0 {
			t.Parent = parents
		}
		if syncer != nil && syncer.HasLaunch(context.Background(), learnerID) {
			t.Runtime = report.RuntimeFunc(func(ctx context.Context, id string, p report.Payload) error {
				return syncer.SyncCompletion(ctx, id, float64(p.OverallScore))
			})
		}
		return t
	}
}

