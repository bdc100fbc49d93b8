package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cull-io/cull/internal/config"
	"github.com/cull-io/cull/internal/events"
	"github.com/cull-io/cull/internal/leasestore"
	sqlstore "github.com/cull-io/cull/internal/leasestore/sql"
	"github.com/cull-io/cull/internal/logging"
	"github.com/cull-io/cull/internal/metrics"
	"github.com/cull-io/cull/internal/reaper"
	"github.com/cull-io/cull/internal/replica"
	s3deleter "github.com/cull-io/cull/internal/storage/s3"
)

// run wires the reaper and drives it until a signal arrives (or one pass
// completes, for `culld once`).
func run(cfg *config.Config, once bool) error {
	workerID := uuid.New().String()
	log := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat).
		WithWorkerID(workerID)
	logging.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		DSN:          cfg.Catalog.DSN,
		Table:        cfg.Catalog.Table,
		MaxOpenConns: cfg.Catalog.MaxOpenConns,
		MaxIdleConns: cfg.Catalog.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	deleter, err := s3deleter.New(ctx, s3deleter.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKey,
		SecretAccessKey: cfg.Storage.SecretKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var emitter events.Emitter = events.Nop{}
	if cfg.Events.Enabled {
		kafka, err := events.NewKafka(events.KafkaConfig{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("open event sink: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = kafka.Close(flushCtx)
		}()
		emitter = kafka
	}

	m := metrics.NewReaperMetrics()
	if cfg.Observability.MetricsAddr != "" {
		go serveMetrics(cfg.Observability.MetricsAddr, log)
	}

	reaperCfg := reaper.Config{
		EnableImmediateCleanup: cfg.Reaper.EnableImmediateCleanup,
		DBBatchSize:            cfg.Reaper.DBBatchSize,
		RefreshTriggerRatio:    cfg.Reaper.RefreshTriggerRatio,
		Delay:                  time.Duration(cfg.Reaper.DelaySeconds) * time.Second,
		ChunkSize:              cfg.Reaper.ChunkSize,
	}
	if err := reaperCfg.Validate(); err != nil {
		return err
	}

	selector := reaper.NewSelector(store)
	worker := reaper.NewWorker(reaper.WorkerOptions{
		Store:     store,
		Deleter:   deleter,
		Refresher: reaper.NewRefresher(store, log, emitter, m),
		Config:    reaperCfg,
		WorkerID:  workerID,
		Logger:    log,
		Emitter:   emitter,
		Metrics:   m,
	})

	log.Infof("reaper starting", map[string]any{
		"rses": cfg.Reaper.RSEs,
		"mode": reaperCfg.Mode(),
	})

	interval := time.Duration(cfg.Reaper.LoopIntervalMs) * time.Millisecond
	for {
		reaped := 0
		for _, rse := range cfg.Reaper.RSEs {
			if ctx.Err() != nil {
				log.Info("reaper stopping")
				return nil
			}
			n, err := reapPass(ctx, rse, reaperCfg, selector, worker, store, log)
			if err != nil {
				if once {
					return err
				}
				log.Errorf("reap pass failed", map[string]any{
					"rse":   rse,
					"error": err.Error(),
				})
				continue
			}
			reaped += n
		}

		if once {
			return nil
		}
		if reaped == 0 {
			select {
			case <-ctx.Done():
				log.Info("reaper stopping")
				return nil
			case <-time.After(interval):
			}
		}
	}
}

// reapPass claims and processes one batch at one RSE. In deferred mode the
// worker hands back the uncommitted successes and the pass owns the catalog
// delete.
func reapPass(ctx context.Context, rse string, cfg reaper.Config, selector *reaper.Selector, worker *reaper.Worker, store leasestore.LeaseStore, log *logging.Logger) (int, error) {
	batch, err := selector.Select(ctx, rse, cfg)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	res, err := worker.Process(ctx, rse, batch)
	if err != nil {
		var commitErr *reaper.CommitError
		if errors.As(err, &commitErr) {
			log.Errorf("catalog commit failed mid-batch", map[string]any{
				"rse":       rse,
				"committed": commitErr.Committed,
				"pending":   commitErr.Pending,
			})
		}
		return res.Committed, err
	}

	if len(res.Remainder) > 0 {
		refs := make([]replica.Ref, len(res.Remainder))
		for i, r := range res.Remainder {
			refs[i] = r.Ref
		}
		if err := store.RemoveRows(ctx, refs); err != nil {
			return res.Committed, &reaper.CommitError{
				Committed: res.Committed,
				Pending:   len(refs),
				Err:       err,
			}
		}
		log.Infof("remainder committed", map[string]any{
			"rse":  rse,
			"rows": len(refs),
		})
	}

	return res.Succeeded, nil
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics endpoint failed", map[string]any{
			"addr":  addr,
			"error": err.Error(),
		})
	}
}
