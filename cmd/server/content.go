package main

import (
	"context"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-static/internal/content"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
	"github.com/keithlinneman/linnemanlabs-static/internal/metrics"
)

// loadContent installs the startup snapshot into mgr and records it in metrics.
func loadContent(ctx context.Context, L log.Logger, conf cfg.App, mgr *content.Manager, m *metrics.ServerMetrics) error {
	start := time.Now()

	var snap *content.Snapshot
	var err error
	if conf.UsesS3() {
		var loader *content.S3Loader
		loader, err = content.NewS3Loader(ctx, content.S3Options{
			Logger: L,
			Bucket: conf.ContentS3Bucket,
			Key:    conf.ContentS3Key,
			SHA256: conf.ContentSHA256,
			Limits: content.DefaultLimits(),
		})
		if err != nil {
			return err
		}
		snap, err = loader.Load(ctx)
		if err == nil {
			m.ObserveBundleLoadDuration(time.Since(start))
		}
	} else {
		snap, err = content.LoadDir(ctx, L, conf.PublicDir, conf.IndexFile)
	}
	if err != nil {
		return err
	}

	mgr.Set(*snap)

	m.SetContentSource(string(mgr.Source()))
	m.SetContentBundle(mgr.ContentHash())
	m.SetContentLoadedTimestamp(mgr.LoadedAt())

	L.Info(ctx, "site content loaded",
		"source", mgr.Source(),
		"content_version", mgr.ContentVersion(),
		"content_hash", mgr.ContentHash(),
		"files", snap.Meta.Files,
		"bytes", snap.Meta.Bytes,
		"took", time.Since(start),
	)
	return nil
}
