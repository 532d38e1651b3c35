// Package services holds the operations behind the grow commands: building a
// pod to disk, serving it for development and maintaining its catalogs.
package services

import (
	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/podfs"
)

// OpenPod opens the pod at cfg.Pod.Root on the local disk.
func OpenPod(cfg *config.Config, logger logging.Logger, dev bool, extensions ...hooks.Extension) (*pod.Pod, error) {
	store, err := podfs.NewOS(cfg.Pod.Root)
	if err != nil {
		return nil, err
	}
	return NewPod(store, cfg, logger, dev, extensions...)
}

// NewPod opens a pod over store using the tool configuration.
func NewPod(store *podfs.FS, cfg *config.Config, logger logging.Logger, dev bool, extensions ...hooks.Extension) (*pod.Pod, error) {
	return pod.New(store, pod.Options{
		Env:           cfg.Pod.Env,
		Fingerprint:   cfg.Pod.Fingerprint,
		PoolSize:      cfg.Build.PoolSize,
		FileCacheSize: cfg.Cache.FileCacheSize,
		Dev:           dev,
		Extensions:    extensions,
		Logger:        logger,
	})
}
