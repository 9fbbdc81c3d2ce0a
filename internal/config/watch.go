package config

import (
	"context"
	"os"
	"time"
)

const defaultFaresPoll = 30 * time.Second

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	mod  time.Time
	size int64
}

func stampOf(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{mod: info.ModTime(), size: info.Size()}, nil
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.mod.Equal(o.mod)
}

// faresFile remembers which version of fares.yaml was last applied.
type faresFile struct {
	path string
	seen fileStamp
}

// changed loads the fares when the file differs from the last applied
// version. Unreadable or invalid versions are skipped until the next edit
// or poll.
func (f *faresFile) changed() (*FaresConfig, bool) {
	st, err := stampOf(f.path)
	if err != nil || st.same(f.seen) {
		return nil, false
	}
	cfg, err := LoadFares(f.path)
	if err != nil {
		return nil, false
	}
	f.seen = st
	return cfg, true
}

func (f *faresFile) poll(ctx context.Context, every time.Duration, apply func(*FaresConfig)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if cfg, ok := f.changed(); ok {
				apply(cfg)
			}
		}
	}
}

// WatchFares applies fares.yaml through onUpdate and keeps applying each
// valid edit until ctx is done. The first load must succeed; a broken edit
// later leaves the applied fares in place. An empty path applies the
// built-in fares once.
func WatchFares(ctx context.Context, path string, interval time.Duration, onUpdate func(*FaresConfig)) error {
	if onUpdate == nil {
		onUpdate = func(*FaresConfig) {}
	}

	cfg, err := LoadFares(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)
	if path == "" {
		return nil
	}

	st, err := stampOf(path)
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = defaultFaresPoll
	}
	go (&faresFile{path: path, seen: st}).poll(ctx, interval, onUpdate)
	return nil
}
