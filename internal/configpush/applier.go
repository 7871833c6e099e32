package configpush

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// applyTimeout bounds the persistence of one configPush request.
const applyTimeout = 5 * time.Second

// Logger is the logging surface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// VersionReporter posts the held config versions. *iot.Client satisfies it.
type VersionReporter interface {
	PostConfigVersion(keys []tsl.ConfigKey) error
}

// ApplyFunc is called for every item that is newer than the stored one.
type ApplyFunc func(item tsl.ConfigItem) error

// Applier persists pushed configuration and reports the resulting versions.
type Applier struct {
	repo     Repository
	reporter VersionReporter
	apply    ApplyFunc
	logger   Logger
}

// NewApplier creates an Applier. reporter, apply and logger may be nil.
func NewApplier(repo Repository, reporter VersionReporter, apply ApplyFunc, logger Logger) *Applier {
	return &Applier{repo: repo, reporter: reporter, apply: apply, logger: logger}
}

// Handle is an iot.ConfigHandler.
//
// Items whose version is not newer than the stored entry are skipped. A
// failing apply or save stops the request and is returned. When anything
// changed the new version set is reported on its own goroutine, because
// Handle runs on a session dispatch worker.
func (a *Applier) Handle(items []tsl.ConfigItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	changed := 0
	for _, item := range items {
		ok, err := a.applyItem(ctx, item)
		if err != nil {
			return err
		}
		if ok {
			changed++
		}
	}

	if changed > 0 && a.reporter != nil {
		keys, err := a.Versions(ctx)
		if err != nil {
			return err
		}
		go a.report(keys)
	}
	return nil
}

func (a *Applier) applyItem(ctx context.Context, item tsl.ConfigItem) (bool, error) {
	current, err := a.repo.Get(ctx, item.Key.Key)
	switch {
	case err == nil && current.Version >= item.Key.Version:
		a.info("config push skipped", "key", item.Key.Key,
			"version", item.Key.Version, "held", current.Version)
		return false, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return false, err
	}

	if a.apply != nil {
		if err := a.apply(item); err != nil {
			return false, fmt.Errorf("applying config %s: %w", item.Key.Key, err)
		}
	}
	if err := a.repo.Save(ctx, Entry{Key: item.Key.Key, Version: item.Key.Version, Payload: item.Values}); err != nil {
		return false, err
	}
	a.info("config applied", "key", item.Key.Key, "version", item.Key.Version)
	return true, nil
}

// Versions returns the stored config versions in key order.
func (a *Applier) Versions(ctx context.Context) ([]tsl.ConfigKey, error) {
	entries, err := a.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]tsl.ConfigKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, tsl.ConfigKey{Key: e.Key, Version: e.Version})
	}
	return keys, nil
}

// ReportVersions posts the stored versions synchronously. Call it after
// connecting.
func (a *Applier) ReportVersions(ctx context.Context) error {
	if a.reporter == nil {
		return nil
	}
	keys, err := a.Versions(ctx)
	if err != nil {
		return err
	}
	return a.reporter.PostConfigVersion(keys)
}

func (a *Applier) report(keys []tsl.ConfigKey) {
	if err := a.reporter.PostConfigVersion(keys); err != nil && a.logger != nil {
		a.logger.Warn("config version report failed", "error", err)
	}
}

func (a *Applier) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}
