package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
)

type discoverResult struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	StateFile   string `json:"state_file"`
	Total       int    `json:"total_entries"`
	Added       int    `json:"added_new_entries"`
	Pending     int    `json:"pending"`
	Saved       bool   `json:"saved"`
	Partial     string `json:"partial_listing_error,omitempty"`
}

func runDiscover(ctx context.Context, args []string) error {
	fs, common := newCommandFlags("discover")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(ctx, fs, *common.configPath, false)
	if err != nil {
		return err
	}
	defer s.close()

	if err := runstore.Mkdir(s.stateDir); err != nil {
		return err
	}
	lock, err := runstore.AcquireStoreLock(s.stateDir, "discover-"+uuid.NewString())
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	statePath := filepath.Join(s.stateDir, runstore.StateFileName)
	sync, err := discovery.SyncCatalog(ctx, discovery.SyncOptions{
		AccountID: s.cfg.Basic.UID,
		StatePath: statePath,
		Lister:    s.api,
		Refresh:   true,
		Logger:    s.logger,
	})
	if err != nil {
		return err
	}

	_, pending := model.CountDownloaded(sync.Entries)
	res := discoverResult{
		AccountID:   s.cfg.Basic.UID,
		AccountName: s.accountName,
		StateFile:   statePath,
		Total:       len(sync.Entries),
		Added:       sync.Added,
		Pending:     pending,
		Saved:       sync.Saved,
	}
	if sync.FetchErr != nil {
		res.Partial = sync.FetchErr.Error()
		s.logger.Warn("listing stopped early", zap.Error(sync.FetchErr))
	}

	if *common.jsonOut {
		return printJSON(res)
	}
	fmt.Printf("account: %s (%s)\n", res.AccountName, res.AccountID)
	fmt.Printf("state_file: %s\n", res.StateFile)
	fmt.Printf("total_entries: %d\n", res.Total)
	fmt.Printf("added_new: %d\n", res.Added)
	fmt.Printf("pending: %d\n", res.Pending)
	if res.Partial != "" {
		fmt.Printf("warning: listing incomplete: %s\n", res.Partial)
	}
	return nil
}
