package process

import (
	"fmt"

	"github.com/pinehost/pine-host/pkg/compositionlog"
	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/filestore"
)

// attemptContinueLocked implements the two-phase protocol of spec §4.6: a
// test phase against an in-memory overlay, then — only if the overlay
// restores cleanly — a commit phase that copies the overlay's writes to the
// real store and restarts the live application from the committed log.
// Callers must hold p.mu.
func (p *Process) attemptContinueLocked(event compositionlog.Event) error {
	overlay := filestore.NewOverlay(p.files)
	overlayLog := compositionlog.New(overlay)

	if _, err := overlayLog.AppendRecord(event); err != nil {
		return fmt.Errorf("process: attempt continue: project event into overlay: %w", err)
	}

	testProcess, _, err := restoreFromStore(overlay, p.driver, p.logger)
	if err != nil {
		return fmt.Errorf("process: attempt continue: test phase restore failed: %w", err)
	}
	if testProcess == nil {
		return fmt.Errorf("process: attempt continue: test phase produced no restorable process")
	}

	if err := overlay.Commit(); err != nil {
		return fmt.Errorf("process: attempt continue: commit overlay writes: %w", err)
	}

	committed, cmds, err := restoreFromStore(p.files, p.driver, p.logger)
	if err != nil {
		return fmt.Errorf("process: attempt continue: commit phase restore failed: %w", err)
	}
	if committed == nil {
		return fmt.Errorf("process: attempt continue: commit phase produced no restorable process")
	}

	p.liveApp = committed.liveApp
	p.appConfigTreeHashHex = committed.appConfigTreeHashHex
	p.initOrMigrateCmds = cmds
	p.lastCompositionLogRecordHashHex = committed.lastCompositionLogRecordHashHex
	p.log = committed.log
	p.content = committed.content
	return nil
}

// DeployAndInit stores tree, then attempts to deploy it as a fresh
// application via its init entry point (spec §4.6, §4.9 deploy-and-init).
func (p *Process) DeployAndInit(tree contentstore.TreeNode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}

	treeHashHex, err := p.content.StoreTree(tree)
	if err != nil {
		return fmt.Errorf("process: deployAndInit: store tree: %w", err)
	}
	if err := p.attemptContinueLocked(compositionlog.DeployAppConfigAndInitElmAppState(treeHashHex)); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Printf("🚀 deployed and initialized app config %s", treeHashHex)
	}
	return nil
}

// DeployAndMigrate stores tree, then attempts to deploy it against the
// current live app's state via its migrate entry point (spec §4.6, §4.9
// deploy-and-migrate).
func (p *Process) DeployAndMigrate(tree contentstore.TreeNode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}
	if p.liveApp == nil {
		return ErrNoPriorApplication
	}

	treeHashHex, err := p.content.StoreTree(tree)
	if err != nil {
		return fmt.Errorf("process: deployAndMigrate: store tree: %w", err)
	}
	if err := p.attemptContinueLocked(compositionlog.DeployAppConfigAndMigrateElmAppState(treeHashHex)); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Printf("🔄 deployed and migrated to app config %s", treeHashHex)
	}
	return nil
}

// RevertProcessTo attempts to append a RevertProcessTo record pointing at
// recordHashHex. Replaying that record restores the live application's
// state to what it was right after recordHashHex; it does not physically
// truncate the log — that is a separate compaction concern handled by
// TruncateProcessHistory.
func (p *Process) RevertProcessTo(recordHashHex string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}

	if err := p.attemptContinueLocked(compositionlog.RevertProcessTo(recordHashHex)); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Printf("⏪ reverted process to record %s", recordHashHex)
	}
	return nil
}
