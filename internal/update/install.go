package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// backupSuffix is appended to the destination path for the pre-replacement
// copy. The backup is exclusive to one pipeline instance; concurrent
// pipelines targeting the same destination are not supported.
const backupSuffix = ".bak"

// Install downloads one verified asset and replaces the destination file
// transactionally. The existing file (if any) is copied to <dest>.bak
// before the first write; every failure after that point restores it. On
// success the backup is deleted.
func (p *Pipeline) Install(ctx context.Context, asset Asset, dest string) error {
	if asset.Checksum == "" && asset.SignatureURL == "" {
		return fmt.Errorf("%w: asset %s has no integrity metadata", ErrVerification, asset.Name)
	}
	if err := p.policy.Check(asset.URL); err != nil {
		return err
	}

	backedUp, err := backupFile(dest)
	if err != nil {
		return fmt.Errorf("%w: backing up %s: %v", ErrIO, dest, err)
	}

	if err := p.transition(ctx, StateDownloading, asset.Name); err != nil {
		return p.rollback(dest, backedUp, err)
	}
	body, err := p.download(ctx, asset.URL)
	if err != nil {
		return p.rollback(dest, backedUp, err)
	}

	if err := p.transition(ctx, StateVerifying, asset.Name); err != nil {
		return p.rollback(dest, backedUp, err)
	}
	if asset.Checksum != "" {
		actual := sha256.Sum256(body)
		actualHex := hex.EncodeToString(actual[:])
		if !strings.EqualFold(actualHex, asset.Checksum) {
			return p.rollback(dest, backedUp,
				fmt.Errorf("%w: checksum mismatch for %s: expected %s, got %s",
					ErrVerification, asset.Name, asset.Checksum, actualHex))
		}
	} else {
		// Placeholder contract for a deployment-specific verifier
		// (minisign, PGP): fail closed on anything but non-empty
		// signature bytes.
		if err := p.policy.Check(asset.SignatureURL); err != nil {
			return p.rollback(dest, backedUp, err)
		}
		sig, err := p.download(ctx, asset.SignatureURL)
		if err != nil {
			return p.rollback(dest, backedUp, err)
		}
		if len(sig) == 0 {
			return p.rollback(dest, backedUp,
				fmt.Errorf("%w: empty signature for %s", ErrVerification, asset.Name))
		}
	}

	if err := p.transition(ctx, StateReplacing, dest); err != nil {
		return p.rollback(dest, backedUp, err)
	}
	if err := os.WriteFile(dest, body, 0755); err != nil {
		return p.rollback(dest, backedUp, fmt.Errorf("%w: writing %s: %v", ErrIO, dest, err))
	}

	if backedUp {
		if err := os.Remove(dest + backupSuffix); err != nil {
			p.logger.Warn("installed but backup cleanup failed", "backup", dest+backupSuffix, "error", err)
		}
	}
	p.transition(ctx, StateInstalled, dest)
	return nil
}

// rollback deletes any partial write, restores the backup, and returns the
// original failure.
func (p *Pipeline) rollback(dest string, backedUp bool, cause error) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Error("rollback could not remove partial write", "dest", dest, "error", err)
	}
	if backedUp {
		if err := os.Rename(dest+backupSuffix, dest); err != nil {
			p.logger.Error("rollback could not restore backup", "dest", dest, "error", err)
		}
	}
	p.trace.Appendf(string(StateRolledBack), cause.Error())
	p.state = StateRolledBack
	return cause
}

// backupFile copies dest to dest.bak. A missing destination is a clean
// install: no backup is made and none is needed.
func backupFile(dest string) (bool, error) {
	src, err := os.Open(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return false, err
	}
	dst, err := os.OpenFile(dest+backupSuffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return false, err
	}
	if err := dst.Close(); err != nil {
		return false, err
	}
	return true, nil
}

// RecoverBackup reconciles an orphan backup left by a crash between the
// replacement steps. When <dest>.bak exists and the destination is missing
// or older than the backup, the interrupted install is unwound by restoring
// the backup; when the destination is newer, the install completed and the
// stale backup is removed. Callers run this at startup, before any new
// pipeline touches dest.
func RecoverBackup(dest string) (restored bool, err error) {
	bak := dest + backupSuffix
	bakInfo, err := os.Stat(bak)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}

	destInfo, err := os.Stat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Crash between removing the old binary and writing the new one.
		if err := os.Rename(bak, dest); err != nil {
			return false, fmt.Errorf("%w: restoring backup: %v", ErrIO, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if destInfo.ModTime().Before(bakInfo.ModTime()) {
		// Destination predates the backup: the replacement never
		// finished. Restore.
		if err := os.Remove(dest); err != nil {
			return false, fmt.Errorf("%w: removing stale destination: %v", ErrIO, err)
		}
		if err := os.Rename(bak, dest); err != nil {
			return false, fmt.Errorf("%w: restoring backup: %v", ErrIO, err)
		}
		return true, nil
	}

	// Install completed; only the cleanup was lost.
	if err := os.Remove(bak); err != nil {
		return false, fmt.Errorf("%w: removing stale backup: %v", ErrIO, err)
	}
	return false, nil
}
