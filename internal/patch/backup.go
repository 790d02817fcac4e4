package patch

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// backupStamp is the timestamp layout embedded in backup filenames.
// Nanosecond precision keeps names unique per (file, timestamp).
const backupStamp = "20060102T150405.000000000"

// BackupRef identifies an immutable pre-mutation snapshot. Backups are
// append-only and never deleted by the pipeline.
type BackupRef struct {
	Path      string
	CreatedAt time.Time
}

// BackupError means the pre-mutation backup could not be written. The
// target file must be left untouched when this is returned.
type BackupError struct {
	TargetPath string
	Err        error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.TargetPath, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// Committer writes rewritten file content to disk, backup first.
type Committer struct {
	BackupDir string
}

// NewCommitter returns a committer storing backups under dir.
func NewCommitter(dir string) *Committer {
	return &Committer{BackupDir: dir}
}

// Commit replaces the content of path with newContent in two phases:
// first a backup of the current on-disk content is written, then the
// target is atomically replaced via rename. If the backup fails the
// target is never touched. A byte-identical newContent is a no-op and
// produces neither a backup nor a write.
func (c *Committer) Commit(path, newContent string) (*BackupRef, error) {
	current, err := os.ReadFile(path)
	if err != nil {
		return nil, &BackupError{TargetPath: path, Err: err}
	}
	if string(current) == newContent {
		return nil, nil
	}

	ref, err := c.writeBackup(path, current)
	if err != nil {
		return nil, err
	}

	if err := atomicWrite(path, []byte(newContent)); err != nil {
		// Backup exists; report it so the operator has a recovery path.
		return ref, fmt.Errorf("write %s: %w", path, err)
	}
	return ref, nil
}

// Restore writes a backup's content back over the target file. The
// restore itself goes through Commit, so the pre-restore content is
// backed up too.
func (c *Committer) Restore(path string, ref BackupRef) error {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", ref.Path, err)
	}
	_, err = c.Commit(path, string(data))
	return err
}

// ListBackups returns the backups recorded for path, newest first.
func (c *Committer) ListBackups(path string) ([]BackupRef, error) {
	dir, err := c.backupSubdir(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	prefix := filepath.Base(path) + "."
	var refs []BackupRef
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".bak") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".bak")
		ts, err := time.Parse(backupStamp, stamp)
		if err != nil {
			continue
		}
		refs = append(refs, BackupRef{
			Path:      filepath.Join(dir, name),
			CreatedAt: ts,
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].CreatedAt.After(refs[j].CreatedAt) })
	return refs, nil
}

// backupSubdir is the per-target directory under BackupDir. The
// basename keeps listings readable; the absolute-path hash keeps
// same-named files from different directories apart.
func (c *Committer) backupSubdir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(c.BackupDir, fmt.Sprintf("%s-%x", filepath.Base(abs), sum[:6])), nil
}

func (c *Committer) writeBackup(path string, content []byte) (*BackupRef, error) {
	dir, err := c.backupSubdir(path)
	if err != nil {
		return nil, &BackupError{TargetPath: path, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &BackupError{TargetPath: path, Err: err}
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), now.Format(backupStamp))
	backupPath := filepath.Join(dir, name)

	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return nil, &BackupError{TargetPath: path, Err: err}
	}
	return &BackupRef{Path: backupPath, CreatedAt: now}, nil
}

// atomicWrite replaces path's content via temp file + rename, keeping
// the original file mode.
func atomicWrite(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".polish-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode()); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
