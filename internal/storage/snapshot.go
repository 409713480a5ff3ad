package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// snapshotFile is the on-disk JSON body of a snapshot, wrapped with a
// blake2b-256 digest so a truncated or bit-rotted snapshot is detected at
// load time rather than silently replayed as empty state.
type snapshotFile struct {
	Dimension int      `json:"dimension"`
	Metric    string   `json:"metric"`
	Records   []Record `json:"records"`
}

// ErrSnapshotDigest is returned when a snapshot's trailing digest does not
// match its body, meaning the file was only partially written or was
// corrupted after the fact.
var ErrSnapshotDigest = errors.New("storage: snapshot digest mismatch")

// writeSnapshot serializes data to a temp file beside path (path with its
// extension replaced by ".tmp", i.e. snapshot.tmp for snapshot.bin), then renames
// it into place — the standard atomic-replace trick so a crash mid-write
// never leaves a half-written snapshot.bin behind (§4.7). The digest is
// appended after a 4-byte length-delimiter so load can find the JSON body
// without scanning for a separator.
func writeSnapshot(path string, data snapshotFile) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(body)

	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create snapshot temp file: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := f.Write(lenBuf[:]); err != nil {
		f.Close()
		return fmt.Errorf("storage: write snapshot header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("storage: write snapshot body: %w", err)
	}
	if _, err := f.Write(sum[:]); err != nil {
		f.Close()
		return fmt.Errorf("storage: write snapshot digest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("storage: sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: rename snapshot into place: %w", err)
	}
	return syncDir(filepath.Dir(path))
}

// readSnapshot loads and verifies the snapshot at path. A missing file is
// not an error: it reports ok=false so the caller starts from empty state
// plus a full WAL replay.
func readSnapshot(path string) (data snapshotFile, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snapshotFile{}, false, nil
	}
	if err != nil {
		return snapshotFile{}, false, fmt.Errorf("storage: read snapshot: %w", err)
	}
	if len(raw) < 4+blake2b.Size256 {
		return snapshotFile{}, false, fmt.Errorf("%w: truncated snapshot file", ErrSnapshotDigest)
	}

	bodyLen := binary.LittleEndian.Uint32(raw[0:4])
	rest := raw[4:]
	if uint64(len(rest)) != uint64(bodyLen)+blake2b.Size256 {
		return snapshotFile{}, false, fmt.Errorf("%w: length mismatch", ErrSnapshotDigest)
	}

	body := rest[:bodyLen]
	wantSum := rest[bodyLen:]
	gotSum := blake2b.Sum256(body)
	if string(gotSum[:]) != string(wantSum) {
		return snapshotFile{}, false, ErrSnapshotDigest
	}

	var sf snapshotFile
	if err := json.Unmarshal(body, &sf); err != nil {
		return snapshotFile{}, false, fmt.Errorf("storage: decode snapshot: %w", err)
	}
	return sf, true, nil
}

// syncDir fsyncs a directory so a rename into it is durable, not just
// visible. Best-effort: some platforms reject opening a directory for
// read, in which case the error is ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
