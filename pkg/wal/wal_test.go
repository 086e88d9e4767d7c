package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Op string `json:"op"`
	N  int    `json:"n"`
}

func readEntries(t *testing.T, w *WAL) []entry {
	t.Helper()
	var out []entry
	err := w.ReadAll(func(raw []byte) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestWAL_WriteAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ledger.wal")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(entry{Op: "create", N: 1}))
	require.NoError(t, w.Write(entry{Op: "commit", N: 2}))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []entry{{"create", 1}, {"commit", 2}}, readEntries(t, w))

	// 回放後仍可繼續追加
	require.NoError(t, w.Write(entry{Op: "delete", N: 3}))
	assert.Len(t, readEntries(t, w), 3)
}

func TestWAL_TornTailIsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"op\":\"create\",\"n\":1}\n{\"op\":\"comm"), FileMode))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []entry{{"create", 1}}, readEntries(t, w))
	require.NoError(t, w.Write(entry{Op: "commit", N: 2}))
	assert.Equal(t, []entry{{"create", 1}, {"commit", 2}}, readEntries(t, w))
}

func TestWAL_CorruptLineFailsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"op\":\"create\"}\nnot-json\n"), FileMode))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.ReadAll(func([]byte) error { return nil })
	assert.ErrorContains(t, err, "wal line 2")
}

func TestWAL_WriteAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "ledger.wal"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(entry{Op: "x"}), ErrClosed)
}

var errDiskFull = errors.New("no space left on device")

// faultyFile 包住真實檔案，依設定讓寫入只寫一半、fsync 或截斷失敗
type faultyFile struct {
	*os.File
	partialWrite bool
	failSync     bool
	failTruncate bool
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.partialWrite {
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errDiskFull
	}
	return f.File.Write(p)
}

func (f *faultyFile) Sync() error {
	if f.failSync {
		return errDiskFull
	}
	return f.File.Sync()
}

func (f *faultyFile) Truncate(size int64) error {
	if f.failTruncate {
		return errDiskFull
	}
	return f.File.Truncate(size)
}

// inject 換掉 WAL 底層檔案，回傳可調整故障的包裝
func inject(w *WAL) *faultyFile {
	f := &faultyFile{File: w.file.(*os.File)}
	w.file = f
	return f
}

func TestWAL_FailedWriteIsRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(entry{Op: "create", N: 1}))

	f := inject(w)
	f.partialWrite = true
	err = w.Write(entry{Op: "commit", N: 2})
	require.ErrorIs(t, err, errDiskFull)
	assert.NotErrorIs(t, err, ErrBroken)

	// 回滾後仍可寫入，且下一筆不會接在半行後面
	f.partialWrite = false
	require.NoError(t, w.Write(entry{Op: "commit", N: 3}))
	assert.Equal(t, []entry{{"create", 1}, {"commit", 3}}, readEntries(t, w))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []entry{{"create", 1}, {"commit", 3}}, readEntries(t, w))
}

func TestWAL_FailedSyncIsRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(entry{Op: "create", N: 1}))

	f := inject(w)
	f.failSync = true
	require.ErrorIs(t, w.Write(entry{Op: "commit", N: 2}), errDiskFull)

	// fsync 失敗的那筆不能在回放時出現
	f.failSync = false
	assert.Equal(t, []entry{{"create", 1}}, readEntries(t, w))
	require.NoError(t, w.Write(entry{Op: "commit", N: 3}))
	assert.Equal(t, []entry{{"create", 1}, {"commit", 3}}, readEntries(t, w))
}

func TestWAL_FailedRollbackMarksBroken(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "ledger.wal"))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(entry{Op: "create", N: 1}))

	f := inject(w)
	f.partialWrite = true
	f.failTruncate = true
	err = w.Write(entry{Op: "commit", N: 2})
	require.ErrorIs(t, err, ErrBroken)
	require.ErrorIs(t, err, errDiskFull)

	// 尾端狀態未知，之後的寫入一律拒絕
	f.partialWrite = false
	f.failTruncate = false
	assert.ErrorIs(t, w.Write(entry{Op: "commit", N: 3}), ErrBroken)
}
