package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 檔案權限: 擁有者讀寫，其他人唯讀
const FileMode fs.FileMode = 0644

var (
	// ErrClosed WAL 已關閉
	ErrClosed = errors.New("wal closed")
	// ErrBroken 寫入失敗後無法回滾，檔案尾端狀態未知，需重新開啟
	ErrBroken = errors.New("wal broken")
)

// logFile WAL 用到的檔案操作，*os.File 即滿足
type logFile interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.Seeker
	io.Closer
	Stat() (fs.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
//
// 每筆紀錄一行，Write 回傳前已 fsync。
// 重新開啟時若最後一行寫到一半 (程序中途崩潰)，該行會被截掉。
// 寫入或 fsync 失敗時截回寫入前的長度，截不回去就標記為 broken。
type WAL struct {
	file   logFile
	mu     sync.Mutex
	size   int64
	closed bool
	broken bool
}

// Open 開啟或建立 WAL 檔案，必要時建立上層目錄
//
// 參數:
//
//	path: 檔案路徑
//
// 回傳:
//
//	*WAL: WAL 實例
//	error: 開檔或修復尾端失敗
func Open(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create wal dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, err
	}
	w := &WAL{file: file}
	if err := w.repairTail(); err != nil {
		_ = file.Close()
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	w.size = info.Size()
	return w, nil
}

// repairTail 截掉沒有換行結尾的最後一行
func (w *WAL) repairTail() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := w.file.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}

	// 往回找最後一個換行
	var (
		buf    = make([]byte, 4096)
		offset = size
		keep   int64
	)
	for offset > 0 {
		n := int64(len(buf))
		if offset < n {
			n = offset
		}
		offset -= n
		if _, err := w.file.ReadAt(buf[:n], offset); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep = offset + int64(i) + 1
			break
		}
	}
	if err := w.file.Truncate(keep); err != nil {
		return fmt.Errorf("truncate torn wal record: %w", err)
	}
	return w.file.Sync()
}

// Write 寫入一筆紀錄並刷入硬碟
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.broken {
		return ErrBroken
	}
	if _, err := w.file.Write(line); err != nil {
		return w.rollback(err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(err)
	}
	w.size += int64(len(line))
	return nil
}

// rollback 截掉失敗寫入留下的位元組，回傳原本的寫入錯誤
func (w *WAL) rollback(cause error) error {
	if err := w.file.Truncate(w.size); err != nil {
		w.broken = true
		return fmt.Errorf("%w: %w (truncate: %w)", ErrBroken, cause, err)
	}
	// 截斷結果由下一次成功的 Sync 一併刷入
	return fmt.Errorf("write wal record: %w", cause)
}

// ReadAll 依寫入順序逐筆回放
// callback 收到單行 JSON，不會一次把整個檔案載入記憶體
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return fmt.Errorf("wal line %d: invalid json", lineNo)
		}
		if err := callback(line); err != nil {
			return fmt.Errorf("wal line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
