package lsm

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/config"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

var errClosed = errors.New("storage closed")

// IndexEntry stores the location of a block in a specific segment file.
type IndexEntry struct {
	SegmentID uint64
	Offset    int64
	Size      int64
	Seq       uint64
}

// LSMAdapter implements port.BlockStore using segmented append-only logs and
// an in-memory index.
//
// Record format:
//
//	Op (1) | Seq (8) | ID (8) | Data_Len (4) | Data (N) | CRC32 (4)
//
// Seq grows with every record written, so replay and compaction can always
// tell which of two records for the same id is newer regardless of the
// segment that holds it.
type LSMAdapter struct {
	indexMu             sync.RWMutex
	fileMu              sync.Mutex
	compactionMu        sync.Mutex
	dirPath             string
	activeFile          *os.File
	activeFileID        uint64
	activeSize          int64
	maxSegmentSize      int64
	index               map[ring.ID]IndexEntry
	seq                 uint64
	segments            int
	fsync               bool
	compactionThreshold int
	closed              bool
}

const (
	// DefaultMaxSegmentSize is 64MB
	DefaultMaxSegmentSize = 64 * 1024 * 1024
	SegmentPrefix         = "segment_"
	SegmentSuffix         = ".log"

	opPut       byte = 1
	opTombstone byte = 2

	headerSize  = 1 + 8 + 8 + 4
	trailerSize = 4
)

// Ensure LSMAdapter implements BlockStore
var _ port.BlockStore = (*LSMAdapter)(nil)

// NewLSMAdapter initializes the storage engine and replays existing segments.
func NewLSMAdapter(cfg config.StorageConfig) (*LSMAdapter, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	adapter := &LSMAdapter{
		dirPath:             filepath.Clean(cfg.DataDir),
		index:               make(map[ring.ID]IndexEntry),
		maxSegmentSize:      DefaultMaxSegmentSize,
		fsync:               cfg.FSync,
		compactionThreshold: cfg.CompactionThreshold,
	}

	if err := adapter.replayLogs(); err != nil {
		return nil, fmt.Errorf("failed to replay logs: %w", err)
	}

	return adapter, nil
}

func (a *LSMAdapter) getSegmentPath(id uint64) string {
	return filepath.Join(a.dirPath, fmt.Sprintf("%s%05d%s", SegmentPrefix, id, SegmentSuffix))
}

func (a *LSMAdapter) segmentIDs(dir string) ([]uint64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, SegmentPrefix+"*"+SegmentSuffix))
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		var id uint64
		if _, err := fmt.Sscanf(filepath.Base(m), SegmentPrefix+"%d"+SegmentSuffix, &id); err == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (a *LSMAdapter) openActiveFileLocked() error {
	if a.activeFileID == 0 {
		a.activeFileID = 1
	}
	filePath := a.getSegmentPath(a.activeFileID)

	// G304: filePath is constructed from internal data dir and ID
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304
	if err != nil {
		return err
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return err
	}
	a.activeFile = file
	a.activeSize = end
	return nil
}

// replayLogs reads all segment files and rebuilds the index.
func (a *LSMAdapter) replayLogs() error {
	ids, err := a.segmentIDs(a.dirPath)
	if err != nil {
		return err
	}

	// tombstones remembers the newest delete per id so an older put replayed
	// from a later segment cannot resurrect it.
	tombstones := make(map[ring.ID]uint64)
	for _, id := range ids {
		if err := a.replaySegment(id, tombstones); err != nil {
			return err
		}
		a.activeFileID = id
	}
	a.segments = max(len(ids), 1)

	a.fileMu.Lock()
	defer a.fileMu.Unlock()
	return a.openActiveFileLocked()
}

func (a *LSMAdapter) replaySegment(segmentID uint64, tombstones map[ring.ID]uint64) error {
	path := a.getSegmentPath(segmentID)
	file, err := os.OpenFile(path, os.O_RDWR, 0600) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	offset := int64(0)
	truncated := false

	for {
		rec, size, err := readRecord(reader, a.maxRecordData())
		if err == io.EOF {
			break
		}
		if err != nil {
			truncated = true
			logger.Warnw("Corrupt record during replay", "segment_id", segmentID, "offset", offset, "error", err.Error())
			break
		}

		a.seq = max(a.seq, rec.seq)
		switch rec.op {
		case opPut:
			if rec.seq > tombstones[rec.id] {
				if cur, ok := a.index[rec.id]; !ok || rec.seq > cur.Seq {
					a.index[rec.id] = IndexEntry{SegmentID: segmentID, Offset: offset, Size: size, Seq: rec.seq}
				}
			}
		case opTombstone:
			if rec.seq > tombstones[rec.id] {
				tombstones[rec.id] = rec.seq
			}
			if cur, ok := a.index[rec.id]; ok && cur.Seq < rec.seq {
				delete(a.index, rec.id)
			}
		}
		offset += size
	}

	if truncated {
		if err := file.Truncate(offset); err != nil {
			return fmt.Errorf("failed to truncate partial segment %d: %w", segmentID, err)
		}
		logger.Warnw("Truncated partial segment tail during replay", "segment_id", segmentID, "valid_bytes", offset)
	}

	return nil
}

func (a *LSMAdapter) maxRecordData() int64 {
	return max(a.maxSegmentSize*4, domain.MaxBlockSize)
}

type record struct {
	op   byte
	seq  uint64
	id   ring.ID
	data []byte
}

func encodeRecord(rec record) []byte {
	buf := make([]byte, headerSize+len(rec.data)+trailerSize)
	buf[0] = rec.op
	binary.BigEndian.PutUint64(buf[1:9], rec.seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(rec.id))
	binary.BigEndian.PutUint32(buf[17:21], uint32(len(rec.data))) // #nosec G115
	copy(buf[headerSize:], rec.data)
	sum := crc32.ChecksumIEEE(buf[:headerSize+len(rec.data)])
	binary.BigEndian.PutUint32(buf[headerSize+len(rec.data):], sum)
	return buf
}

// readRecord returns io.EOF only at a clean record boundary.
func readRecord(r io.Reader, maxData int64) (record, int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return record{}, 0, io.EOF
		}
		return record{}, 0, fmt.Errorf("failed to read header: %w", err)
	}

	rec := record{
		op:  header[0],
		seq: binary.BigEndian.Uint64(header[1:9]),
		id:  ring.ID(binary.BigEndian.Uint64(header[9:17])),
	}
	if rec.op != opPut && rec.op != opTombstone {
		return record{}, 0, fmt.Errorf("unknown op %d", rec.op)
	}
	dataLen := int64(binary.BigEndian.Uint32(header[17:21]))
	if dataLen > maxData {
		return record{}, 0, fmt.Errorf("data len %d too large", dataLen)
	}

	body := make([]byte, dataLen+trailerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return record{}, 0, fmt.Errorf("failed to read body: %w", err)
	}
	rec.data = body[:dataLen]

	h := crc32.NewIEEE()
	_, _ = h.Write(header)
	_, _ = h.Write(rec.data)
	if h.Sum32() != binary.BigEndian.Uint32(body[dataLen:]) {
		return record{}, 0, fmt.Errorf("checksum mismatch for %s", rec.id)
	}
	return rec, headerSize + dataLen + trailerSize, nil
}

// appendLocked writes rec to the active segment and returns where it landed.
func (a *LSMAdapter) appendLocked(rec record) (IndexEntry, error) {
	if a.activeFile == nil {
		return IndexEntry{}, errClosed
	}

	buf := encodeRecord(rec)
	offset := a.activeSize
	if _, err := a.activeFile.Write(buf); err != nil {
		return IndexEntry{}, err
	}
	a.activeSize += int64(len(buf))

	if a.fsync {
		if err := a.activeFile.Sync(); err != nil {
			return IndexEntry{}, err
		}
	}

	return IndexEntry{
		SegmentID: a.activeFileID,
		Offset:    offset,
		Size:      int64(len(buf)),
		Seq:       rec.seq,
	}, nil
}

// rotateLocked starts a new segment once the active one is full.
func (a *LSMAdapter) rotateLocked() {
	if a.activeSize <= a.maxSegmentSize {
		return
	}
	_ = a.activeFile.Close()
	a.activeFile = nil
	a.activeFileID++
	if err := a.openActiveFileLocked(); err != nil {
		logger.Errorw("Segment rotation failed", "segment_id", a.activeFileID, "error", err.Error())
		return
	}
	a.segments++

	if a.compactionThreshold > 0 && a.segments > a.compactionThreshold {
		go func() {
			if err := a.Compact(); err != nil && !errors.Is(err, errClosed) {
				logger.Warnw("Background compaction failed", "error", err.Error())
			}
		}()
	}
}

// Put appends block under id.
func (a *LSMAdapter) Put(ctx context.Context, id ring.ID, block domain.Block) error {
	if int64(len(block)) > a.maxRecordData() {
		return fmt.Errorf("block of %d bytes too large", len(block))
	}

	a.fileMu.Lock()
	defer a.fileMu.Unlock()

	a.seq++
	entry, err := a.appendLocked(record{op: opPut, seq: a.seq, id: id, data: block})
	if err != nil {
		return err
	}

	a.indexMu.Lock()
	a.index[id] = entry
	a.indexMu.Unlock()

	a.rotateLocked()
	return nil
}

// Delete appends a tombstone for id. Space is not reclaimed until compaction.
func (a *LSMAdapter) Delete(ctx context.Context, id ring.ID) error {
	a.fileMu.Lock()
	defer a.fileMu.Unlock()

	a.indexMu.RLock()
	_, exists := a.index[id]
	a.indexMu.RUnlock()
	if !exists {
		return nil
	}

	a.seq++
	if _, err := a.appendLocked(record{op: opTombstone, seq: a.seq, id: id}); err != nil {
		return err
	}

	a.indexMu.Lock()
	delete(a.index, id)
	a.indexMu.Unlock()

	a.rotateLocked()
	return nil
}

// Get reads the block stored under id.
func (a *LSMAdapter) Get(ctx context.Context, id ring.ID) (domain.Block, error) {
	// A concurrent compaction may remove the segment between the index lookup
	// and the read. The second attempt sees the republished index.
	for attempt := 0; ; attempt++ {
		a.indexMu.RLock()
		entry, exists := a.index[id]
		a.indexMu.RUnlock()
		if !exists {
			return nil, domain.ErrBlockNotFound
		}

		rec, err := a.readEntry(entry)
		if errors.Is(err, os.ErrNotExist) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.id != id {
			return nil, fmt.Errorf("index points %s at a record for %s", id, rec.id)
		}
		return domain.Block(rec.data), nil
	}
}

func (a *LSMAdapter) readEntry(entry IndexEntry) (record, error) {
	path := filepath.Clean(a.getSegmentPath(entry.SegmentID))
	// Open a dedicated file handle for reading to allow concurrency
	// independent of writer's activeFile cursor
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return record{}, err
	}
	defer func() { _ = f.Close() }()

	rec, _, err := readRecord(io.NewSectionReader(f, entry.Offset, entry.Size), a.maxRecordData())
	if err == io.EOF {
		return record{}, io.ErrUnexpectedEOF
	}
	return rec, err
}

// Scan calls fn for every stored block in ring order.
func (a *LSMAdapter) Scan(ctx context.Context, fn func(id ring.ID, block domain.Block) error) error {
	a.indexMu.RLock()
	ids := make([]ring.ID, 0, len(a.index))
	for id := range a.index {
		ids = append(ids, id)
	}
	a.indexMu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := a.Get(ctx, id)
		if errors.Is(err, domain.ErrBlockNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", id, err)
		}
		if err := fn(id, block); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of live blocks.
func (a *LSMAdapter) Len() int {
	a.indexMu.RLock()
	defer a.indexMu.RUnlock()
	return len(a.index)
}

// Close closes the active segment. Pending compactions finish first.
func (a *LSMAdapter) Close() error {
	a.compactionMu.Lock()
	defer a.compactionMu.Unlock()

	a.fileMu.Lock()
	defer a.fileMu.Unlock()
	a.closed = true
	if a.activeFile != nil {
		err := a.activeFile.Close()
		a.activeFile = nil
		return err
	}
	return nil
}

// Compact rewrites the live records of every sealed segment into fresh
// segments and removes the segments nothing points at any more.
func (a *LSMAdapter) Compact() error {
	a.compactionMu.Lock()
	defer a.compactionMu.Unlock()

	// Rotate active segment so new writes land outside the compaction snapshot.
	a.fileMu.Lock()
	if a.closed {
		a.fileMu.Unlock()
		return errClosed
	}
	if a.activeFile != nil {
		_ = a.activeFile.Sync()
		_ = a.activeFile.Close()
		a.activeFile = nil
	}
	oldActiveID := a.activeFileID
	a.activeFileID++
	if err := a.openActiveFileLocked(); err != nil {
		a.fileMu.Unlock()
		return fmt.Errorf("failed to open new active file during compaction: %w", err)
	}
	// Reserve ids for the compacted output above the new active segment.
	nextSegmentID := a.activeFileID + 1
	a.fileMu.Unlock()

	logger.Infow("Compaction started", "max_segment_id", oldActiveID)

	compactPath := filepath.Join(a.dirPath, "compact")
	if err := os.RemoveAll(compactPath); err != nil {
		return err
	}
	if err := os.MkdirAll(compactPath, 0750); err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(compactPath) }()

	a.indexMu.RLock()
	snapshot := make(map[ring.ID]IndexEntry)
	for id, entry := range a.index {
		if entry.SegmentID <= oldActiveID {
			snapshot[id] = entry
		}
	}
	a.indexMu.RUnlock()

	keys := make([]ring.ID, 0, len(snapshot))
	for id := range snapshot {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	newIndex := make(map[ring.ID]IndexEntry, len(snapshot))

	curID := uint64(1)
	tempPath := func(id uint64) string {
		return filepath.Clean(filepath.Join(compactPath, fmt.Sprintf("%s%05d%s", SegmentPrefix, id, SegmentSuffix)))
	}
	f, err := os.OpenFile(tempPath(curID), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}

	offset := int64(0)
	for _, id := range keys {
		entry := snapshot[id]
		rec, err := a.readEntry(entry)
		if err != nil {
			logger.Warnw("Compaction skipped unreadable record", "key", id.String(), "error", err.Error())
			continue
		}

		buf := encodeRecord(rec)
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return err
		}
		newIndex[id] = IndexEntry{SegmentID: curID, Offset: offset, Size: int64(len(buf)), Seq: rec.seq}
		offset += int64(len(buf))

		if offset > a.maxSegmentSize {
			if err := f.Close(); err != nil {
				return err
			}
			curID++
			f, err = os.OpenFile(tempPath(curID), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
			if err != nil {
				return err
			}
			offset = 0
		}
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	a.fileMu.Lock()
	a.indexMu.Lock()

	// Move compacted segments into their permanent ids.
	tempIDs, _ := a.segmentIDs(compactPath)
	for _, tempID := range tempIDs {
		destID := nextSegmentID
		nextSegmentID++
		if err := os.Rename(tempPath(tempID), a.getSegmentPath(destID)); err != nil {
			a.indexMu.Unlock()
			a.fileMu.Unlock()
			return err
		}
		for k, v := range newIndex {
			if v.SegmentID == tempID {
				v.SegmentID = destID
				newIndex[k] = v
			}
		}
	}
	// New writes must land above the compacted segments.
	if a.activeFileID < nextSegmentID {
		if a.activeSize == 0 {
			_ = a.activeFile.Close()
			_ = os.Remove(a.getSegmentPath(a.activeFileID))
		} else {
			_ = a.activeFile.Close()
		}
		a.activeFile = nil
		a.activeFileID = nextSegmentID
		if err := a.openActiveFileLocked(); err != nil {
			a.indexMu.Unlock()
			a.fileMu.Unlock()
			return fmt.Errorf("failed to reopen active file after compaction: %w", err)
		}
	}

	// Keep whatever changed while the snapshot was being rewritten.
	for id, v := range newIndex {
		live, exists := a.index[id]
		if !exists || live.Seq != v.Seq {
			delete(newIndex, id)
		}
	}
	for id, live := range a.index {
		if _, exists := newIndex[id]; !exists && live.SegmentID > oldActiveID {
			newIndex[id] = live
		}
	}
	a.index = newIndex

	// Segments written after the snapshot may hold tombstones that must
	// outlive this compaction. Only sealed segments up to oldActiveID are
	// candidates for removal, and records that could not be read are dropped
	// with them.
	referenced := make(map[uint64]struct{}, len(a.index)+1)
	for _, entry := range a.index {
		referenced[entry.SegmentID] = struct{}{}
	}
	referenced[a.activeFileID] = struct{}{}

	a.indexMu.Unlock()
	a.fileMu.Unlock()

	segmentIDs, _ := a.segmentIDs(a.dirPath)
	remaining := 0
	for _, segID := range segmentIDs {
		_, keep := referenced[segID]
		if keep || segID > oldActiveID {
			remaining++
			continue
		}
		_ = os.Remove(a.getSegmentPath(segID))
	}

	a.fileMu.Lock()
	a.segments = remaining
	a.fileMu.Unlock()

	logger.Infow("Compaction finished", "compacted_segments_upto", oldActiveID, "live_keys", len(newIndex))
	return nil
}
