package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var errTruncatedRecord = errors.New("memory: truncated allocation record")

// RecordStore persists allocation records across process runs. Records live
// in a leveldb database under big-endian sequence keys, so iteration
// replays them in append order.
type RecordStore struct {
	db   *leveldb.DB
	next uint64
}

// OpenRecordStore opens (or creates) a record database at path.
func OpenRecordStore(path string) (*RecordStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: open record store: %w", err)
	}
	return newRecordStore(db)
}

// OpenMemoryRecordStore keeps the store in memory. Nothing survives Close;
// intended for tests and short-lived analyses.
func OpenMemoryRecordStore() (*RecordStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("memory: open record store: %w", err)
	}
	return newRecordStore(db)
}

func newRecordStore(db *leveldb.DB) (*RecordStore, error) {
	s := new(RecordStore)
	s.db = db

	// Resume the sequence after the last persisted record.
	iter := db.NewIterator(nil, nil)
	if iter.Last() && len(iter.Key()) == 8 {
		s.next = binary.BigEndian.Uint64(iter.Key()) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: open record store: %w", err)
	}
	return s, nil
}

func (s *RecordStore) Append(record AllocationRecord) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, s.next)
	if err := s.db.Put(key, encodeRecord(record), nil); err != nil {
		return fmt.Errorf("memory: append record: %w", err)
	}
	s.next++
	return nil
}

// Each replays every persisted record in append order.
func (s *RecordStore) Each(fn func(record AllocationRecord) error) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		record, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *RecordStore) Len() uint64 {
	return s.next
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

// encodeRecord packs a record into a compact length-prefixed binary form.
func encodeRecord(record AllocationRecord) []byte {
	buf := make([]byte, 0, 16+len(record.TypeName)+len(record.SourceFile)+len(record.Value))
	buf = appendString(buf, record.TypeName)
	buf = appendString(buf, record.SourceFile)
	buf = binary.AppendUvarint(buf, uint64(record.SourceLine))
	buf = binary.AppendUvarint(buf, record.ByteSize)
	buf = appendString(buf, record.Value)
	if record.Retained {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeRecord(data []byte) (AllocationRecord, error) {
	var record AllocationRecord
	var err error
	if record.TypeName, data, err = readString(data); err != nil {
		return record, err
	}
	if record.SourceFile, data, err = readString(data); err != nil {
		return record, err
	}
	line, n := binary.Uvarint(data)
	if n <= 0 {
		return record, errTruncatedRecord
	}
	record.SourceLine = int(line)
	data = data[n:]
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return record, errTruncatedRecord
	}
	record.ByteSize = size
	data = data[n:]
	if record.Value, data, err = readString(data); err != nil {
		return record, err
	}
	if len(data) != 1 {
		return record, errTruncatedRecord
	}
	record.Retained = data[0] == 1
	return record, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// readString decodes a length-prefixed string, replacing malformed byte
// sequences instead of failing the whole record.
func readString(data []byte) (string, []byte, error) {
	length, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < length {
		return "", nil, errTruncatedRecord
	}
	raw := string(data[n : n+int(length)])
	return strings.ToValidUTF8(raw, "�"), data[n+int(length):], nil
}
