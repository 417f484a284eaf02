package permission

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const setFormatVersion = 1

const (
	maxSetSize = 1 << 16
	maxKeyLen  = 1 << 10
)

// EncodeSet serialises s for the permission cache. Keys are written sorted so
// equal sets produce equal bytes.
func EncodeSet(s Set) ([]byte, error) {
	if len(s) > maxSetSize {
		return nil, errors.New("permission set too large")
	}

	var buf bytes.Buffer
	buf.WriteByte(setFormatVersion)
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(s))); err != nil {
		return nil, err
	}
	for _, k := range s.Sorted() {
		if len(k) > maxKeyLen {
			return nil, errors.New("permission key too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(k))); err != nil {
			return nil, err
		}
		buf.WriteString(k)
	}
	return buf.Bytes(), nil
}

// DecodeSet is the inverse of EncodeSet.
func DecodeSet(data []byte) (Set, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != setFormatVersion {
		return nil, errors.New("invalid permission set version")
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count > maxSetSize {
		return nil, errors.New("permission set too large")
	}

	s := make(Set, count)
	for i := uint32(0); i < count; i++ {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		if int(n) > maxKeyLen {
			return nil, errors.New("permission key too long")
		}
		key := make([]byte, n)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		s[string(key)] = struct{}{}
	}
	if r.Len() != 0 {
		return nil, errors.New("trailing bytes in permission set")
	}
	return s, nil
}
