package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sort"
	"time"
)

const (
	sessionFormatVersionCurrent = 1

	flagRevoked    = 1 << 0
	flagHasExpires = 1 << 1

	maxMetaEntries = 255
)

// Encode serializes s into the compact binary form kept in Redis. The id
// is not stored; it is the key.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	var flags byte
	if s.Revoked {
		flags |= flagRevoked
	}
	if s.ExpiresAt != nil {
		flags |= flagHasExpires
	}
	buf.WriteByte(flags)

	if err := writeShort(&buf, s.UserID, math.MaxUint8, "userID too long"); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastAccessAt.UnixNano()); err != nil {
		return nil, err
	}
	var expires int64
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.UnixNano()
	}
	if err := binary.Write(&buf, binary.BigEndian, expires); err != nil {
		return nil, err
	}

	if err := writeShort(&buf, s.IP, math.MaxUint8, "ip too long"); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, s.UserAgent, "user agent too long"); err != nil {
		return nil, err
	}

	if len(s.Meta) > maxMetaEntries {
		return nil, errors.New("too many meta entries")
	}
	buf.WriteByte(byte(len(s.Meta)))

	keys := make([]string, 0, len(s.Meta))
	for k := range s.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeShort(&buf, k, math.MaxUint8, "meta key too long"); err != nil {
			return nil, err
		}
		if err := writeLong(&buf, s.Meta[k], "meta value too long"); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &Session{Revoked: flags&flagRevoked != 0}

	if s.UserID, err = readShort(reader); err != nil {
		return nil, err
	}

	var created, lastAccess, expires int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &lastAccess); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.LastAccessAt = time.Unix(0, lastAccess).UTC()
	if flags&flagHasExpires != 0 {
		t := time.Unix(0, expires).UTC()
		s.ExpiresAt = &t
	}

	if s.IP, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.UserAgent, err = readLong(reader); err != nil {
		return nil, err
	}

	metaLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if metaLen > 0 {
		s.Meta = make(map[string]string, metaLen)
		for i := 0; i < int(metaLen); i++ {
			k, err := readShort(reader)
			if err != nil {
				return nil, err
			}
			v, err := readLong(reader)
			if err != nil {
				return nil, err
			}
			s.Meta[k] = v
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}

func writeShort(buf *bytes.Buffer, v string, max int, msg string) error {
	if len(v) > max {
		return errors.New(msg)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeLong(buf *bytes.Buffer, v string, msg string) error {
	if len(v) > math.MaxUint16 {
		return errors.New(msg)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShort(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readLong(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
