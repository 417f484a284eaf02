package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	accessFormatVersion = 1
	onlineFormatVersion = 1

	maxFieldLen = 1<<16 - 1
	maxRoles    = 1 << 10
)

func EncodeAccess(r *AccessRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(accessFormatVersion)

	for _, s := range []string{r.TokenID, r.RefreshID, r.UserID, r.Username} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, r.PasswordVersion); err != nil {
		return nil, err
	}

	if len(r.Roles) > maxRoles {
		return nil, errors.New("too many roles")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Roles))); err != nil {
		return nil, err
	}
	for _, role := range r.Roles {
		if err := writeString(&buf, role); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeAccess(data []byte) (*AccessRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != accessFormatVersion {
		return nil, errors.New("invalid access record version")
	}

	r := &AccessRecord{}
	for _, dst := range []*string{&r.TokenID, &r.RefreshID, &r.UserID, &r.Username} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if err := binary.Read(reader, binary.BigEndian, &r.PasswordVersion); err != nil {
		return nil, err
	}

	var roleCount uint16
	if err := binary.Read(reader, binary.BigEndian, &roleCount); err != nil {
		return nil, err
	}
	if int(roleCount) > maxRoles {
		return nil, errors.New("too many roles")
	}
	if roleCount > 0 {
		r.Roles = make([]string, roleCount)
		for i := range r.Roles {
			if r.Roles[i], err = readString(reader); err != nil {
				return nil, err
			}
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in access record")
	}
	return r, nil
}

func EncodeOnline(o *OnlineSession) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(onlineFormatVersion)

	for _, s := range []string{o.TokenID, o.UserID, o.Username, o.IP, o.UserAgent} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, o.LoginAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, o.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeOnline(data []byte) (*OnlineSession, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != onlineFormatVersion {
		return nil, errors.New("invalid online session version")
	}

	o := &OnlineSession{}
	for _, dst := range []*string{&o.TokenID, &o.UserID, &o.Username, &o.IP, &o.UserAgent} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if err := binary.Read(reader, binary.BigEndian, &o.LoginAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &o.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in online session")
	}
	return o, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return errors.New("field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
