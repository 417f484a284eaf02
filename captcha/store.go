package captcha

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const entryVersion1 = 1

var (
	// ErrExpiredOrMissing is returned when no live entry exists for the challenge id.
	ErrExpiredOrMissing = errors.New("captcha expired or missing")
	// ErrMismatch is returned when the answer does not match the stored one.
	ErrMismatch = errors.New("captcha mismatch")
	// ErrBackend wraps Redis failures.
	ErrBackend = errors.New("captcha backend unavailable")
)

// Entry is the stored half of a challenge.
type Entry struct {
	Answer    string
	ExpiresAt int64
}

// takeScript reads and deletes in one step, so at most one caller ever sees
// a given entry.
const takeScript = `
local v = redis.call("GET", KEYS[1])
if v then
  redis.call("DEL", KEYS[1])
end
return v
`

var takeLua = redis.NewScript(takeScript)

// Store keeps expected captcha answers in Redis, one key per challenge.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "aa"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix + ":captcha",
	}
}

func (s *Store) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *Store) Save(ctx context.Context, challengeID string, entry *Entry, ttl time.Duration) error {
	encoded, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Take atomically removes and returns the entry for challengeID.
func (s *Store) Take(ctx context.Context, challengeID string, now time.Time) (*Entry, error) {
	data, err := takeLua.Run(ctx, s.redis, []string{s.key(challengeID)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExpiredOrMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	entry, err := decodeEntry([]byte(data))
	if err != nil {
		return nil, ErrExpiredOrMissing
	}
	if now.Unix() >= entry.ExpiresAt {
		return nil, ErrExpiredOrMissing
	}
	return entry, nil
}

func encodeEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil captcha entry")
	}
	if len(e.Answer) > 255 {
		return nil, errors.New("captcha answer too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(entryVersion1)
	if err := binary.Write(&buf, binary.BigEndian, e.ExpiresAt); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(len(e.Answer)))
	buf.WriteString(e.Answer)
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != entryVersion1 {
		return nil, errors.New("invalid captcha entry version")
	}

	e := &Entry{}
	if err := binary.Read(r, binary.BigEndian, &e.ExpiresAt); err != nil {
		return nil, err
	}
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	answer := make([]byte, n)
	if _, err := io.ReadFull(r, answer); err != nil {
		return nil, err
	}
	e.Answer = string(answer)
	return e, nil
}
