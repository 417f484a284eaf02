package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or server error returned by Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRecordNotFound is returned when an access record or online session does not exist.
var ErrRecordNotFound = errors.New("session record not found")

// ErrRefreshNotFound is returned when the refresh record does not exist.
var ErrRefreshNotFound = errors.New("refresh record not found")

// ErrRefreshExpired is returned when the refresh record exists but its expiry has passed.
var ErrRefreshExpired = errors.New("refresh record expired")

// ErrRefreshHashMismatch is returned when the presented refresh secret does not match.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRefreshClaimed is returned when another caller is already rotating the same refresh token.
var ErrRefreshClaimed = errors.New("refresh already claimed")

const (
	claimStatusNotFound int64 = 0
	claimStatusExpired  int64 = 1
	claimStatusMismatch int64 = 2
	claimStatusBusy     int64 = 3
	claimStatusClaimed  int64 = 4
)

const claimRefreshScript = `
local hash = redis.call("HGET", KEYS[1], "h")
if not hash then
  return {0}
end
if hash ~= ARGV[1] then
  return {2}
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[2]) then
  return {1}
end
if not redis.call("SET", KEYS[2], "1", "NX", "PX", ARGV[3]) then
  return {3}
end
return {4, redis.call("HGET", KEYS[1], "aid"), redis.call("HGET", KEYS[1], "uid"), exp}
`

var claimRefreshLua = redis.NewScript(claimRefreshScript)

const retirePairScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("DEL", KEYS[2], KEYS[3], KEYS[4])
redis.call("ZREM", KEYS[5], ARGV[1])
redis.call("SREM", KEYS[6], ARGV[1])
if redis.call("GET", KEYS[7]) == ARGV[1] then
  redis.call("DEL", KEYS[7])
end
return existed
`

var retirePairLua = redis.NewScript(retirePairScript)

const seedPasswordVersionScript = `
local cur = redis.call("GET", KEYS[1])
local floor = tonumber(ARGV[1])
if not cur or tonumber(cur) < floor then
  redis.call("SET", KEYS[1], ARGV[1])
  return floor
end
return tonumber(cur)
`

var seedPasswordVersionLua = redis.NewScript(seedPasswordVersionScript)

const advancePasswordVersionScript = `
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local v = math.max(cur + 1, tonumber(ARGV[1]))
redis.call("SET", KEYS[1], v)
return v
`

var advancePasswordVersionLua = redis.NewScript(advancePasswordVersionScript)

const swapActiveScript = `
local prev = redis.call("GET", KEYS[1])
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
if not prev then
  return ""
end
return prev
`

var swapActiveLua = redis.NewScript(swapActiveScript)

const casActiveScript = `
local cur = redis.call("GET", KEYS[1])
if cur and cur ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var casActiveLua = redis.NewScript(casActiveScript)

// Store is the Redis-backed session cache: access and refresh records,
// password versions, cached permission sets, the single-device active token
// and the online-session registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store] under the given key prefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "aa"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) accessKey(tokenID string) string    { return s.prefix + ":at:" + tokenID }
func (s *Store) refreshKey(refreshID string) string { return s.prefix + ":rt:" + refreshID }
func (s *Store) claimKey(refreshID string) string   { return s.prefix + ":rtc:" + refreshID }
func (s *Store) versionKey(userID string) string    { return s.prefix + ":pv:" + userID }
func (s *Store) permKey(userID string) string       { return s.prefix + ":perm:" + userID }
func (s *Store) activeKey(userID string) string     { return s.prefix + ":active:" + userID }
func (s *Store) onlineKey(tokenID string) string    { return s.prefix + ":os:" + tokenID }
func (s *Store) onlineIndexKey() string             { return s.prefix + ":osidx" }
func (s *Store) userIndexKey(userID string) string  { return s.prefix + ":ou:" + userID }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

/* ==== TOKEN PAIRS ==== */

// SaveIssued writes the access record, refresh record and online session of
// a freshly minted pair in one MULTI.
//
//	Performance: 1 round trip (MULTI of 8 commands).
func (s *Store) SaveIssued(ctx context.Context, p *IssuedPair) error {
	if p == nil || p.Access.TokenID == "" || p.Refresh.RefreshID == "" {
		return errors.New("incomplete token pair")
	}
	if p.TTL <= 0 {
		return errors.New("token pair ttl must be positive")
	}

	access, err := EncodeAccess(&p.Access)
	if err != nil {
		return err
	}
	online, err := EncodeOnline(&p.Online)
	if err != nil {
		return err
	}

	refreshKey := s.refreshKey(p.Refresh.RefreshID)
	userIndex := s.userIndexKey(p.Access.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(p.Access.TokenID), access, p.TTL)
		pipe.HSet(ctx, refreshKey,
			"aid", p.Refresh.AccessTokenID,
			"uid", p.Refresh.UserID,
			"exp", p.Refresh.ExpiresAt,
			"h", p.RefreshHash[:],
		)
		pipe.Expire(ctx, refreshKey, p.TTL)
		pipe.Set(ctx, s.onlineKey(p.Access.TokenID), online, p.TTL)
		pipe.ZAdd(ctx, s.onlineIndexKey(), redis.Z{Score: float64(p.Online.LoginAt), Member: p.Access.TokenID})
		pipe.SAdd(ctx, userIndex, p.Access.TokenID)
		pipe.Expire(ctx, userIndex, p.TTL)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// GetAccess reads the access record for tokenID.
func (s *Store) GetAccess(ctx context.Context, tokenID string) (*AccessRecord, error) {
	data, err := s.redis.Get(ctx, s.accessKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, unavailable(err)
	}
	return DecodeAccess(data)
}

// GetOnline reads the online session registered for tokenID.
func (s *Store) GetOnline(ctx context.Context, tokenID string) (*OnlineSession, error) {
	data, err := s.redis.Get(ctx, s.onlineKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, unavailable(err)
	}
	return DecodeOnline(data)
}

// RetirePair deletes every key belonging to tokenID's pair: access record,
// refresh record and claim, online session, index entries and (when it still
// points at tokenID) the active-token slot. It reports whether the access
// record existed. Retiring an unknown token is a no-op.
//
//	Performance: 1 GET + 1 EVALSHA.
func (s *Store) RetirePair(ctx context.Context, tokenID string) (bool, error) {
	var userID, refreshID string

	rec, err := s.GetAccess(ctx, tokenID)
	switch {
	case err == nil:
		userID, refreshID = rec.UserID, rec.RefreshID
	case errors.Is(err, ErrRecordNotFound):
		// Orphaned registry entry: recover the owner from the online session.
		online, onlineErr := s.GetOnline(ctx, tokenID)
		if onlineErr != nil && !errors.Is(onlineErr, ErrRecordNotFound) {
			return false, onlineErr
		}
		if online != nil {
			userID = online.UserID
		}
	default:
		return false, err
	}

	keys := []string{
		s.accessKey(tokenID),
		s.refreshKey(refreshID),
		s.claimKey(refreshID),
		s.onlineKey(tokenID),
		s.onlineIndexKey(),
		s.userIndexKey(userID),
		s.activeKey(userID),
	}
	existed, err := retirePairLua.Run(ctx, s.redis, keys, tokenID).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return existed == 1, nil
}

// RetireUser retires every pair registered for userID and clears the
// active-token slot. It returns the number of access records removed.
//
// Pairs minted concurrently with this call may survive it; callers that need
// a hard cut also bump the password version.
func (s *Store) RetireUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, unavailable(err)
	}

	removed := 0
	for _, id := range ids {
		existed, err := s.RetirePair(ctx, id)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
		}
	}

	if err := s.redis.Del(ctx, s.userIndexKey(userID), s.activeKey(userID)).Err(); err != nil {
		return removed, unavailable(err)
	}
	return removed, nil
}

/* ==== REFRESH ==== */

// ClaimRefresh validates the presented refresh secret hash and, when valid
// and unexpired, takes a short exclusive claim on the refresh record so that
// concurrent rotations of the same token cannot both succeed. The claim is
// released by RetirePair or by expiry.
//
//	Performance: 1 EVALSHA.
func (s *Store) ClaimRefresh(
	ctx context.Context,
	refreshID string,
	hash [32]byte,
	now time.Time,
	claimTTL time.Duration,
) (*RefreshRecord, error) {
	if claimTTL <= 0 {
		claimTTL = 10 * time.Second
	}

	result, err := claimRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.refreshKey(refreshID), s.claimKey(refreshID)},
		hash[:],
		now.Unix(),
		claimTTL.Milliseconds(),
	).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid claim script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claim script status", ErrRedisUnavailable)
	}

	switch code {
	case claimStatusNotFound:
		return nil, ErrRefreshNotFound
	case claimStatusExpired:
		return nil, ErrRefreshExpired
	case claimStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case claimStatusBusy:
		return nil, ErrRefreshClaimed
	case claimStatusClaimed:
		if len(parts) < 4 {
			return nil, fmt.Errorf("%w: missing claim payload", ErrRedisUnavailable)
		}
		rec := &RefreshRecord{
			RefreshID:     refreshID,
			AccessTokenID: scriptString(parts[1]),
			UserID:        scriptString(parts[2]),
		}
		if exp, ok := parts[3].(int64); ok {
			rec.ExpiresAt = exp
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown claim script status", ErrRedisUnavailable)
	}
}

// ReleaseRefreshClaim drops a claim taken by ClaimRefresh so the refresh token
// can be retried after a failed rotation.
func (s *Store) ReleaseRefreshClaim(ctx context.Context, refreshID string) error {
	if err := s.redis.Del(ctx, s.claimKey(refreshID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func scriptString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

/* ==== PASSWORD VERSION ==== */

// GetPasswordVersion returns the live password version; ok is false when the
// counter has never been seeded (or was lost).
func (s *Store) GetPasswordVersion(ctx context.Context, userID string) (int64, bool, error) {
	v, err := s.redis.Get(ctx, s.versionKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, unavailable(err)
	}
	return v, true, nil
}

// SeedPasswordVersion raises the live counter to at least floor (the version
// held by the identity store) and returns the resulting live value.
func (s *Store) SeedPasswordVersion(ctx context.Context, userID string, floor int64) (int64, error) {
	v, err := seedPasswordVersionLua.Run(ctx, s.redis, []string{s.versionKey(userID)}, floor).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return v, nil
}

// BumpPasswordVersion increments the live counter, revoking every token minted
// under an earlier version.
func (s *Store) BumpPasswordVersion(ctx context.Context, userID string) (int64, error) {
	v, err := s.redis.Incr(ctx, s.versionKey(userID)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return v, nil
}

// AdvancePasswordVersion moves the live counter past its current value and
// to at least floor, the version the identity store just wrote. Every token
// minted before the call carries a smaller version afterwards.
func (s *Store) AdvancePasswordVersion(ctx context.Context, userID string, floor int64) (int64, error) {
	v, err := advancePasswordVersionLua.Run(ctx, s.redis, []string{s.versionKey(userID)}, floor).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return v, nil
}

/* ==== PERMISSION CACHE ==== */

// GetPermissions returns the cached permission set; ok is false on a miss.
func (s *Store) GetPermissions(ctx context.Context, userID string) (permission.Set, bool, error) {
	data, err := s.redis.Get(ctx, s.permKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	set, err := permission.DecodeSet(data)
	if err != nil {
		// A corrupt entry is treated as a miss and recomputed.
		return nil, false, nil
	}
	return set, true, nil
}

// SetPermissions caches set for ttl.
func (s *Store) SetPermissions(ctx context.Context, userID string, set permission.Set, ttl time.Duration) error {
	data, err := permission.EncodeSet(set)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.permKey(userID), data, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// InvalidatePermissions drops the cached sets of the given users.
func (s *Store) InvalidatePermissions(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = s.permKey(id)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// InvalidateAllPermissions drops every cached permission set. It scans the
// keyspace and is meant for role-definition edits, not request paths.
func (s *Store) InvalidateAllPermissions(ctx context.Context) (int, error) {
	pattern := s.prefix + ":perm:*"
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return total, unavailable(err)
		}
		if len(keys) > 0 {
			n, err := s.redis.Del(ctx, keys...).Result()
			if err != nil {
				return total, unavailable(err)
			}
			total += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return total, nil
}

/* ==== SINGLE DEVICE ==== */

// SetActiveToken makes tokenID the user's active token (last writer wins) and
// returns the previously active token id, if any.
func (s *Store) SetActiveToken(ctx context.Context, userID, tokenID string, ttl time.Duration) (string, error) {
	prev, err := swapActiveLua.Run(ctx, s.redis, []string{s.activeKey(userID)}, tokenID, ttl.Milliseconds()).Text()
	if err != nil {
		return "", unavailable(err)
	}
	return prev, nil
}

// ReplaceActiveToken moves the active slot from expected to next. It fails
// (false) when another token became active in between; an empty slot is
// taken over.
func (s *Store) ReplaceActiveToken(ctx context.Context, userID, expected, next string, ttl time.Duration) (bool, error) {
	ok, err := casActiveLua.Run(ctx, s.redis, []string{s.activeKey(userID)}, expected, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return ok == 1, nil
}

// GetActiveToken returns the active token id, or "" when none is recorded.
func (s *Store) GetActiveToken(ctx context.Context, userID string) (string, error) {
	v, err := s.redis.Get(ctx, s.activeKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", unavailable(err)
	}
	return v, nil
}

/* ==== GUARD ==== */

// Snapshot reads, in one pipeline, everything the authorization guard needs
// besides permissions: whether the access record exists, the live password
// version and (when withActive) the active token.
//
//	Performance: 1 round trip (2–3 commands).
func (s *Store) Snapshot(ctx context.Context, tokenID, userID string, withActive bool) (GuardSnapshot, error) {
	var snap GuardSnapshot

	pipe := s.redis.Pipeline()
	existsCmd := pipe.Exists(ctx, s.accessKey(tokenID))
	versionCmd := pipe.Get(ctx, s.versionKey(userID))
	var activeCmd *redis.StringCmd
	if withActive {
		activeCmd = pipe.Get(ctx, s.activeKey(userID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return snap, unavailable(err)
	}

	n, err := existsCmd.Result()
	if err != nil {
		return snap, unavailable(err)
	}
	snap.RecordExists = n == 1

	v, err := versionCmd.Int64()
	switch {
	case err == nil:
		snap.PasswordVersion = v
		snap.HasPasswordVersion = true
	case errors.Is(err, redis.Nil):
	default:
		return snap, unavailable(err)
	}

	if activeCmd != nil {
		active, err := activeCmd.Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return snap, unavailable(err)
		}
		snap.ActiveTokenID = active
	}
	return snap, nil
}

/* ==== ONLINE REGISTRY ==== */

// ListSessions returns the registry entries matching q, newest login first,
// together with the total number of matches before paging. Index entries
// whose session has expired are removed along the way.
func (s *Store) ListSessions(ctx context.Context, q ListQuery) ([]OnlineSession, int, error) {
	var (
		ids []string
		err error
	)
	if q.UserID != "" {
		ids, err = s.redis.SMembers(ctx, s.userIndexKey(q.UserID)).Result()
	} else {
		ids, err = s.redis.ZRevRange(ctx, s.onlineIndexKey(), 0, -1).Result()
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, unavailable(err)
	}
	if len(ids) == 0 {
		return []OnlineSession{}, 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.onlineKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, unavailable(err)
	}

	matches := make([]OnlineSession, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, 0, unavailable(cmdErr)
		}
		o, decErr := DecodeOnline(data)
		if decErr != nil {
			stale = append(stale, ids[i])
			continue
		}
		if !matchesQuery(o, q) {
			continue
		}
		matches = append(matches, *o)
	}

	if len(stale) > 0 {
		sweep := s.redis.Pipeline()
		sweep.ZRem(ctx, s.onlineIndexKey(), stale...)
		if q.UserID != "" {
			sweep.SRem(ctx, s.userIndexKey(q.UserID), stale...)
		}
		if _, err := sweep.Exec(ctx); err != nil {
			return nil, 0, unavailable(err)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].LoginAt == matches[j].LoginAt {
			return matches[i].TokenID < matches[j].TokenID
		}
		return matches[i].LoginAt > matches[j].LoginAt
	})

	total := len(matches)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return matches[start:end], total, nil
}

func matchesQuery(o *OnlineSession, q ListQuery) bool {
	if q.UserID != "" && o.UserID != q.UserID {
		return false
	}
	if q.Username != "" && !strings.Contains(strings.ToLower(o.Username), strings.ToLower(q.Username)) {
		return false
	}
	if q.IP != "" && !strings.Contains(o.IP, q.IP) {
		return false
	}
	return true
}

// UserTokenIDs returns the token ids registered for userID.
func (s *Store) UserTokenIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
