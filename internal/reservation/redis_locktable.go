package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// RedisLockTable is the shared-store lock table for multi-node deployments.
// Every multi-step operation runs as one Lua script so the check-and-set is
// a single atomic evaluation per seat key. Key TTLs make Redis itself expire
// abandoned holds; the membership set per showing lets the reaper find the
// seats whose keys have already vanished.
type RedisLockTable struct {
	client redis.UniversalClient
	now    func() time.Time
}

const (
	holdShowingsKey = "hold_showings"
	holdVersionKey  = "seat_hold_version"
)

func NewRedisLockTable(client redis.UniversalClient) *RedisLockTable {
	return &RedisLockTable{
		client: client,
		now:    time.Now,
	}
}

func holdKey(showingID, seatID int) string {
	return fmt.Sprintf("seat_hold:%d:%d", showingID, seatID)
}

func holdSetKey(showingID int) string {
	return fmt.Sprintf("seat_holds:%d", showingID)
}

var acquireScript = redis.NewScript(`
	-- KEYS = [holdKey, setKey, showingsKey, versionKey]
	-- ARGV = [ownerId, ttlMs, nowMs, showingId, seatId]

	local now = tonumber(ARGV[3])

	if redis.call("EXISTS", KEYS[1]) == 1 then
		-- Key eviction can lag the stored expiry; the timestamp decides.
		local expiresAt = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
		if expiresAt > now then
			return {err = "seat already held"}
		end
		redis.call("DEL", KEYS[1])
	end

	local ttl = tonumber(ARGV[2])
	local version = redis.call("INCR", KEYS[4])

	redis.call("HSET", KEYS[1],
		"owner", ARGV[1],
		"acquired_at", now,
		"expires_at", now + ttl,
		"version", version,
		"extensions", 0)
	redis.call("PEXPIRE", KEYS[1], ttl)
	redis.call("SADD", KEYS[2], ARGV[5])
	redis.call("SADD", KEYS[3], ARGV[4])

	return {version, now + ttl}
`)

var releaseScript = redis.NewScript(`
	-- KEYS = [holdKey, setKey]
	-- ARGV = [ownerId, seatId, nowMs]

	local owner = redis.call("HGET", KEYS[1], "owner")
	if not owner then
		return {err = "no hold"}
	end

	local expiresAt = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
	if expiresAt <= tonumber(ARGV[3]) then
		redis.call("DEL", KEYS[1])
		redis.call("SREM", KEYS[2], ARGV[2])
		return {err = "no hold"}
	end

	if owner ~= ARGV[1] then
		return {err = "not owner"}
	end

	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[2])

	return "OK"
`)

var extendScript = redis.NewScript(`
	-- KEYS = [holdKey]
	-- ARGV = [ownerId, ttlMs, nowMs]

	local hold = redis.call("HMGET", KEYS[1], "owner", "acquired_at", "expires_at", "version", "extensions")
	if not hold[1] then
		return {err = "no hold"}
	end

	local now = tonumber(ARGV[3])
	if tonumber(hold[3]) <= now then
		redis.call("DEL", KEYS[1])
		return {err = "hold expired"}
	end

	if hold[1] ~= ARGV[1] then
		return {err = "not owner"}
	end

	local ttl = tonumber(ARGV[2])
	local extensions = redis.call("HINCRBY", KEYS[1], "extensions", 1)
	redis.call("HSET", KEYS[1], "expires_at", now + ttl)
	redis.call("PEXPIRE", KEYS[1], ttl)

	return {hold[2], now + ttl, hold[4], extensions}
`)

var commitScript = redis.NewScript(`
	-- KEYS = [holdKey..., setKey]
	-- ARGV = [ownerId, nowMs, seatId...]

	local owner = ARGV[1]
	local now = tonumber(ARGV[2])
	local result = {}

	for i = 1, #KEYS - 1 do
		local hold = redis.call("HMGET", KEYS[i], "owner", "expires_at")
		if not hold[1] or tonumber(hold[2]) <= now then
			table.insert(result, ARGV[i + 2] .. ":expired")
		elseif hold[1] ~= owner then
			table.insert(result, ARGV[i + 2] .. ":not_owner")
		end
	end

	if #result > 0 then
		table.insert(result, 1, 0)
		return result
	end

	result = {1}
	for i = 1, #KEYS - 1 do
		local hold = redis.call("HMGET", KEYS[i], "acquired_at", "expires_at", "version", "extensions")
		table.insert(result, hold[1])
		table.insert(result, hold[2])
		table.insert(result, hold[3])
		table.insert(result, hold[4])
		redis.call("DEL", KEYS[i])
		redis.call("SREM", KEYS[#KEYS], ARGV[i + 2])
	end

	return result
`)

var restoreScript = redis.NewScript(`
	-- KEYS = [holdKey, setKey]
	-- ARGV = [ownerId, acquiredAtMs, expiresAtMs, version, extensions, nowMs, seatId]

	if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end

	local expiresAt = tonumber(ARGV[3])
	local now = tonumber(ARGV[6])
	if expiresAt <= now then
		return 0
	end

	redis.call("HSET", KEYS[1],
		"owner", ARGV[1],
		"acquired_at", ARGV[2],
		"expires_at", ARGV[3],
		"version", ARGV[4],
		"extensions", ARGV[5])
	redis.call("PEXPIRE", KEYS[1], expiresAt - now)
	redis.call("SADD", KEYS[2], ARGV[7])

	return 1
`)

var reapScript = redis.NewScript(`
	-- KEYS = [setKey]
	-- ARGV = [holdKeyPrefix]

	local cursor = "0"
	local freed = {}

	repeat
		local result = redis.call("SSCAN", KEYS[1], cursor, "COUNT", 100)
		cursor = result[1]

		for _, seatId in ipairs(result[2]) do
			if redis.call("EXISTS", ARGV[1] .. seatId) == 0 then
				table.insert(freed, seatId)
			end
		end
	until cursor == "0"

	if #freed > 0 then
		redis.call("SREM", KEYS[1], unpack(freed))
	end

	return freed
`)

func (t *RedisLockTable) TryAcquire(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	now := t.now()
	keys := []string{holdKey(showingID, seatID), holdSetKey(showingID), holdShowingsKey, holdVersionKey}

	res, err := acquireScript.Run(ctx, t.client, keys,
		ownerID, ttl.Milliseconds(), now.UnixMilli(), showingID, seatID).Slice()
	if err != nil {
		if redis.HasErrorPrefix(err, "seat already held") {
			return nil, domain.ErrSeatHeld
		}

		return nil, fmt.Errorf("acquire script: %w", err)
	}

	version, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("acquire script: unexpected version reply %v", res[0])
	}

	return &domain.Hold{
		ShowingID:  showingID,
		SeatID:     seatID,
		OwnerID:    ownerID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Version:    version,
	}, nil
}

func (t *RedisLockTable) Release(ctx context.Context, showingID, seatID int, ownerID string) error {
	keys := []string{holdKey(showingID, seatID), holdSetKey(showingID)}

	err := releaseScript.Run(ctx, t.client, keys, ownerID, seatID, t.now().UnixMilli()).Err()
	if err != nil {
		switch {
		case redis.HasErrorPrefix(err, "no hold"):
			return domain.ErrHoldNotFound
		case redis.HasErrorPrefix(err, "not owner"):
			return domain.ErrNotOwner
		}

		return fmt.Errorf("release script: %w", err)
	}

	return nil
}

func (t *RedisLockTable) Extend(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	now := t.now()

	res, err := extendScript.Run(ctx, t.client, []string{holdKey(showingID, seatID)},
		ownerID, ttl.Milliseconds(), now.UnixMilli()).Slice()
	if err != nil {
		switch {
		case redis.HasErrorPrefix(err, "no hold"):
			return nil, domain.ErrHoldNotFound
		case redis.HasErrorPrefix(err, "hold expired"):
			return nil, domain.ErrHoldExpired
		case redis.HasErrorPrefix(err, "not owner"):
			return nil, domain.ErrNotOwner
		}

		return nil, fmt.Errorf("extend script: %w", err)
	}

	acquiredAt, err := msField(res[0])
	if err != nil {
		return nil, fmt.Errorf("extend script: %w", err)
	}

	version, err := intField(res[2])
	if err != nil {
		return nil, fmt.Errorf("extend script: %w", err)
	}

	extensions, err := intField(res[3])
	if err != nil {
		return nil, fmt.Errorf("extend script: %w", err)
	}

	return &domain.Hold{
		ShowingID:  showingID,
		SeatID:     seatID,
		OwnerID:    ownerID,
		AcquiredAt: acquiredAt,
		ExpiresAt:  now.Add(ttl),
		Version:    version,
		Extensions: int(extensions),
	}, nil
}

func (t *RedisLockTable) Peek(ctx context.Context, showingID, seatID int) (*domain.Hold, error) {
	fields, err := t.client.HGetAll(ctx, holdKey(showingID, seatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading hold: %w", err)
	}

	if len(fields) == 0 {
		return nil, nil
	}

	hold, err := holdFromFields(showingID, seatID, fields)
	if err != nil {
		return nil, err
	}

	// Key TTL and stored expiry can disagree briefly; trust the timestamp.
	if hold.Expired(t.now()) {
		return nil, nil
	}

	return hold, nil
}

func (t *RedisLockTable) CommitOwned(
	ctx context.Context,
	showingID int,
	seatIDs []int,
	ownerID string) ([]domain.Hold, error) {

	keys := make([]string, 0, len(seatIDs)+1)
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, ownerID, t.now().UnixMilli())

	for _, seatID := range seatIDs {
		keys = append(keys, holdKey(showingID, seatID))
		args = append(args, seatID)
	}
	keys = append(keys, holdSetKey(showingID))

	res, err := commitScript.Run(ctx, t.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("commit script: %w", err)
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("commit script: unexpected status reply %v", res[0])
	}

	if status == 0 {
		lost := make([]domain.SeatDenial, 0, len(res)-1)

		for _, entry := range res[1:] {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("commit script: unexpected denial reply %v", entry)
			}

			seatStr, reason, found := strings.Cut(s, ":")
			if !found {
				return nil, fmt.Errorf("commit script: malformed denial %q", s)
			}

			seatID, err := strconv.Atoi(seatStr)
			if err != nil {
				return nil, fmt.Errorf("commit script: malformed denial %q", s)
			}

			lost = append(lost, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReason(reason)})
		}

		return nil, &domain.CommitConflictError{Lost: lost}
	}

	if len(res) != 1+4*len(seatIDs) {
		return nil, fmt.Errorf("commit script: expected %d fields, got %d", 4*len(seatIDs), len(res)-1)
	}

	holds := make([]domain.Hold, len(seatIDs))

	for i, seatID := range seatIDs {
		base := 1 + 4*i

		acquiredAt, err := msField(res[base])
		if err != nil {
			return nil, fmt.Errorf("commit script: %w", err)
		}

		expiresAt, err := msField(res[base+1])
		if err != nil {
			return nil, fmt.Errorf("commit script: %w", err)
		}

		version, err := intField(res[base+2])
		if err != nil {
			return nil, fmt.Errorf("commit script: %w", err)
		}

		extensions, err := intField(res[base+3])
		if err != nil {
			return nil, fmt.Errorf("commit script: %w", err)
		}

		holds[i] = domain.Hold{
			ShowingID:  showingID,
			SeatID:     seatID,
			OwnerID:    ownerID,
			AcquiredAt: acquiredAt,
			ExpiresAt:  expiresAt,
			Version:    version,
			Extensions: int(extensions),
		}
	}

	return holds, nil
}

func (t *RedisLockTable) Restore(ctx context.Context, holds []domain.Hold) error {
	var errs []error

	for _, hold := range holds {
		keys := []string{holdKey(hold.ShowingID, hold.SeatID), holdSetKey(hold.ShowingID)}

		err := restoreScript.Run(ctx, t.client, keys,
			hold.OwnerID,
			hold.AcquiredAt.UnixMilli(),
			hold.ExpiresAt.UnixMilli(),
			hold.Version,
			hold.Extensions,
			t.now().UnixMilli(),
			hold.SeatID).Err()
		if err != nil {
			errs = append(errs, fmt.Errorf("restoring hold on seat %d: %w", hold.SeatID, err))
		}
	}

	return errors.Join(errs...)
}

// ReapExpired walks every showing's membership set and removes seats whose
// hold keys Redis has already expired. The returned holds carry only
// showing and seat identifiers; the hold payload is gone with the key.
func (t *RedisLockTable) ReapExpired(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	showings, err := t.client.SMembers(ctx, holdShowingsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing showings with holds: %w", err)
	}

	var reaped []domain.Hold

	for _, showingStr := range showings {
		showingID, err := strconv.Atoi(showingStr)
		if err != nil {
			return nil, fmt.Errorf("malformed showing id %q in %s", showingStr, holdShowingsKey)
		}

		setKey := holdSetKey(showingID)
		prefix := fmt.Sprintf("seat_hold:%d:", showingID)

		freed, err := reapScript.Run(ctx, t.client, []string{setKey}, prefix).Int64Slice()
		if err != nil {
			return nil, fmt.Errorf("reap script for showing %d: %w", showingID, err)
		}

		for _, seatID := range freed {
			reaped = append(reaped, domain.Hold{ShowingID: showingID, SeatID: int(seatID)})
		}

		remaining, err := t.client.SCard(ctx, setKey).Result()
		if err == nil && remaining == 0 {
			t.client.SRem(ctx, holdShowingsKey, showingID)
		}
	}

	return reaped, nil
}

func holdFromFields(showingID, seatID int, fields map[string]string) (*domain.Hold, error) {
	acquiredAt, err := strconv.ParseInt(fields["acquired_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed hold acquired_at %q", fields["acquired_at"])
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed hold expires_at %q", fields["expires_at"])
	}

	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed hold version %q", fields["version"])
	}

	extensions, err := strconv.Atoi(fields["extensions"])
	if err != nil {
		return nil, fmt.Errorf("malformed hold extensions %q", fields["extensions"])
	}

	return &domain.Hold{
		ShowingID:  showingID,
		SeatID:     seatID,
		OwnerID:    fields["owner"],
		AcquiredAt: time.UnixMilli(acquiredAt),
		ExpiresAt:  time.UnixMilli(expiresAt),
		Version:    version,
		Extensions: extensions,
	}, nil
}

// msField converts a script reply holding a unix-millisecond timestamp.
func msField(v interface{}) (time.Time, error) {
	ms, err := intField(v)
	if err != nil {
		return time.Time{}, err
	}

	return time.UnixMilli(ms), nil
}

func intField(v interface{}) (int64, error) {
	switch value := v.(type) {
	case int64:
		return value, nil
	case string:
		return strconv.ParseInt(value, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected script reply field %v", v)
	}
}
