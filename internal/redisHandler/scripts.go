package redishandler

import "github.com/redis/go-redis/v9"

// Script results shared by the Lua scripts below.
const (
	scriptStale       = 0
	scriptApplied     = 1
	scriptPollMissing = -1
	scriptUserMissing = -2
)

// applyVoteScript writes one (user, poll) vote outcome if both sides and the
// poll status still hold the raw values the caller read. Only the pair's own
// hash fields are compared, so votes by other users and view counts never
// invalidate it.
//
// KEYS: poll:{p}, user:{u}, user:{u}:votes, poll:{p}:votes
// ARGV: pollID, userID, expected record, expected event, choice, event,
// expected status. An empty choice retracts the vote.
var applyVoteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('EXISTS', KEYS[2]) == 0 then return -2 end
local record = redis.call('HGET', KEYS[3], ARGV[1]) or ''
local event = redis.call('HGET', KEYS[4], ARGV[2]) or ''
local status = redis.call('HGET', KEYS[1], 'status') or ''
if record ~= ARGV[3] or event ~= ARGV[4] or status ~= ARGV[7] then return 0 end
if ARGV[5] == '' then
	redis.call('HDEL', KEYS[3], ARGV[1])
	redis.call('HDEL', KEYS[4], ARGV[2])
else
	redis.call('HSET', KEYS[3], ARGV[1], ARGV[5])
	redis.call('HSET', KEYS[4], ARGV[2], ARGV[6])
end
return 1
`)

// incrementViewsScript bumps views on an existing poll:{p} hash and returns
// the new count, or -1 when the poll does not exist.
var incrementViewsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
return redis.call('HINCRBY', KEYS[1], 'views', 1)
`)

// closePollScript sets status to closed on an existing poll:{p} hash.
var closePollScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return 1
`)
