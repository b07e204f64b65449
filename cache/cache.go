// A serial-validated cache on top of a redis Connector.
//
// Every key holds a small sorted set of values scored by the time they were
// stored. A value is served only if it was stored after the serial of the
// connection returned by the Connector, so values written to a node before
// it became a master are never read back.
package cache

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/beatuslapis/gorecluster.v0/connector"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/mediocregopher/radix.v2/util"
	"github.com/pkg/errors"
)

var (
	ErrNoKey        = errors.New("no valid value for the key")
	ErrNoConnector  = errors.New("a cache requires a connector")
	ErrNilPointer   = errors.New("nil pointer is not permitted")
	ErrInvalidReply = errors.New("unexpected reply from the cache script")
	ErrSetFailed    = errors.New("a newer value is already stored")
)

// Default values applied to zero fields of Options
const (
	DefaultExpiration = 60 * time.Second
	DefaultHistory    = 10
)

// Options controls serialization and retention of cached values
type Options struct {
	// Serialize a key or a value. []byte is stored as is by default, anything else as JSON.
	Marshal func(interface{}) ([]byte, error)

	// Deserialize a value. *[]byte receives the raw bytes by default.
	Unmarshal func([]byte, interface{}) error

	// Expiration of a key after its last update, no expiration if negative
	Expiration time.Duration

	// Number of values retained per key
	History int
}

// Cache stores values through a Connector
type Cache struct {
	connector connector.Connector
	options   Options

	hits, misses, loads int64
}

// NewCache returns a Cache using the connector.
// Zero fields of the options, or nil options, take default values.
func NewCache(conn connector.Connector, options *Options) (*Cache, error) {
	if conn == nil {
		return nil, ErrNoConnector
	}
	c := &Cache{connector: conn}
	if options != nil {
		c.options = *options
	}
	if c.options.Marshal == nil {
		c.options.Marshal = defaultMarshal
	}
	if c.options.Unmarshal == nil {
		c.options.Unmarshal = defaultUnmarshal
	}
	if c.options.Expiration == 0 {
		c.options.Expiration = DefaultExpiration
	}
	if c.options.History <= 0 {
		c.options.History = DefaultHistory
	}
	return c, nil
}

func defaultMarshal(v interface{}) ([]byte, error) {
	switch vt := v.(type) {
	case []byte:
		return vt, nil
	case string:
		return []byte(vt), nil
	default:
		return json.Marshal(v)
	}
}

func defaultUnmarshal(d []byte, v interface{}) error {
	switch vt := v.(type) {
	case *[]byte:
		if vt == nil {
			return ErrNilPointer
		}
		*vt = d
		return nil
	case *string:
		if vt == nil {
			return ErrNilPointer
		}
		*vt = string(d)
		return nil
	default:
		return json.Unmarshal(d, v)
	}
}

// serial of a new value, in micros
func newSerial() int64 {
	return time.Now().UnixNano() / 1000
}

// KEYS[1] key, ARGV[1] valid since
// Returns the newest value with its serial if stored after ARGV[1].
const luaGet = `
local cur = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if cur[1] and cur[2] and tonumber(cur[2]) > tonumber(ARGV[1]) then
  return {cur[1], math.floor(cur[2])}
end
return false
`

// KEYS[1] key, ARGV[1] value, ARGV[2] serial, ARGV[3] expiration, ARGV[4] history
// ARGV[5] is the serial the caller last read, or -1 to skip the check.
const luaSet = `
local cur = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if cur[1] and cur[2] then
  local top = tonumber(cur[2])
  if top > tonumber(ARGV[2]) then
    return false
  end
  if tonumber(ARGV[5]) >= 0 and top > tonumber(ARGV[5]) then
    return false
  end
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('ZREMRANGEBYRANK', KEYS[1], 0, -(tonumber(ARGV[4]) + 1))
if tonumber(ARGV[3]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[3])
end
return 1
`

// route marshals a key and returns a client for it
func (c *Cache) route(key interface{}) ([]byte, util.Cmder, func(), int64, error) {
	bkey, err := c.options.Marshal(key)
	if err != nil {
		return nil, nil, nil, 0, errors.Wrap(err, "marshal key")
	}
	client, done, serial, err := c.connector.Route(bkey)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if done == nil {
		done = func() {}
	}
	return bkey, client, done, serial, nil
}

// Get reads the newest valid value of a key into val and returns its serial.
// It fails with ErrNoKey when there is none.
func (c *Cache) Get(key interface{}, val interface{}) (int64, error) {
	bkey, client, done, validSince, err := c.route(key)
	if err != nil {
		return 0, err
	}
	defer done()

	resp := util.LuaEval(client, luaGet, 1, bkey, validSince)
	if resp.Err != nil {
		return 0, resp.Err
	}
	if resp.IsType(redis.Nil) {
		atomic.AddInt64(&c.misses, 1)
		return 0, ErrNoKey
	}

	res, err := resp.Array()
	if err != nil || len(res) != 2 || !res[0].IsType(redis.BulkStr) || !res[1].IsType(redis.Int) {
		return 0, errors.Wrapf(ErrInvalidReply, "%s", resp)
	}
	bval, _ := res[0].Bytes()
	serial, _ := res[1].Int64()
	if err := c.options.Unmarshal(bval, val); err != nil {
		return 0, errors.Wrap(err, "unmarshal value")
	}
	atomic.AddInt64(&c.hits, 1)
	return serial, nil
}

// Set stores a value and returns its serial.
// It fails with ErrSetFailed if a newer value is already stored.
func (c *Cache) Set(key interface{}, val interface{}) (int64, error) {
	return c.set(key, val, -1)
}

// CheckAndSet stores a value only if the key wasn't updated after the given serial,
// usually the one returned by Get. It fails with ErrSetFailed otherwise.
func (c *Cache) CheckAndSet(key interface{}, val interface{}, serial int64) (int64, error) {
	return c.set(key, val, serial)
}

func (c *Cache) set(key interface{}, val interface{}, since int64) (int64, error) {
	bkey, client, done, _, err := c.route(key)
	if err != nil {
		return 0, err
	}
	defer done()

	bval, err := c.options.Marshal(val)
	if err != nil {
		return 0, errors.Wrap(err, "marshal value")
	}
	serial := newSerial()
	expire := int64(c.options.Expiration / time.Second)
	resp := util.LuaEval(client, luaSet, 1, bkey, bval, serial, expire, c.options.History, since)
	if resp.Err != nil {
		return 0, resp.Err
	}
	if resp.IsType(redis.Nil) {
		return 0, ErrSetFailed
	}

	atomic.AddInt64(&c.loads, 1)
	return serial, nil
}

// Del removes every value of a key
func (c *Cache) Del(key interface{}) error {
	bkey, client, done, _, err := c.route(key)
	if err != nil {
		return err
	}
	defer done()

	return client.Cmd("DEL", bkey).Err
}

// Hits returns the number of values served
func (c *Cache) Hits() int64 {
	return atomic.LoadInt64(&c.hits)
}

// Misses returns the number of reads which found no valid value
func (c *Cache) Misses() int64 {
	return atomic.LoadInt64(&c.misses)
}

// Loads returns the number of values stored
func (c *Cache) Loads() int64 {
	return atomic.LoadInt64(&c.loads)
}
