package main

import (
	"bytes"
	"testing"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatuslapis/gorecluster.v0/connector/cluster"
)

func TestWriteReply(t *testing.T) {
	for name, tc := range map[string]struct {
		resp     *redis.Resp
		expected string
	}{
		"simple":  {redis.NewRespSimple("OK"), "OK\n"},
		"bulk":    {redis.NewResp("bar"), "\"bar\"\n"},
		"integer": {redis.NewResp(42), "(integer) 42\n"},
		"nil":     {redis.NewResp(nil), "(nil)\n"},
		"error":   {redis.NewResp(errors.New("WRONGTYPE bad")), "(error) WRONGTYPE bad\n"},
		"empty":   {redis.NewResp([]interface{}{}), "(empty array)\n"},
		"nested": {
			redis.NewResp([]interface{}{"a", []interface{}{1, "b"}}),
			"1) \"a\"\n2) 1) (integer) 1\n   2) \"b\"\n",
		},
	} {
		t.Run(name, func(t *testing.T) {
			var b bytes.Buffer
			require.NoError(t, writeReply(&b, tc.resp))
			assert.Equal(t, tc.expected, b.String())
		})
	}
}

func TestOwnedRanges(t *testing.T) {
	a := cluster.Addr{Host: "127.0.0.1", Port: 7000}
	b := cluster.Addr{Host: "127.0.0.1", Port: 7001}
	owner := func(slot int) (cluster.Addr, bool) {
		switch {
		case slot < 100:
			return a, true
		case slot < 200:
			return cluster.Addr{}, false
		case slot < 8000:
			return b, true
		default:
			return a, true
		}
	}

	assert.Equal(t, []slotRange{
		{0, 99, a},
		{200, 7999, b},
		{8000, cluster.NumSlots - 1, a},
	}, ownedRanges(owner))
}
