package connector

import (
	"bytes"

	"github.com/mediocregopher/radix.v2/redis"
)

// Command is a redis command with its arguments as an ordered list of byte strings.
type Command struct {
	name string
	args [][]byte
}

// NewCommand builds a command. Arguments are flattened the way radix does it,
// i.e. slices and maps are expanded and everything is converted to a string.
func NewCommand(name string, args ...interface{}) *Command {
	return (&Command{name: name}).Arg(args...)
}

// Arg appends arguments to the command
func (c *Command) Arg(args ...interface{}) *Command {
	if len(args) == 0 {
		return c
	}
	flat, err := redis.NewRespFlattenedStrings(args).ListBytes()
	if err != nil {
		// flattening always yields an array of bulk strings
		panic(err)
	}
	c.args = append(c.args, flat...)
	return c
}

// Name of the command
func (c *Command) Name() string {
	return c.name
}

// Args returns the flattened arguments
func (c *Command) Args() [][]byte {
	return c.args
}

func (c *Command) argv() []interface{} {
	argv := make([]interface{}, len(c.args))
	for i, a := range c.args {
		argv[i] = a
	}
	return argv
}

func (c *Command) String() string {
	var b bytes.Buffer
	b.WriteString(c.name)
	for _, a := range c.args {
		b.WriteByte(' ')
		b.Write(a)
	}
	return b.String()
}
