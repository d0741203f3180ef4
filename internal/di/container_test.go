package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type greeter struct{ name string }

func TestRegisterToken_BuildsOnce(t *testing.T) {
	c := NewContainer()
	c.Register("name", "dexswap")

	token := NewToken[*greeter]("test.greeter")
	builds := 0
	RegisterToken(c, token, func(sr ServiceRegistry) *greeter {
		builds++
		return &greeter{name: sr.Get("name").(string)}
	})

	first := GetToken(c, token)
	second := GetToken(c, token)

	assert.Equal(t, 1, builds)
	assert.Same(t, first, second)
	assert.Equal(t, "dexswap", first.name)
}

func TestGet_UnknownPanics(t *testing.T) {
	c := NewContainer()
	assert.False(t, c.Has("missing"))
	assert.Panics(t, func() { c.Get("missing") })
}

func TestGetToken_WrongTypePanics(t *testing.T) {
	c := NewContainer()
	c.Register("test.greeter", 42)

	assert.Panics(t, func() { GetToken(c, NewToken[*greeter]("test.greeter")) })
}
