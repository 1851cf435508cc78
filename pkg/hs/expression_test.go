package hs

import (
	"errors"
	"testing"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpression_Accessors(t *testing.T) {
	e := NewExpression("abc", Caseless|SomLeftMost, WithID(7), WithContext("ctx"))

	assert.Equal(t, "abc", e.Pattern())
	assert.Equal(t, Caseless|SomLeftMost, e.Flags())
	assert.Equal(t, "ctx", e.Context())

	id, ok := e.ID()
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	_, ok = NewExpression("abc", 0).ID()
	assert.False(t, ok)
}

func TestExpression_Equal(t *testing.T) {
	a := NewExpression("abc", Caseless, WithID(1), WithContext("a"))
	b := NewExpression("abc", Caseless, WithID(1), WithContext("b"))

	assert.True(t, a.Equal(b), "contexts are not part of equality")
	assert.False(t, a.Equal(NewExpression("abc", Caseless)))
	assert.False(t, a.Equal(NewExpression("abc", 0, WithID(1))))
	assert.False(t, a.Equal(NewExpression("abd", Caseless, WithID(1))))
	assert.False(t, a.Equal(nil))
}

func TestExpression_String(t *testing.T) {
	e := NewExpression(`\d+`, Caseless|SomLeftMost, WithID(3))
	assert.Equal(t, `Expression{id=3, pattern="\\d+", flags=caseless|som_leftmost}`, e.String())
}

func TestExpression_Validate(t *testing.T) {
	eng := WithEngine(portable.New())

	assert.NoError(t, NewExpression("abc", 0).Validate(eng))

	invalid := NewExpression("a(b", 0)
	err := invalid.Validate(eng)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Same(t, invalid, ce.Expression)
}

func TestFlag_Bits(t *testing.T) {
	f := SomLeftMost | Caseless | Utf8
	assert.Equal(t, []Flag{Caseless, Utf8, SomLeftMost}, f.Bits())
	assert.Empty(t, Flag(0).Bits())
}

func TestFlag_String(t *testing.T) {
	assert.Equal(t, "none", Flag(0).String())
	assert.Equal(t, "caseless|dotall", (Caseless | DotAll).String())
	assert.Equal(t, "0x800", Flag(0x800).String())
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name string
		want Flag
	}{
		{"caseless", Caseless},
		{"CASELESS", Caseless},
		{"som-leftmost", SomLeftMost},
		{" single_match ", SingleMatch},
		{"utf8", Utf8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlag(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFlag("bogus")
	assert.Error(t, err)

	flags, err := ParseFlags([]string{"caseless", "multiline"})
	require.NoError(t, err)
	assert.Equal(t, Caseless|MultiLine, flags)
}

func TestFlag_MatchesEngineValues(t *testing.T) {
	assert.Equal(t, uint(engine.Caseless), uint(Caseless))
	assert.Equal(t, uint(engine.SomLeftMost), uint(SomLeftMost))
	assert.Equal(t, uint(engine.Quiet), uint(Quiet))
}

func TestEngineError(t *testing.T) {
	err := error(&EngineError{Op: "scan", Err: engine.ErrNoMemory})

	assert.ErrorIs(t, err, engine.ErrNoMemory)
	assert.Equal(t, "scan: a memory allocation failed", err.Error())

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.True(t, ee.Temporary())
	assert.False(t, (&EngineError{Op: "load", Err: engine.ErrDatabasePlatform}).Temporary())
}

func TestEngineByName(t *testing.T) {
	e, err := EngineByName("portable")
	require.NoError(t, err)
	assert.Equal(t, "portable", e.Name())

	e, err = EngineByName("")
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = EngineByName("nope")
	assert.Error(t, err)
}
