package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWrapsReturnedError(t *testing.T) {
	id := Identity{PackageName: "my-transformer", Kind: KindInProcess}
	err := Call(id, "/src/a.js", func() error {
		return errors.New("boom")
	})

	require.Error(t, err)
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "my-transformer", fatal.Plugin.PackageName)
	assert.Contains(t, err.Error(), "boom")
}

func TestCallRecoversPanic(t *testing.T) {
	id := Identity{PackageName: "flaky-plugin", Kind: KindRemoteRPC}
	err := Call(id, "", func() error {
		panic("unexpected nil pointer")
	})

	require.Error(t, err)
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Contains(t, err.Error(), "unexpected nil pointer")
}

func TestCallReturnsNilOnSuccess(t *testing.T) {
	err := Call(Identity{PackageName: "ok"}, "", func() error { return nil })
	assert.NoError(t, err)
}
