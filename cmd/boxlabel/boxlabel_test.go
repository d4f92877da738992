package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOBBMode(t *testing.T) {
	for _, setting := range []bool{false, true} {
		obb, err := obbMode(setting, false, false)
		require.NoError(t, err)
		require.Equal(t, setting, obb)

		obb, err = obbMode(setting, true, false)
		require.NoError(t, err)
		require.True(t, obb)

		obb, err = obbMode(setting, false, true)
		require.NoError(t, err)
		require.False(t, obb)

		_, err = obbMode(setting, true, true)
		require.Error(t, err)
	}
}
