package opstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	require := require.New(t)

	var st Atomic
	require.True(st.IsClosed())
	require.Equal("closed", st.String())

	require.False(st.ToOpened(), "cannot skip opening")
	require.True(st.ToOpening())
	require.False(st.ToOpening())
	require.True(st.ToOpened())
	require.True(st.ToOpened())
	require.True(st.IsOpened())

	require.True(st.ToClosing())
	require.False(st.ToClosing())
	require.True(st.ToClosed())
	require.True(st.ToClosed())

	require.True(st.ToOpening())
	require.True(st.ToClosing(), "opening can be aborted")
	require.Equal(Closing, st.Get())

	st.Set(State(42))
	require.Equal("unknown", st.String())
}
