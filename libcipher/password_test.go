package libcipher_test

import (
	"testing"

	"github.com/contenox/chatlog/libcipher"
	"github.com/stretchr/testify/require"
)

func TestCheckPasswordHash_Correct(t *testing.T) {
	hash, err := libcipher.NewPasswordHash("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.NoError(t, libcipher.CheckPasswordHash(hash, "hunter2"))
}

func TestCheckPasswordHash_Incorrect(t *testing.T) {
	hash, err := libcipher.NewPasswordHash("hunter2")
	require.NoError(t, err)

	err = libcipher.CheckPasswordHash(hash, "hunter3")
	require.ErrorIs(t, err, libcipher.ErrPasswordMismatch)
}

func TestNewPasswordHash_EmptyRejected(t *testing.T) {
	_, err := libcipher.NewPasswordHash("")
	require.Error(t, err)
}

func TestNewPasswordHash_Salted(t *testing.T) {
	h1, err := libcipher.NewPasswordHash("same")
	require.NoError(t, err)
	h2, err := libcipher.NewPasswordHash("same")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
