package token_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/token"
	"go.forgebuild.dev/forge/internal/core/domain"
)

func TestAcquire_FirstWriterWins(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))

	ok1, err := s.Acquire(domain.Token{Name: "deploy-slot", HolderID: "S1"})
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := s.Acquire(domain.Token{Name: "deploy-slot", HolderID: "S2"})
	require.NoError(t, err)
	require.False(t, ok2)

	holder, ok, err := s.Holder("deploy-slot")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "S1", holder)
}

func TestAcquire_Unowned(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))

	holder, ok, err := s.Holder("never-acquired")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, holder)
}

func TestRelease_WrongHolderRefused(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))

	ok, err := s.Acquire(domain.Token{Name: "t", HolderID: "S1"})
	require.NoError(t, err)
	require.True(t, ok)

	err = s.Release(domain.Token{Name: "t", HolderID: "S2"})
	require.ErrorIs(t, err, domain.ErrTokenHeld)

	holder, ok, err := s.Holder("t")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "S1", holder)
}

func TestRelease_ThenReacquire(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))

	_, err := s.Acquire(domain.Token{Name: "t", HolderID: "S1"})
	require.NoError(t, err)

	require.NoError(t, s.Release(domain.Token{Name: "t", HolderID: "S1"}))

	ok, err := s.Acquire(domain.Token{Name: "t", HolderID: "S2"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRelease_AbsentTokenIsNoOp(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))
	require.NoError(t, s.Release(domain.Token{Name: "never-acquired", HolderID: "S1"}))
}

func TestAcquire_ConcurrentExactlyOneWinner(t *testing.T) {
	s := token.NewStore(filepath.Join(t.TempDir(), "tokens"))

	const n = 16
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			ok, err := s.Acquire(domain.Token{Name: "contended", HolderID: holderName(i)})
			require.NoError(t, err)
			results <- ok
		}(i)
	}

	wins := 0
	for i := 0; i < n; i++ {
		if <-results {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}

func holderName(i int) string {
	return string(rune('A' + i))
}
