package password

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAlgorithms() map[string]Algorithm {
	return map[string]Algorithm{
		"bcrypt": NewBcryptHasher(&BcryptConfig{Cost: bcrypt.MinCost}),
		"argon2id": NewArgon2Hasher(&Argon2Config{
			Memory:      1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		}),
	}
}

func TestAlgorithms_RoundTrip(t *testing.T) {
	for name, alg := range testAlgorithms() {
		t.Run(name, func(t *testing.T) {
			hash, err := alg.Hash("secret123")
			require.NoError(t, err)
			assert.NotContains(t, hash, "secret123")

			tests := []struct {
				password string
				want     bool
			}{
				{"secret123", true},
				{"secret124", false},
				{"secret12", false},
				{"", false},
			}
			for _, tt := range tests {
				ok, err := alg.Verify(tt.password, hash)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok, tt.password)
			}
		})
	}
}

func TestAlgorithms_SaltedOutput(t *testing.T) {
	for name, alg := range testAlgorithms() {
		t.Run(name, func(t *testing.T) {
			h1, err := alg.Hash("same-password")
			require.NoError(t, err)
			h2, err := alg.Hash("same-password")
			require.NoError(t, err)
			assert.NotEqual(t, h1, h2)
		})
	}
}

func TestAlgorithms_LongInput(t *testing.T) {
	long := strings.Repeat("a", 500)
	longOther := strings.Repeat("a", 499) + "b"

	for name, alg := range testAlgorithms() {
		t.Run(name, func(t *testing.T) {
			hash, err := alg.Hash(long)
			require.NoError(t, err)

			ok, err := alg.Verify(long, hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = alg.Verify(longOther, hash)
			require.NoError(t, err)
			assert.False(t, ok, "bytes past 72 must still matter")
		})
	}
}

func TestAlgorithms_MalformedHashIsError(t *testing.T) {
	for name, alg := range testAlgorithms() {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "not-a-hash", "$2a$04$short", "$argon2id$v=19$m=1,t=1,p=1$!!$!!"} {
				ok, err := alg.Verify("password", bad)
				assert.Error(t, err, bad)
				assert.False(t, ok)
			}
		})
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(&BcryptConfig{Cost: 1}).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(&BcryptConfig{Cost: 99}).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(nil).Cost())
}

type blockingAlgorithm struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAlgorithm) Hash(password string) (string, error) {
	b.started <- struct{}{}
	<-b.release
	return "hash:" + password, nil
}

func (b *blockingAlgorithm) Verify(password, hash string) (bool, error) {
	<-b.release
	return hash == "hash:"+password, nil
}

func TestPool_RespectsContextWhileSaturated(t *testing.T) {
	alg := &blockingAlgorithm{started: make(chan struct{}, 1), release: make(chan struct{})}
	pool := NewPool(alg, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.Hash(context.Background(), "first")
	}()

	select {
	case <-alg.started:
	case <-time.After(time.Second):
		t.Fatal("first hash never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Hash(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(alg.release)
	<-done

	ok, err := pool.Compare(context.Background(), "x", "hash:x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	p, err := New("bcrypt", bcrypt.MinCost, 2)
	require.NoError(t, err)

	hash, err := p.Hash(context.Background(), "secret123")
	require.NoError(t, err)
	ok, err := p.Compare(context.Background(), "secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = New("argon2id", 0, 0)
	assert.NoError(t, err)

	_, err = New("md5", 0, 0)
	assert.Error(t, err)
}
