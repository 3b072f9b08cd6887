package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"companion/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	args := m.Called(ctx, text, voiceID)
	audio, _ := args.Get(0).([]byte)
	return audio, args.String(1), args.Error(2)
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test"), mr
}

func TestCachedSynthesizer_HitsCache(t *testing.T) {
	c, _ := newCache(t)
	next := new(MockSynthesizer)
	next.On("Synthesize", mock.Anything, "hello", "v1").Return([]byte("mp3"), "audio/mpeg", nil).Once()

	s := NewCachedSynthesizer(next, c, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		audio, ct, err := s.Synthesize(ctx, "hello", "v1")
		require.NoError(t, err)
		assert.Equal(t, []byte("mp3"), audio)
		assert.Equal(t, "audio/mpeg", ct)
	}
	next.AssertExpectations(t)
}

func TestCachedSynthesizer_KeyIncludesVoice(t *testing.T) {
	c, _ := newCache(t)
	next := new(MockSynthesizer)
	next.On("Synthesize", mock.Anything, "hello", "v1").Return([]byte("one"), "audio/mpeg", nil).Once()
	next.On("Synthesize", mock.Anything, "hello", "v2").Return([]byte("two"), "audio/mpeg", nil).Once()

	s := NewCachedSynthesizer(next, c, time.Hour)
	a, _, _ := s.Synthesize(context.Background(), "hello", "v1")
	b, _, _ := s.Synthesize(context.Background(), "hello", "v2")
	assert.Equal(t, []byte("one"), a)
	assert.Equal(t, []byte("two"), b)
	next.AssertExpectations(t)
}

func TestCachedSynthesizer_ErrorsNotCached(t *testing.T) {
	c, _ := newCache(t)
	next := new(MockSynthesizer)
	next.On("Synthesize", mock.Anything, "hi", "v").Return(nil, "", errors.New("quota")).Once()
	next.On("Synthesize", mock.Anything, "hi", "v").Return([]byte("ok"), "audio/mpeg", nil).Once()

	s := NewCachedSynthesizer(next, c, time.Hour)
	_, _, err := s.Synthesize(context.Background(), "hi", "v")
	assert.Error(t, err)

	audio, _, err := s.Synthesize(context.Background(), "hi", "v")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), audio)
}

func TestCachedSynthesizer_Expires(t *testing.T) {
	c, mr := newCache(t)
	next := new(MockSynthesizer)
	next.On("Synthesize", mock.Anything, "hi", "v").Return([]byte("mp3"), "audio/mpeg", nil).Twice()

	s := NewCachedSynthesizer(next, c, time.Minute)
	s.Synthesize(context.Background(), "hi", "v")
	mr.FastForward(2 * time.Minute)
	s.Synthesize(context.Background(), "hi", "v")
	next.AssertExpectations(t)
}

func TestCachedSynthesizer_RedisDown(t *testing.T) {
	c, mr := newCache(t)
	next := new(MockSynthesizer)
	next.On("Synthesize", mock.Anything, "hi", "v").Return([]byte("mp3"), "audio/mpeg", nil)

	mr.Close()
	audio, _, err := NewCachedSynthesizer(next, c, time.Minute).Synthesize(context.Background(), "hi", "v")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
}

func TestNewCachedSynthesizer_NoCache(t *testing.T) {
	next := new(MockSynthesizer)
	assert.Same(t, next, NewCachedSynthesizer(next, nil, 0))
}
