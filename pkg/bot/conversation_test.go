package bot

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"companion/pkg/affection"
	"companion/pkg/cafe"
	"companion/pkg/idle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerCall struct {
	System  string
	History []Turn
	Message string
}

// fakeProvider answers with respond(n) for the nth call. gate, when set,
// holds every call until it is closed.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []providerCall
	respond func(n int) (string, error)
	gate    chan struct{}
}

func (f *fakeProvider) Complete(ctx context.Context, system string, history []Turn, message string) (string, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, providerCall{System: system, History: history, Message: message})
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.respond(n)
}

func (f *fakeProvider) Calls() []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providerCall(nil), f.calls...)
}

func always(raw string) func(int) (string, error) {
	return func(int) (string, error) { return raw, nil }
}

type recordingPresenter struct {
	mu       sync.Mutex
	messages []ChatMessage
	avatars  []AvatarUpdate
	states   []StateUpdate
	notices  []Notice
	audio    []Audio
}

func (p *recordingPresenter) Message(m ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
}

func (p *recordingPresenter) Avatar(a AvatarUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.avatars = append(p.avatars, a)
}

func (p *recordingPresenter) State(s StateUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
}

func (p *recordingPresenter) Notice(n Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *recordingPresenter) Audio(a Audio) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = append(p.audio, a)
}

func (p *recordingPresenter) Messages() []ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChatMessage(nil), p.messages...)
}

func (p *recordingPresenter) Avatars() []AvatarUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AvatarUpdate(nil), p.avatars...)
}

func (p *recordingPresenter) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}

func (p *recordingPresenter) AudioClips() []Audio {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Audio(nil), p.audio...)
}

type fakeSynth struct {
	err error
}

func (s *fakeSynth) Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("mp3:" + voiceID), "audio/mpeg", nil
}

type harness struct {
	conv      *Conversation
	clock     *idle.ManualClock
	provider  *fakeProvider
	presenter *recordingPresenter
}

func newHarness(t *testing.T, opts Options, provider *fakeProvider, synth Synthesizer) *harness {
	t.Helper()
	clock := idle.NewManualClock(time.Unix(0, 0))
	opts.Clock = clock
	opts.Rand = rand.NewSource(7)

	presenter := &recordingPresenter{}
	conv := NewConversation(opts, NewResponder(provider, nil), presenter, synth)

	ctx, cancel := context.WithCancel(context.Background())
	go conv.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-conv.Done()
	})

	// Wait for start so the loading timer exists before the test moves the clock.
	_, err := conv.State()
	require.NoError(t, err)

	return &harness{conv: conv, clock: clock, provider: provider, presenter: presenter}
}

func (h *harness) state(t *testing.T) StateUpdate {
	t.Helper()
	s, err := h.conv.State()
	require.NoError(t, err)
	return s
}

// settle waits until no reply is pending.
func (h *harness) settle(t *testing.T) StateUpdate {
	t.Helper()
	var s StateUpdate
	require.Eventually(t, func() bool {
		s = h.state(t)
		return !s.Thinking
	}, time.Second, 5*time.Millisecond)
	return s
}

// advance moves the clock and waits for the loop to handle what fired.
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.Advance(d)
	h.state(t)
}

func opts(c affection.Character, initial int) Options {
	o := DefaultOptions(c)
	o.InitialAffection = initial
	return o
}

func TestConversation_ScoresTurns(t *testing.T) {
	replies := []string{
		`{"reply": "hehe, that's sweet~", "emotion": "Smile"}`,
		`{"reply": "mm, okay.", "emotion": "Normal"}`,
	}
	p := &fakeProvider{respond: func(n int) (string, error) { return replies[n], nil }}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)

	require.NoError(t, h.conv.SendMessage("you look nice today"))
	s := h.settle(t)
	assert.Equal(t, 55, s.AffectionScore)
	assert.Equal(t, "Dating", s.RelationshipStage)
	assert.True(t, s.IsCafeDateUnlocked)

	require.NoError(t, h.conv.SendMessage("what's up"))
	s = h.settle(t)
	assert.Equal(t, 55, s.AffectionScore)

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "you look nice today", calls[0].Message)
	assert.Empty(t, calls[0].History)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "you look nice today"},
		{Role: RoleModel, Content: "hehe, that's sweet~"},
	}, calls[1].History)
	assert.Contains(t, calls[0].System, "Arisa")

	avatars := h.presenter.Avatars()
	last := avatars[len(avatars)-1]
	assert.Equal(t, affection.Normal, last.Emotion)
	assert.Equal(t, 55, last.Affection)
}

func TestConversation_GreetingAndLoading(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"hi"}`)}
	h := newHarness(t, opts(affection.Chitose, 40), p, nil)

	s := h.state(t)
	assert.True(t, s.Loading)

	msgs := h.presenter.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, affection.Chitose.Profile().Greeting, msgs[0].Text)

	h.advance(t, 1500*time.Millisecond)
	assert.False(t, h.state(t).Loading)
}

func TestConversation_BusyWhileThinking(t *testing.T) {
	gate := make(chan struct{})
	p := &fakeProvider{respond: always(`{"reply":"ok","emotion":"Normal"}`), gate: gate}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)

	require.NoError(t, h.conv.SendMessage("first"))
	assert.ErrorIs(t, h.conv.SendMessage("second"), ErrBusy)
	assert.ErrorIs(t, h.conv.SendMessage("   "), ErrEmptyMessage)

	close(gate)
	h.settle(t)
	require.NoError(t, h.conv.SendMessage("third"))
	h.settle(t)
	assert.Len(t, p.Calls(), 2)
}

func TestConversation_ProviderFailure(t *testing.T) {
	p := &fakeProvider{respond: func(int) (string, error) { return "", errors.New("503") }}
	h := newHarness(t, opts(affection.Chitose, 40), p, nil)

	require.NoError(t, h.conv.SendMessage("hello?"))
	s := h.settle(t)
	assert.Equal(t, 40, s.AffectionScore, "no penalty for infrastructure failure")
	assert.Equal(t, affection.Normal, s.Emotion)

	msgs := h.presenter.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, FallbackMessage, last.Text)
	assert.True(t, last.Fallback)

	notices := h.presenter.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, NoticeError, notices[len(notices)-1].Level)
}

func TestConversation_MalformedReplyDoesNotScore(t *testing.T) {
	// Chitose's Normal is worth +5, so a scored malformed reply would show.
	p := &fakeProvider{respond: always("sorry, I forgot the format")}
	h := newHarness(t, opts(affection.Chitose, 40), p, nil)

	require.NoError(t, h.conv.SendMessage("hey"))
	s := h.settle(t)
	assert.Equal(t, 40, s.AffectionScore)

	msgs := h.presenter.Messages()
	assert.Equal(t, "sorry, I forgot the format", msgs[len(msgs)-1].Text)
}

func TestConversation_AIDeltaAndMilestones(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"!!","emotion":"Surprised","affectionChange":50}`)}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)
	assert.Equal(t, []int{25}, h.state(t).ShownMilestones, "reached before the first turn")

	require.NoError(t, h.conv.SendMessage("I got you a present"))
	s := h.settle(t)
	// Clamped to +20.
	assert.Equal(t, 60, s.AffectionScore)
	assert.Equal(t, []int{25, 50}, s.ShownMilestones)
	require.NotNil(t, s.ActiveMilestone)
	assert.Equal(t, 50, s.ActiveMilestone.Threshold)

	h.advance(t, 4*time.Second)
	assert.Nil(t, h.state(t).ActiveMilestone)

	var milestoneNotices int
	for _, n := range h.presenter.Notices() {
		if n.Level == NoticeMilestone {
			milestoneNotices++
		}
	}
	assert.Equal(t, 1, milestoneNotices)
}

func TestConversation_MilestoneQueue(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"!!","emotion":"Smile","affectionChange":20}`)}
	h := newHarness(t, opts(affection.Arisa, 10), p, nil)

	require.NoError(t, h.conv.SendMessage("hi"))
	h.settle(t)
	require.NoError(t, h.conv.SendMessage("hi again"))
	s := h.settle(t)
	assert.Equal(t, 50, s.AffectionScore)
	assert.Equal(t, []int{25, 50}, s.ShownMilestones)
	require.NotNil(t, s.ActiveMilestone)
	assert.Equal(t, 25, s.ActiveMilestone.Threshold, "shown in order, one at a time")

	h.advance(t, 4*time.Second)
	s = h.state(t)
	require.NotNil(t, s.ActiveMilestone)
	assert.Equal(t, 50, s.ActiveMilestone.Threshold)

	require.NoError(t, h.conv.DismissMilestone())
	assert.Nil(t, h.state(t).ActiveMilestone)
}

func TestConversation_FirstMilestonePolicy(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"!!","emotion":"Smile","affectionChange":20}`)}
	o := opts(affection.Arisa, 10)
	o.MilestonePolicy = affection.FireFirst
	h := newHarness(t, o, p, nil)

	require.NoError(t, h.conv.SendMessage("hi"))
	s := h.settle(t)
	assert.Equal(t, []int{25}, s.ShownMilestones)

	require.NoError(t, h.conv.SendMessage("hi again"))
	s = h.settle(t)
	assert.Equal(t, []int{25, 50}, s.ShownMilestones)
}

func TestConversation_Confession(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"you're fun","emotion":"Smile","affectionChange":10}`)}
	h := newHarness(t, opts(affection.Arisa, 70), p, nil)

	require.NoError(t, h.conv.SendMessage("I like spending time with you"))
	s := h.settle(t)
	assert.Equal(t, 80, s.AffectionScore)
	assert.Contains(t, s.ShownMilestones, 75)

	h.advance(t, 3*time.Second)
	require.Eventually(t, func() bool { return len(p.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	h.settle(t)

	calls := p.Calls()
	assert.Equal(t, confessionPrompt, calls[1].Message)
}

func TestConversation_HandHolding(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"oh!","emotion":"Smile"}`)}

	h := newHarness(t, opts(affection.Arisa, 40), p, nil)
	assert.ErrorIs(t, h.conv.SetHoldingHands(true), affection.ErrHandsLocked)

	h = newHarness(t, opts(affection.Arisa, 76), p, nil)
	require.NoError(t, h.conv.SetHoldingHands(true))
	require.NoError(t, h.conv.SendMessage("*holds your hand*"))
	s := h.settle(t)
	// 76 + 3*5*1.5 = 98.5, rounded.
	assert.Equal(t, 99, s.AffectionScore)
	assert.True(t, s.HoldingHands)

	require.NoError(t, h.conv.SetHoldingHands(false))
	assert.False(t, h.state(t).HoldingHands)
}

func TestConversation_Cafe(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"ok"}`)}

	h := newHarness(t, opts(affection.Arisa, 40), p, nil)
	assert.ErrorIs(t, h.conv.SetCafeDate(true), affection.ErrCafeLocked)
	assert.ErrorIs(t, h.conv.Purchase("Latte"), ErrNoCafeDate)

	h = newHarness(t, opts(affection.Arisa, 60), p, nil)
	require.NoError(t, h.conv.SetCafeDate(true))
	s := h.state(t)
	assert.True(t, s.IsCafeDateActive)
	assert.True(t, s.Loading)

	require.NoError(t, h.conv.OpenMenu())
	require.NoError(t, h.conv.Purchase("Latte"))
	assert.ErrorIs(t, h.conv.Purchase("latte"), cafe.ErrAlreadySelected)
	assert.ErrorIs(t, h.conv.Purchase("Ramen"), cafe.ErrUnknownItem)
	require.NoError(t, h.conv.Purchase("Tea"))

	v, err := h.conv.Ledger()
	require.NoError(t, err)
	assert.Equal(t, 46.0, v.AvailableBalance)

	receipt, err := h.conv.Checkout()
	require.NoError(t, err)
	assert.Equal(t, 4.0, receipt.Total)
	assert.Equal(t, 46.0, h.state(t).Ledger.Currency)

	require.NoError(t, h.conv.SetCafeDate(false))
	s = h.state(t)
	assert.False(t, s.IsCafeDateActive)
	assert.False(t, s.MenuOpen)
}

func TestConversation_CafeExitKeepsOrder(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"ok"}`)}

	for _, clear := range []bool{false, true} {
		o := opts(affection.Arisa, 60)
		o.ClearOnExit = clear
		h := newHarness(t, o, p, nil)

		require.NoError(t, h.conv.SetCafeDate(true))
		require.NoError(t, h.conv.Purchase("Cheesecake"))
		require.NoError(t, h.conv.SetCafeDate(false))

		v, err := h.conv.Ledger()
		require.NoError(t, err)
		if clear {
			assert.Empty(t, v.Selected)
		} else {
			assert.Len(t, v.Selected, 1)
		}
		assert.Equal(t, 50.0, v.Currency)
	}
}

func TestConversation_AutoMessages(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"are you still there?","emotion":"Normal"}`)}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)

	h.advance(t, 1500*time.Millisecond)

	for i := 1; i <= idle.DefaultMaxMessages; i++ {
		// Window widens by 5s per auto-message already sent.
		h.advance(t, idle.DefaultMaxDelay+time.Duration(i-1)*idle.DefaultWiden)
		require.Eventually(t, func() bool { return len(p.Calls()) == i }, time.Second, 5*time.Millisecond)
		s := h.settle(t)
		assert.Equal(t, i, s.ConsecutiveAutoMessages)
	}

	h.advance(t, time.Hour)
	assert.Len(t, p.Calls(), idle.DefaultMaxMessages, "capped")

	for _, c := range p.Calls() {
		assert.Equal(t, autoMessagePrompt, c.Message)
		assert.Contains(t, c.System, "unprompted")
	}

	// A user turn resets the run.
	require.NoError(t, h.conv.SendMessage("sorry, I'm back"))
	assert.Equal(t, 0, h.settle(t).ConsecutiveAutoMessages)
}

func assertSilent(t *testing.T, h *harness) {
	t.Helper()
	for _, n := range h.presenter.Notices() {
		assert.NotEqual(t, NoticeError, n.Level, "unexpected notice %q", n.Text)
	}
	for _, m := range h.presenter.Messages() {
		assert.False(t, m.Fallback)
		assert.NotEqual(t, FallbackMessage, m.Text)
	}
}

func TestConversation_AutoMessageFailureIsSilent(t *testing.T) {
	p := &fakeProvider{respond: func(int) (string, error) { return "", errors.New("503") }}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)
	h.advance(t, 1500*time.Millisecond)

	for i := 1; i <= idle.DefaultMaxMessages; i++ {
		h.advance(t, idle.DefaultMaxDelay+time.Duration(i-1)*idle.DefaultWiden)
		require.Eventually(t, func() bool { return len(p.Calls()) == i }, time.Second, 5*time.Millisecond)
		s := h.settle(t)
		assert.Equal(t, 40, s.AffectionScore)
		// Failed auto-turns still count toward the cap.
		assert.Equal(t, i, s.ConsecutiveAutoMessages)
	}

	h.advance(t, time.Hour)
	assert.Len(t, p.Calls(), idle.DefaultMaxMessages)
	assertSilent(t, h)
}

func TestConversation_ConfessionFailureIsSilent(t *testing.T) {
	p := &fakeProvider{respond: func(n int) (string, error) {
		if n == 0 {
			return `{"reply":"you're fun","emotion":"Smile","affectionChange":10}`, nil
		}
		return "", errors.New("503")
	}}
	h := newHarness(t, opts(affection.Arisa, 70), p, nil)

	require.NoError(t, h.conv.SendMessage("I like spending time with you"))
	assert.Equal(t, 80, h.settle(t).AffectionScore)

	h.advance(t, 3*time.Second)
	require.Eventually(t, func() bool { return len(p.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	s := h.settle(t)

	assert.Equal(t, confessionPrompt, p.Calls()[1].Message)
	assert.Equal(t, 80, s.AffectionScore)
	assertSilent(t, h)
}

func TestConversation_NoAutoMessageRightAfterSend(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"mm","emotion":"Normal"}`)}
	h := newHarness(t, opts(affection.Arisa, 40), p, nil)
	h.advance(t, 1500*time.Millisecond)

	require.NoError(t, h.conv.SendMessage("hi"))
	h.settle(t)

	h.advance(t, idle.DefaultMinDelay-time.Second)
	assert.Len(t, p.Calls(), 1)

	h.advance(t, idle.DefaultMaxDelay)
	require.Eventually(t, func() bool { return len(p.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	h.settle(t)
}

func TestConversation_SuppressedAutoMessages(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"mm"}`)}

	t.Run("draft", func(t *testing.T) {
		h := newHarness(t, opts(affection.Arisa, 40), p, nil)
		h.advance(t, 1500*time.Millisecond)
		require.NoError(t, h.conv.SetDraft("I was thinking"))
		h.advance(t, time.Hour)
		assert.Empty(t, h.provider.Calls())
	})

	t.Run("menu open", func(t *testing.T) {
		prov := &fakeProvider{respond: always(`{"reply":"mm"}`)}
		h := newHarness(t, opts(affection.Arisa, 60), prov, nil)
		require.NoError(t, h.conv.SetCafeDate(true))
		require.NoError(t, h.conv.OpenMenu())
		h.advance(t, time.Hour)
		assert.Empty(t, prov.Calls())
	})
}

func TestConversation_Speech(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"hello","emotion":"Smile"}`)}

	h := newHarness(t, opts(affection.Chitose, 40), p, &fakeSynth{})
	require.NoError(t, h.conv.SendMessage("hi"))
	h.settle(t)
	require.Eventually(t, func() bool { return len(h.presenter.AudioClips()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "audio/mpeg", h.presenter.AudioClips()[0].ContentType)
	assert.Equal(t, []byte("mp3:"+affection.Chitose.Profile().VoiceID), h.presenter.AudioClips()[0].Data)

	h = newHarness(t, opts(affection.Chitose, 40), p, &fakeSynth{err: errors.New("quota")})
	require.NoError(t, h.conv.SendMessage("hi"))
	s := h.settle(t)
	assert.Equal(t, 55, s.AffectionScore, "speech failure does not affect the turn")
	assert.Empty(t, h.presenter.AudioClips())
}

func TestConversation_Closed(t *testing.T) {
	p := &fakeProvider{respond: always(`{"reply":"hi"}`)}
	conv := NewConversation(DefaultOptions(affection.Arisa), NewResponder(p, nil), &recordingPresenter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- conv.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.ErrorIs(t, conv.SendMessage("hi"), ErrClosed)
}
