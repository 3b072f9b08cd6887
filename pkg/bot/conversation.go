package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"companion/pkg/affection"
	"companion/pkg/cafe"
	"companion/pkg/idle"
)

var (
	ErrBusy         = errors.New("still waiting for the last reply")
	ErrClosed       = errors.New("conversation closed")
	ErrEmptyMessage = errors.New("empty message")
	ErrNoCafeDate   = errors.New("not on a cafe date")
)

// FallbackMessage is shown when the chat provider fails.
const FallbackMessage = "⚠️ The chat service is unavailable right now. Check your API key and try again."

// Options configures one conversation. Zero durations fall back to defaults.
type Options struct {
	Character        affection.Character
	InitialAffection int
	StartingCurrency float64
	CafeThreshold    int
	HandsThreshold   int
	MilestonePolicy  affection.MilestonePolicy
	BaseChange       float64
	HandHoldingBonus float64
	Idle             idle.Config
	MilestoneDisplay time.Duration
	ConfessionDelay  time.Duration
	LoadingDuration  time.Duration
	ClearOnExit      bool

	Clock idle.Clock
	// Rand seeds the expression override and the idle delay.
	Rand rand.Source
}

func DefaultOptions(c affection.Character) Options {
	return Options{
		Character:        c,
		InitialAffection: affection.DefaultInitialAffection,
		StartingCurrency: cafe.DefaultStartingCurrency,
		CafeThreshold:    affection.DefaultCafeDateThreshold,
		HandsThreshold:   affection.DefaultHandHoldingThreshold,
		MilestonePolicy:  affection.FireAll,
		BaseChange:       affection.DefaultBaseChange,
		HandHoldingBonus: affection.DefaultHandHoldingBonus,
		Idle:             idle.DefaultConfig(),
		MilestoneDisplay: 4 * time.Second,
		ConfessionDelay:  3 * time.Second,
		LoadingDuration:  1500 * time.Millisecond,
	}
}

type turnKind int

const (
	turnUser turnKind = iota
	turnAuto
	turnConfession
)

// Conversation owns the state of one chat with one character. All state is
// touched only from the goroutine running Run; the exported methods hand
// their work to that loop and wait for it.
type Conversation struct {
	opts       Options
	responder  *Responder
	presenter  Presenter
	synth      Synthesizer
	clock      idle.Clock
	session    *affection.Session
	ledger     *cafe.Ledger
	engine     *affection.Engine
	reconciler *affection.Reconciler
	scheduler  *idle.Scheduler
	history    *History

	events chan func()
	done   chan struct{}
	ctx    context.Context

	thinking          bool
	loading           bool
	menuOpen          bool
	draft             string
	emotion           affection.Emotion
	pendingConfession bool

	activeMilestone *affection.Milestone
	milestoneQueue  []affection.Milestone
	milestoneGen    uint64
	loadingGen      uint64
}

// NewConversation builds a conversation. synth may be nil to disable speech.
func NewConversation(opts Options, responder *Responder, presenter Presenter, synth Synthesizer) *Conversation {
	if opts.Clock == nil {
		opts.Clock = idle.RealClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.NewSource(time.Now().UnixNano())
	}
	if opts.MilestonePolicy == "" {
		opts.MilestonePolicy = affection.FireAll
	}
	if opts.Idle == (idle.Config{}) {
		opts.Idle = idle.DefaultConfig()
	}
	if opts.CafeThreshold == 0 {
		opts.CafeThreshold = affection.DefaultCafeDateThreshold
	}
	if opts.HandsThreshold == 0 {
		opts.HandsThreshold = affection.DefaultHandHoldingThreshold
	}

	// One seeded stream feeds both random policies.
	rng := rand.New(opts.Rand)

	c := &Conversation{
		opts:       opts,
		responder:  responder,
		presenter:  presenter,
		synth:      synth,
		clock:      opts.Clock,
		session:    affection.NewSession(opts.Character, opts.InitialAffection).WithThresholds(opts.CafeThreshold, opts.HandsThreshold),
		ledger:     cafe.NewLedger(opts.StartingCurrency),
		engine:     affection.NewEngine(opts.BaseChange, opts.HandHoldingBonus),
		reconciler: affection.NewReconciler(rand.NewSource(rng.Int63())),
		history:    NewHistory(MaxHistory),
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		emotion:    affection.Normal,
	}
	c.scheduler = idle.NewScheduler(opts.Clock, opts.Idle, rand.NewSource(rng.Int63()), func(gen uint64) {
		c.post(func() { c.onIdle(gen) })
	})
	return c
}

// ID is the session id.
func (c *Conversation) ID() string {
	return c.session.ID
}

func (c *Conversation) Character() affection.Character {
	return c.opts.Character
}

// Run processes events until ctx is cancelled. It shows the greeting and the
// loading screen first.
func (c *Conversation) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.scheduler.Stop()

	log.Printf("Conversation %s started with %s at affection %d", c.session.ID, c.opts.Character, c.session.Affection)
	c.start()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Conversation %s ended at affection %d", c.session.ID, c.session.Affection)
			return ctx.Err()
		case fn := <-c.events:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

func (c *Conversation) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conversation) call(fn func() error) error {
	res := make(chan error, 1)
	if !c.post(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Conversation) start() {
	profile := c.opts.Character.Profile()
	if c.history.Len() == 0 && profile.Greeting != "" {
		c.presenter.Message(ChatMessage{Role: RoleModel, Text: profile.Greeting, Emotion: affection.Normal})
	}
	c.showAvatar(affection.Normal, affection.Normal, "")
	c.startLoading()
}

// SendMessage starts a user turn. It fails with ErrBusy while a reply is
// pending.
func (c *Conversation) SendMessage(text string) error {
	return c.call(func() error {
		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyMessage
		}
		if c.thinking {
			return ErrBusy
		}

		c.session.RecordUserTurn()
		c.draft = ""
		c.presenter.Message(ChatMessage{Role: RoleUser, Text: text})
		c.startTurn(turnUser, text)
		return nil
	})
}

// SetDraft records unsent input. A non-empty draft holds off auto-messages.
func (c *Conversation) SetDraft(text string) error {
	return c.call(func() error {
		c.draft = strings.TrimSpace(text)
		c.rearm()
		return nil
	})
}

func (c *Conversation) OpenMenu() error {
	return c.call(func() error {
		if !c.session.CafeDateActive {
			return ErrNoCafeDate
		}
		c.menuOpen = true
		c.rearm()
		c.publishState()
		return nil
	})
}

func (c *Conversation) CloseMenu() error {
	return c.call(func() error {
		c.menuOpen = false
		c.rearm()
		c.publishState()
		return nil
	})
}

// SetCafeDate enters or leaves the café scene. Both directions show the
// loading screen.
func (c *Conversation) SetCafeDate(active bool) error {
	return c.call(func() error {
		if active == c.session.CafeDateActive {
			return nil
		}
		if err := c.session.SetCafeDate(active); err != nil {
			return err
		}
		if !active {
			c.menuOpen = false
			if c.opts.ClearOnExit {
				c.ledger.Clear()
			}
		}
		log.Printf("Conversation %s cafe date active=%v", c.session.ID, active)
		c.startLoading()
		return nil
	})
}

func (c *Conversation) SetHoldingHands(holding bool) error {
	return c.call(func() error {
		if err := c.session.SetHoldingHands(holding); err != nil {
			return err
		}
		c.publishState()
		return nil
	})
}

// Purchase selects a menu item by name for the current café order.
func (c *Conversation) Purchase(name string) error {
	return c.call(func() error {
		if !c.session.CafeDateActive {
			return ErrNoCafeDate
		}
		item, err := cafe.FindItem(name)
		if err != nil {
			return err
		}
		if err := c.ledger.Purchase(item); err != nil {
			return err
		}
		c.publishState()
		return nil
	})
}

// Checkout pays for the current order.
func (c *Conversation) Checkout() (cafe.Receipt, error) {
	var receipt cafe.Receipt
	err := c.call(func() error {
		if !c.session.CafeDateActive {
			return ErrNoCafeDate
		}
		receipt = c.ledger.Checkout()
		if len(receipt.Items) > 0 {
			c.presenter.Notice(Notice{
				Level: NoticeInfo,
				Text:  fmt.Sprintf("Paid %.2f for %s. %.2f left.", receipt.Total, itemNames(receipt.Items), receipt.Remaining),
			})
		}
		c.publishState()
		return nil
	})
	return receipt, err
}

// DismissMilestone hides the active milestone banner early.
func (c *Conversation) DismissMilestone() error {
	return c.call(func() error {
		c.dismissMilestone(c.milestoneGen)
		return nil
	})
}

// State returns the current UI state.
func (c *Conversation) State() (StateUpdate, error) {
	var s StateUpdate
	err := c.call(func() error {
		s = c.stateUpdate()
		return nil
	})
	return s, err
}

// Ledger returns the café ledger view.
func (c *Conversation) Ledger() (cafe.View, error) {
	var v cafe.View
	err := c.call(func() error {
		v = c.ledger.View()
		return nil
	})
	return v, err
}

// Everything below runs on the event loop.

func (c *Conversation) startTurn(kind turnKind, text string) {
	req := ChatRequest{
		Message:       text,
		History:       c.history.Turns(),
		Character:     c.opts.Character,
		Affection:     c.session.Affection,
		HoldingHands:  c.session.HoldingHands,
		CafeDate:      c.session.CafeDateActive,
		IsAutoMessage: kind == turnAuto,
		Confession:    kind == turnConfession,
	}
	if kind == turnUser {
		c.history.Add(RoleUser, text)
	}

	c.thinking = true
	c.rearm()
	c.publishState()

	ctx := c.ctx
	go func() {
		reply, err := c.responder.Respond(ctx, req)
		c.post(func() { c.finishTurn(kind, reply, err) })
	}()
}

func (c *Conversation) finishTurn(kind turnKind, reply Reply, err error) {
	c.thinking = false
	defer func() {
		if c.pendingConfession && !c.thinking {
			c.pendingConfession = false
			c.startTurn(turnConfession, "")
		}
	}()

	if err != nil {
		log.Printf("Chat turn failed for conversation %s: %v", c.session.ID, err)
		if kind == turnUser {
			c.presenter.Notice(Notice{Level: NoticeError, Text: "Couldn't reach the chat service."})
			c.presenter.Message(ChatMessage{Role: RoleModel, Text: FallbackMessage, Emotion: affection.Normal, Fallback: true})
			c.showAvatar(affection.Normal, affection.Normal, "")
		}
		c.rearm()
		c.publishState()
		return
	}

	// Override, then score, then stage and milestones, then notify.
	effective := c.reconciler.Reconcile(c.opts.Character, reply.Emotion, c.session.Affection)
	before := c.session.Affection
	if reply.Kind == ReplyOK {
		c.engine.ApplyTurnResult(c.session, effective, reply.AffectionDelta)
	}

	var fired []affection.Milestone
	if c.session.Affection != before {
		fired = affection.CheckMilestones(c.session, c.session.Affection, c.opts.MilestonePolicy)
	}
	c.history.Add(RoleModel, reply.Text)
	c.presenter.Message(ChatMessage{Role: RoleModel, Text: reply.Text, Emotion: effective, Auto: kind == turnAuto})
	c.showAvatar(effective, reply.Emotion, reply.Motion)

	for _, m := range fired {
		c.queueMilestone(m)
		if m.Confession {
			c.scheduleConfession()
		}
	}

	c.rearm()
	c.publishState()
	c.speak(reply.Text)
}

func (c *Conversation) onIdle(gen uint64) {
	if !c.scheduler.Fire(gen) {
		return
	}
	// Counted when the auto-turn fires rather than when it succeeds, so a
	// failing provider still reaches MaxMessages and stops retrying.
	c.session.RecordAutoTurn()
	log.Printf("Conversation %s idle, sending auto-message %d", c.session.ID, c.session.ConsecutiveAutoMessages)
	c.startTurn(turnAuto, "")
}

func (c *Conversation) scheduleConfession() {
	c.clock.AfterFunc(c.opts.ConfessionDelay, func() {
		c.post(func() {
			if c.thinking {
				c.pendingConfession = true
				return
			}
			c.startTurn(turnConfession, "")
		})
	})
}

func (c *Conversation) queueMilestone(m affection.Milestone) {
	c.milestoneQueue = append(c.milestoneQueue, m)
	if c.activeMilestone == nil {
		c.showNextMilestone()
	}
}

func (c *Conversation) showNextMilestone() {
	c.milestoneGen++
	if len(c.milestoneQueue) == 0 {
		c.activeMilestone = nil
		return
	}
	m := c.milestoneQueue[0]
	c.milestoneQueue = c.milestoneQueue[1:]
	c.activeMilestone = &m
	c.presenter.Notice(Notice{Level: NoticeMilestone, Text: fmt.Sprintf("%s: %s", m.Label, m.Description)})

	gen := c.milestoneGen
	c.clock.AfterFunc(c.opts.MilestoneDisplay, func() {
		c.post(func() { c.dismissMilestone(gen) })
	})
}

func (c *Conversation) dismissMilestone(gen uint64) {
	if gen != c.milestoneGen || c.activeMilestone == nil {
		return
	}
	c.showNextMilestone()
	c.publishState()
}

func (c *Conversation) startLoading() {
	c.loading = true
	c.loadingGen++
	gen := c.loadingGen
	c.clock.AfterFunc(c.opts.LoadingDuration, func() {
		c.post(func() {
			if gen != c.loadingGen {
				return
			}
			c.loading = false
			c.rearm()
			c.publishState()
		})
	})
	c.rearm()
	c.publishState()
}

func (c *Conversation) speak(text string) {
	if c.synth == nil || text == "" {
		return
	}
	ctx := c.ctx
	voice := c.opts.Character.Profile().VoiceID
	go func() {
		audio, contentType, err := c.synth.Synthesize(ctx, text, voice)
		if err != nil {
			log.Printf("Speech synthesis failed, text only: %v", err)
			return
		}
		c.post(func() { c.presenter.Audio(Audio{Data: audio, ContentType: contentType}) })
	}()
}

func (c *Conversation) rearm() {
	c.scheduler.Rearm(idle.Conditions{
		Thinking:     c.thinking,
		Loading:      c.loading,
		ModalOpen:    c.menuOpen,
		HasDraft:     c.draft != "",
		AutoMessages: c.session.ConsecutiveAutoMessages,
	})
}

func (c *Conversation) showAvatar(effective, raw affection.Emotion, motion string) {
	c.emotion = effective
	c.presenter.Avatar(AvatarUpdate{
		Character:  c.opts.Character,
		Emotion:    effective,
		RawEmotion: raw,
		Affection:  c.session.Affection,
		Motion:     motion,
		Expression: c.opts.Character.Profile().Expressions[effective],
	})
}

func (c *Conversation) stateUpdate() StateUpdate {
	var active *affection.Milestone
	if c.activeMilestone != nil {
		m := *c.activeMilestone
		active = &m
	}
	return StateUpdate{
		Snapshot:        c.session.Snapshot(),
		ActiveMilestone: active,
		Ledger:          c.ledger.View(),
		Emotion:         c.emotion,
		Thinking:        c.thinking,
		Loading:         c.loading,
		MenuOpen:        c.menuOpen,
	}
}

func (c *Conversation) publishState() {
	c.presenter.State(c.stateUpdate())
}

func itemNames(items []cafe.MenuItem) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return strings.Join(names, " and ")
}
