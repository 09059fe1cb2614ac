package dictation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dictado/buffer"
	"dictado/log"
	"dictado/recognizer"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrModelNotReady    = errors.New("model not loaded")
)

const defaultQueueSize = 64

// PermissionGate reports whether the microphone may be used.
type PermissionGate func() bool

type Clipboard interface {
	Copy(text string) error
}

type Options struct {
	Engine      recognizer.Engine
	ModelID     string
	Session     recognizer.SessionConfig
	Permission  PermissionGate // nil grants access
	Clipboard   Clipboard      // nil disables Copy
	QueueSize   int            // inbox capacity for engine events
	LoadTimeout time.Duration  // 0 waits forever
}

// Controller owns the dictation state. Every mutation runs on a single loop
// goroutine; commands wait for the loop to apply them, engine events and
// model-load completions are queued without waiting.
type Controller struct {
	opts Options

	inbox    chan func()
	quit     chan struct{}
	loopDone chan struct{}
	loads    sync.WaitGroup

	closeOnce sync.Once

	latestMu sync.Mutex
	latest   Snapshot

	// owned by the loop
	snap       Snapshot
	closed     bool
	model      recognizer.Model
	loadSeq    int
	loadCancel context.CancelFunc
	session    recognizer.Session
	runID      string
	fragments  int
	total      int
	subs       map[int]chan Snapshot
	nextSub    int
}

func New(opts Options) *Controller {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	c := &Controller{
		opts:     opts,
		inbox:    make(chan func(), opts.QueueSize),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}
	c.snap = Snapshot{Engine: opts.Engine.Name(), ModelID: opts.ModelID}
	c.latest = c.snap
	log.SessionStart(c.snap.Engine, opts.ModelID)
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it. It reports false once the
// controller is closed.
func (c *Controller) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case c.inbox <- func() { fn(); close(done) }:
	case <-c.loopDone:
		return false
	}
	select {
	case <-done:
		return true
	case <-c.loopDone:
		return false
	}
}

func (c *Controller) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.loopDone:
		return false
	}
}

func (c *Controller) publish() {
	s := c.snap
	c.latestMu.Lock()
	c.latest = s
	c.latestMu.Unlock()
	for _, ch := range c.subs {
		offer(ch, s)
	}
}

// offer replaces any undelivered snapshot in ch with s.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (c *Controller) permitted() bool {
	return c.opts.Permission == nil || c.opts.Permission()
}

// Snapshot returns the most recently published state.
func (c *Controller) Snapshot() Snapshot {
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	return c.latest
}

// Subscribe returns a channel that always holds the latest snapshot not yet
// received. A slow reader skips intermediate states. The channel is closed
// by cancel or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	id := -1
	ok := c.do(func() {
		if c.closed {
			return
		}
		id = c.nextSub
		c.nextSub++
		c.subs[id] = ch
		ch <- c.snap
	})
	if !ok || id < 0 {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.do(func() {
				if sub, found := c.subs[id]; found {
					delete(c.subs, id)
					close(sub)
				}
			})
		})
	}
	return ch, cancel
}

func (c *Controller) LoadModel() { c.do(c.loadModel) }

func (c *Controller) loadModel() {
	if c.closed || c.snap.Model == ModelLoading || c.snap.Model == ModelReady {
		return
	}
	if !c.permitted() {
		c.snap.LastError = ErrPermissionDenied.Error()
		c.publish()
		return
	}

	c.snap.Model = ModelLoading
	c.publish()

	c.loadSeq++
	seq := c.loadSeq
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.LoadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.LoadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.loadCancel = cancel

	engine, id := c.opts.Engine, c.opts.ModelID
	started := time.Now()
	c.loads.Add(1)
	go func() {
		defer c.loads.Done()
		defer cancel()
		m, err := engine.Load(ctx, id)
		elapsed := time.Since(started)
		if !c.post(func() { c.modelLoaded(seq, m, err, elapsed) }) && m != nil {
			m.Close()
		}
	}()
}

func (c *Controller) modelLoaded(seq int, m recognizer.Model, err error, elapsed time.Duration) {
	if c.closed || seq != c.loadSeq {
		if m != nil {
			m.Close()
		}
		return
	}
	c.loadCancel = nil
	if err != nil {
		c.snap.Model = ModelFailed
		c.snap.LastError = "model load failed: " + err.Error()
		log.ModelFailed(c.opts.ModelID, err)
		c.publish()
		return
	}
	c.model = m
	c.snap.Model = ModelReady
	c.snap.LastError = ""
	log.ModelLoaded(m.ID(), elapsed)
	c.publish()
}

func (c *Controller) StartListening() { c.do(c.startListening) }

// StopListening ends the running session, if any, and clears the partial
// hypothesis. Events the session still produces are dropped.
func (c *Controller) StopListening() {
	c.do(func() {
		if c.snap.Listening {
			c.stopListening("user")
			c.publish()
		}
	})
}

func (c *Controller) ToggleListening() {
	c.do(func() {
		if c.snap.Listening {
			c.stopListening("user")
			c.publish()
			return
		}
		c.startListening()
	})
}

func (c *Controller) startListening() {
	if c.closed || c.snap.Listening {
		return
	}
	if !c.permitted() {
		c.snap.LastError = ErrPermissionDenied.Error()
		c.publish()
		return
	}
	if c.snap.Model != ModelReady || c.model == nil {
		c.snap.LastError = ErrModelNotReady.Error()
		c.publish()
		return
	}

	sess, err := c.model.Start(context.Background(), c.opts.Session)
	if err != nil {
		c.snap.LastError = "could not start dictation: " + err.Error()
		log.Errorf("start session: %v", err)
		c.publish()
		return
	}

	c.session = sess
	c.runID = uuid.NewString()
	c.fragments = 0
	c.snap.Listening = true
	c.snap.LastError = ""
	c.snap.Buffer.Partial = ""
	log.ListeningStart(c.runID)
	go c.forward(c.runID, sess)
	c.publish()
}

// forward moves session events onto the loop, tagged with the run they
// belong to.
func (c *Controller) forward(runID string, sess recognizer.Session) {
	for ev := range sess.Events() {
		if !c.post(func() { c.handleEvent(runID, ev) }) {
			return
		}
	}
	c.post(func() {
		if c.runID == runID && c.snap.Listening {
			c.stopListening("closed")
			c.publish()
		}
	})
}

func (c *Controller) handleEvent(runID string, ev recognizer.Event) {
	if c.closed || !c.snap.Listening || runID != c.runID {
		return
	}
	switch ev.Kind {
	case recognizer.EventPartial:
		c.snap.Buffer = c.snap.Buffer.MergePartial(ev.Text)
	case recognizer.EventResult:
		c.mergeFinal(ev.Text)
	case recognizer.EventFinalResult:
		c.mergeFinal(ev.Text)
		c.stopListening("final")
	case recognizer.EventError:
		msg := ev.Text
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		if msg == "" {
			msg = "unknown error"
		}
		c.snap.LastError = "recognition error: " + msg
		log.RecognitionError(runID, errors.New(msg))
		c.stopListening("error")
	case recognizer.EventTimeout:
		c.stopListening("timeout")
	}
	c.publish()
}

func (c *Controller) mergeFinal(text string) {
	c.snap.Buffer = c.snap.Buffer.MergeFinal(text)
	if strings.TrimSpace(text) != "" {
		c.fragments++
		c.total++
		log.TranscriptText(text)
	}
}

// stopListening is idempotent and does not publish.
func (c *Controller) stopListening(reason string) {
	if !c.snap.Listening {
		return
	}
	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
	log.ListeningStop(c.runID, reason, c.fragments)
	c.runID = ""
	c.snap.Listening = false
	c.snap.Buffer.Partial = ""
}

// edit applies fn to the buffer unless dictation is running.
func (c *Controller) edit(fn func(buffer.State) buffer.State) {
	c.do(func() {
		if c.closed || c.snap.Listening {
			return
		}
		c.snap.Buffer = fn(c.snap.Buffer)
		c.publish()
	})
}

func (c *Controller) DeleteLastChar() {
	c.edit(buffer.State.DeleteLastChar)
}

func (c *Controller) DeleteLastWord() {
	c.edit(buffer.State.DeleteLastWord)
}

func (c *Controller) SetValue(text string, sel buffer.Range) {
	c.edit(func(s buffer.State) buffer.State { return s.SetValue(text, sel) })
}

func (c *Controller) MoveCursor(delta int, extend bool) {
	c.edit(func(s buffer.State) buffer.State { return s.MoveCursor(delta, extend) })
}

func (c *Controller) Type(text string) {
	c.edit(func(s buffer.State) buffer.State { return s.InsertTyped(text) })
}

// ClearText empties the buffer, also while listening.
func (c *Controller) ClearText() {
	c.do(func() {
		if c.closed {
			return
		}
		c.snap.Buffer = c.snap.Buffer.Clear()
		c.publish()
	})
}

// Copy hands the selected text, or all committed text when nothing is
// selected, to the clipboard. Failures are logged and reported as false,
// never as a screen error.
func (c *Controller) Copy() bool {
	b := c.Snapshot().Buffer
	text := b.SelectedText()
	if text == "" {
		text = b.Text
	}
	if text == "" || c.opts.Clipboard == nil {
		return false
	}
	if err := c.opts.Clipboard.Copy(text); err != nil {
		log.Warnf("clipboard copy failed: %v", err)
		return false
	}
	return true
}

// Close stops dictation, releases the model and ends all subscriptions.
// Further calls are no-ops.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.do(c.shutdown)
		c.loads.Wait()
		close(c.quit)
		<-c.loopDone
	})
}

func (c *Controller) shutdown() {
	c.stopListening("shutdown")
	c.closed = true
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	if c.model != nil {
		if err := c.model.Close(); err != nil {
			log.Warnf("model close: %v", err)
		}
		c.model = nil
	}
	c.publish()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	log.SessionEnd(c.total)
}
