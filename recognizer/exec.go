package recognizer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"

	"dictado/audio"
	"dictado/log"
)

const (
	sessionEventBuffer = 32
	stderrTailBytes    = 2048
	decoderWaitDelay   = 2 * time.Second
)

type ExecConfig struct {
	Command  string // decoder command line, e.g. "vosk-stream --threads 2"
	ModelDir string // directory holding one subdirectory per model id
	Device   string // capture device name, empty for the default
}

// Exec runs a Vosk-compatible decoder process per session. The process gets
// --model and --sample-rate appended, reads PCM16 mono on stdin and writes
// one tagged JSON hypothesis per line on stdout.
type Exec struct {
	args []string
	cfg  ExecConfig
	src  audio.Context
}

func NewExec(cfg ExecConfig, src audio.Context) (*Exec, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse decoder command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("decoder command is empty")
	}
	return &Exec{args: args, cfg: cfg, src: src}, nil
}

func (e *Exec) Name() string { return "exec" }

func (e *Exec) Load(ctx context.Context, modelID string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if modelID == "" {
		return nil, fmt.Errorf("%w: empty model id", ErrModelNotFound)
	}
	dir := filepath.Join(e.cfg.ModelDir, modelID)
	fi, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrModelNotFound, dir)
	}
	bin, err := exec.LookPath(e.args[0])
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return &execModel{id: modelID, dir: dir, bin: bin, args: e.args[1:], device: e.cfg.Device, src: e.src}, nil
}

type execModel struct {
	id     string
	dir    string
	bin    string
	args   []string
	device string
	src    audio.Context

	mu     sync.Mutex
	closed bool
}

func (m *execModel) ID() string { return m.id }

func (m *execModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *execModel) Start(ctx context.Context, cfg SessionConfig) (Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.New("model is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = audio.SampleRate
	}
	args := append(append([]string{}, m.args...), "--model", m.dir, "--sample-rate", strconv.Itoa(rate))

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(sctx, m.bin, args...)
	cmd.WaitDelay = decoderWaitDelay
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	capt, err := openCapture(m.src, m.device, cfg.SilenceTimeout > 0)
	if err != nil {
		cancel()
		_ = cmd.Wait()
		return nil, err
	}

	s := &execSession{
		id:      uuid.NewString(),
		pipe:    newEventPipe(sessionEventBuffer),
		cmd:     cmd,
		stdin:   stdin,
		capture: capt,
		stderr:  stderr,
		cancel:  cancel,
	}
	log.Infof("decoder started: pid=%d model=%s", cmd.Process.Pid, m.id)

	go s.writeAudio()
	go func() {
		<-sctx.Done()
		stdout.Close()
	}()
	if done := capt.done(); done != nil {
		go func() {
			select {
			case <-done:
				capt.stop()
			case <-sctx.Done():
			}
		}()
	}
	s.pipe.spawn(func() { s.readHypotheses(stdout) })
	if capt.vad != nil {
		s.pipe.spawn(func() {
			watchSilence(s.pipe.done, capt.vad, cfg.SilenceTimeout, func() {
				s.finish(Event{Kind: EventTimeout})
			})
		})
	}
	return s, nil
}

type execSession struct {
	id      string
	pipe    *eventPipe
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	capture *capture
	stderr  *tailBuffer
	cancel  context.CancelFunc

	releaseOnce sync.Once
}

func (s *execSession) ID() string           { return s.id }
func (s *execSession) Events() <-chan Event { return s.pipe.events }

func (s *execSession) Stop() {
	s.pipe.close()
	s.release()
	s.pipe.drain()
}

// writeAudio copies captured PCM to the decoder and closes its stdin once
// the capture stops.
func (s *execSession) writeAudio() {
	defer s.stdin.Close()
	for chunk := range s.capture.pump.ch {
		if _, err := s.stdin.Write(chunk); err != nil {
			return
		}
	}
}

func (s *execSession) readHypotheses(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := ParseHypothesis([]byte(line))
		if err != nil {
			log.Warnf("decoder output ignored: %v", err)
			continue
		}
		if !s.pipe.emit(ev) {
			break
		}
	}
	// drain so the decoder never blocks on a full stdout pipe
	_, _ = io.Copy(io.Discard, stdout)

	if err := s.cmd.Wait(); err != nil {
		tail := strings.TrimSpace(s.stderr.String())
		if tail != "" {
			err = fmt.Errorf("decoder exited: %w: %s", err, tail)
		} else {
			err = fmt.Errorf("decoder exited: %w", err)
		}
		s.finish(Event{Kind: EventError, Err: err})
		return
	}
	s.finish(Event{Kind: EventFinalResult})
}

// finish delivers the last event and ends the session from inside one of
// its producers.
func (s *execSession) finish(ev Event) {
	s.pipe.emit(ev)
	s.pipe.close()
	s.release()
}

func (s *execSession) release() {
	s.releaseOnce.Do(func() {
		s.cancel()
		s.capture.stop()
	})
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
