// Package session wires a diagram store, a command interpreter and a layout
// orchestrator into one editing session, and manages sessions in memory.
//
// # Event loop
//
// A [Session] serializes everything that originates from its host: command
// batches, explicit layout requests and clipboard pastes all take the
// session lock. Layout processes started by those calls write positions to
// the store from their own goroutine; the store orders those writes with
// the host's, and the orchestrator discards writes for nodes that no
// longer exist.
//
// # Usage
//
//	sess, err := session.New(uuid.NewString(), session.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	rep := sess.Execute(ctx, "add a\nadd b\nll")
//	for _, d := range rep.Diagnostics() {
//	    fmt.Println(d.Line, d.Code)
//	}
//
// A [Manager] hands out sessions to concurrent HTTP requests and expires
// idle ones.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/layout/force"
	"github.com/matzehuels/flowsketch/pkg/layout/hierarchy"
	"github.com/matzehuels/flowsketch/pkg/notify"
)

// Options configures the collaborators of a session.
// The zero value gives a working session with default engines, no
// clipboard and no change notifications.
type Options struct {
	Logger        *log.Logger
	Placer        diagram.Placer // Zero value means diagram.DefaultPlacer()
	Palette       diagram.Palette
	Clipboard     clipboard.Clipboard
	DefaultEngine string
	FreeTail      int
	NodeWidth     float64
	Force         force.Config
	Hierarchy     hierarchy.Config

	// Publisher, when set, receives a snapshot on every change.
	Publisher     notify.Publisher
	SubjectPrefix string
}

// Session is one editing session.
type Session struct {
	ID          string
	CreatedAt   time.Time
	Store       *diagram.Store
	Interpreter *command.Interpreter
	Layout      *layout.Orchestrator

	clipboard clipboard.Clipboard
	measure   layout.MeasureFunc
	logger    *log.Logger
	seq       uint64 // creation order within a Manager

	mu         sync.Mutex
	lastActive time.Time
	closed     bool

	stopSink context.CancelFunc
	sinkDone chan struct{}
}

// New creates a session with the force and hierarchy engines registered.
// "dot" is accepted as an alias of the hierarchy engine.
func New(id string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("session", id)

	placer := opts.Placer
	if placer == (diagram.Placer{}) {
		placer = diagram.DefaultPlacer()
	}
	freeTail := opts.FreeTail
	if freeTail <= 0 {
		freeTail = layout.DefaultFreeTail
	}
	engine := opts.DefaultEngine
	if engine == "" {
		engine = force.Name
	}

	measure := layout.MeasureMinWidth(opts.NodeWidth)
	store := diagram.NewStore()
	orch := layout.NewOrchestrator(store,
		layout.WithLogger(logger),
		layout.WithMeasure(measure),
		layout.WithFreeTail(freeTail),
		layout.WithDefaultEngine(engine),
	)
	if err := orch.Register(force.New(opts.Force)); err != nil {
		return nil, err
	}
	if err := orch.Register(hierarchy.New(opts.Hierarchy), "dot"); err != nil {
		return nil, err
	}
	if !slices.Contains(orch.Engines(), engine) {
		return nil, errors.New(errors.ErrCodeUnknownLayout, "unknown default layout %q", engine)
	}

	cmdOpts := []command.Option{
		command.WithLogger(logger),
		command.WithPlacer(placer),
		command.WithPalette(opts.Palette),
	}
	if opts.Clipboard != nil {
		cmdOpts = append(cmdOpts, command.WithClipboard(opts.Clipboard))
	}

	now := time.Now()
	s := &Session{
		ID:          id,
		CreatedAt:   now,
		Store:       store,
		Interpreter: command.New(store, orch, cmdOpts...),
		Layout:      orch,
		clipboard:   opts.Clipboard,
		measure:     measure,
		logger:      logger,
		lastActive:  now,
	}

	if opts.Publisher != nil {
		sink, err := notify.NewWithPublisher(opts.Publisher, store, notify.Config{
			SubjectPrefix: opts.SubjectPrefix,
			Session:       id,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		s.stopSink = cancel
		s.sinkDone = make(chan struct{})
		go func() {
			defer close(s.sinkDone)
			_ = sink.Run(ctx)
		}()
	}
	return s, nil
}

// Execute runs a command batch. A closed session refuses the batch with a
// SESSION_NOT_FOUND diagnostic and runs nothing.
func (s *Session) Execute(ctx context.Context, text string) command.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return command.Refuse(s.errClosed())
	}
	s.lastActive = time.Now()
	return s.Interpreter.Execute(ctx, text)
}

// Replay runs serialized text without implicit layout requests, keeping
// the positions it sets. See [command.Interpreter.Replay].
func (s *Session) Replay(ctx context.Context, text string) command.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return command.Refuse(s.errClosed())
	}
	s.lastActive = time.Now()
	return s.Interpreter.Replay(ctx, text)
}

// RequestLayout starts a layout outside the command language.
// An empty engine selects the default.
func (s *Session) RequestLayout(mode layout.Mode, engine string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.errClosed()
	}
	s.lastActive = time.Now()
	return s.Layout.Request(mode, engine)
}

// Paste replays the clipboard contents. The clipboard normally holds the
// output of copy, so positions are kept.
func (s *Session) Paste(ctx context.Context) (command.Report, error) {
	if s.Closed() {
		return command.Report{}, s.errClosed()
	}
	if s.clipboard == nil {
		return command.Report{}, errors.New(errors.ErrCodeClipboard, "no clipboard configured")
	}
	text, err := s.clipboard.Read(ctx)
	if err != nil {
		return command.Report{}, err
	}
	if err := errors.ValidateScript(text); err != nil {
		return command.Report{}, err
	}
	rep := s.Replay(ctx, text)
	if err := rep.Refused(); err != nil {
		return command.Report{}, err
	}
	return rep, nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) errClosed() *errors.Error {
	return errors.New(errors.ErrCodeSessionNotFound, "session %s is closed", s.ID)
}

// Snapshot returns the current diagram.
func (s *Session) Snapshot() diagram.Graph {
	return s.Store.Snapshot()
}

// Measure returns the node size estimate used for layout, so renderers
// draw boxes the engines planned for.
func (s *Session) Measure() layout.MeasureFunc {
	return s.measure
}

// LastActive returns when the host last touched the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close stops the running layout and the change publisher.
// Close is idempotent. The clipboard is owned by the caller.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.Layout.Stop()
	if s.stopSink != nil {
		s.stopSink()
		<-s.sinkDone
	}
	s.logger.Debug("session closed")
	return nil
}
