package doubt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
)

// Answerer produces the assistant's reply to a student question.
type Answerer interface {
	Answer(ctx context.Context, sess Session, question string) (string, error)
}

// cannedAnswerer is the default Answerer: it echoes the question back with a
// generic walkthrough, enough to exercise the full session flow without a
// model behind it.
type cannedAnswerer struct{}

var _ Answerer = cannedAnswerer{}

func (cannedAnswerer) Answer(_ context.Context, _ Session, question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		q = "your question"
	}
	return fmt.Sprintf(
		"Here is how to approach %q:\n\n"+
			"1. Break the problem into the quantities you know and the one you are asked for.\n"+
			"2. Recall the definition or formula that links them.\n"+
			"3. Substitute step by step and check the units of the result.\n\n"+
			"Reply here if any step is unclear and I will expand on it.", Excerpt(q)), nil
}

// Responder delivers simulated assistant answers after a fixed delay. Every
// student turn on an ai session schedules one answer; closing the session (or
// Stop) revokes any answer still pending.
type Responder struct {
	delay    time.Duration
	answerer Answerer
	svc      *Service
	logger   core.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer // session id -> pending answer
}

func newResponder(delay time.Duration, answerer Answerer, svc *Service, logger core.Logger) *Responder {
	return &Responder{
		delay:    delay,
		answerer: answerer,
		svc:      svc,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule queues an answer to question on the given session. A newer student
// turn replaces any answer still pending for the session.
func (r *Responder) Schedule(sessionID, question string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[sessionID]; ok {
		t.Stop()
	}
	r.timers[sessionID] = time.AfterFunc(r.delay, func() {
		r.mu.Lock()
		delete(r.timers, sessionID)
		r.mu.Unlock()
		r.svc.deliverAnswer(sessionID, question)
	})
}

// Cancel revokes the pending answer for a session, if any.
func (r *Responder) Cancel(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[sessionID]; ok {
		t.Stop()
		delete(r.timers, sessionID)
	}
}

// Pending reports whether an answer is queued for the session.
func (r *Responder) Pending(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[sessionID]
	return ok
}

// Stop revokes all pending answers; used on shutdown.
func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// deliverAnswer runs off a Responder timer. The session is re-read so an
// answer never lands on a session that was closed in the delay window.
func (svc *Service) deliverAnswer(sessionID, question string) {
	defer func() {
		if rec := recover(); rec != nil {
			svc.logger.Error(fmt.Sprintf("responder panic on session %s: %v", sessionID, rec))
		}
	}()

	ctx := context.Background()
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("responder: loading session %s: %v", sessionID, err))
		return
	}
	if sess.Status != StatusInProgress {
		return
	}

	answer, err := svc.responder.answerer.Answer(ctx, sess, question)
	if err != nil {
		svc.failAnswer(ctx, sess, err)
		return
	}

	sess, err = svc.repo.UpdateSessionStatus(ctx, sess.ID, []Status{StatusInProgress}, StatusResolved)
	if err != nil {
		// the session moved on while the answer was being produced; drop it
		svc.logger.Warn(fmt.Sprintf("responder: session %s: %v", sessionID, err))
		return
	}
	svc.recordResponderMessage(ctx, sess, SenderAI, answer)
}

// failAnswer degrades an answerer error into a visible system message and
// cancels the session rather than leaving the student waiting forever.
func (svc *Service) failAnswer(ctx context.Context, sess Session, cause error) {
	svc.logger.Error(fmt.Sprintf("responder: answering session %s: %v", sess.ID, cause))

	sess, err := svc.repo.UpdateSessionStatus(ctx, sess.ID, []Status{StatusInProgress}, StatusCancelled)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("responder: session %s: %v", sess.ID, err))
		return
	}
	svc.recordResponderMessage(ctx, sess, SenderSystem,
		"The assistant could not answer this doubt. Please ask a trainer or try again later.")
}

func (svc *Service) recordResponderMessage(ctx context.Context, sess Session, role SenderRole, text string) {
	now := time.Now().UTC()
	msg, err := svc.repo.CreateMessage(ctx, Message{
		SessionID:  sess.ID,
		SenderRole: role,
		Text:       text,
		CreatedAt:  now,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("responder: recording message on session %s: %v", sess.ID, err))
		return
	}
	if err = svc.repo.TouchSession(ctx, sess.ID, now); err != nil {
		svc.logger.Warn(fmt.Sprintf("touching session %s: %v", sess.ID, err))
	}

	name := aiSenderName
	if role == SenderSystem {
		name = "System"
	}
	svc.publish(ctx, core.Event{
		Room: core.SessionRoom(sess.ID),
		Name: EventNewMessage,
		Data: MessageEvent{Message: msg, SenderName: name},
	})
}
