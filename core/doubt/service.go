package doubt

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("doubt session not found")
	ErrForbidden = errors.New("not a participant of this doubt session")
	ErrConflict  = errors.New("doubt session no longer accepts this action")

	errIncompleteProfile = errors.New("school and grade must be set before asking a doubt")
	errInvalidTrainer    = errors.New("trainer does not exist")
	errInvalidTopic      = errors.New("topic does not exist for this grade")
	errNotAISession      = errors.New("feedback only applies to ai sessions")
	errMissingVerdict    = errors.New("helpful is required")

	aiSenderName = "AI Assistant"
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// FilterSessions applies AND operation on available QueryFilter fields.
		FilterSessions(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error)
		// UpdateSessionStatus conditionally moves a session out of one of the `from`
		// statuses; it fails with ErrConflict when the session has already moved on.
		// This conditional write is the only guard against racing status mutations.
		UpdateSessionStatus(ctx context.Context, id string, from []Status, to Status) (Session, error)
		SetSessionFeedback(ctx context.Context, id string, helpful bool, comment string) (Session, error)
		// TouchSession bumps LastMessageAt.
		TouchSession(ctx context.Context, id string, at time.Time) error
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QuerySessionMessages returns a session's messages ordered by creation time.
		QuerySessionMessages(ctx context.Context, sessionID string) ([]Message, error)
	}

	ServiceInterface interface {
		InitiateTrainerDoubt(ctx context.Context, student user.User, nd NewTrainerDoubt) (Session, error)
		InitiateAIDoubt(ctx context.Context, student user.User, nd NewAIDoubt) (Session, error)
		AppendMessage(ctx context.Context, actor user.User, sessionID string, nm NewMessage) (Message, error)
		Close(ctx context.Context, actor user.User, sessionID string) (Session, error)
		SubmitAIFeedback(ctx context.Context, actor user.User, sessionID string, fb AIFeedback) (Session, error)
		Get(ctx context.Context, actor user.User, sessionID string) (Session, error)
		History(ctx context.Context, actor user.User, sessionID string) ([]Message, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Session, error)
	}

	Deps struct {
		Repo      Repository
		UserSvc   user.ServiceInterface
		SchoolSvc school.ServiceInterface
		TopicSvc  topic.ServiceInterface
		Relay     core.Relay
		MailSvc   core.EmailService
		Answerer  Answerer // nil: canned answers
		Logger    core.Logger
		Conf      *core.Config
	}

	Service struct {
		repo      Repository
		usrSvc    user.ServiceInterface
		schSvc    school.ServiceInterface
		topSvc    topic.ServiceInterface
		relay     core.Relay
		mailSvc   core.EmailService
		logger    core.Logger
		responder *Responder
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(deps Deps) *Service {
	svc := &Service{
		repo:    deps.Repo,
		usrSvc:  deps.UserSvc,
		schSvc:  deps.SchoolSvc,
		topSvc:  deps.TopicSvc,
		relay:   deps.Relay,
		mailSvc: deps.MailSvc,
		logger:  deps.Logger,
	}
	answerer := deps.Answerer
	if answerer == nil {
		answerer = cannedAnswerer{}
	}
	svc.responder = newResponder(deps.Conf.Doubt.ResponderDelay, answerer, svc, deps.Logger)
	return svc
}

// Responder exposes the simulated responder, mainly so callers can flush or
// inspect pending answers in tests.
func (svc *Service) Responder() *Responder { return svc.responder }

// Authorize is the session access guard: admins may access any session,
// anyone else must be the owning student or the assigned trainer.
func Authorize(actor user.User, sess Session) error {
	if actor.IsAdmin() || sess.IsParticipant(actor.ID) {
		return nil
	}
	return ErrForbidden
}

func (svc *Service) InitiateTrainerDoubt(ctx context.Context, student user.User, nd NewTrainerDoubt) (Session, error) {
	sch, err := svc.resolveInitiatorSchool(ctx, student)
	if err != nil {
		return Session{}, err
	}

	trainer, err := svc.usrSvc.GetByID(ctx, nd.TrainerID)
	if err != nil || !trainer.IsTrainer() {
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return Session{}, errors.Wrap(err, "resolving trainer")
		}
		return Session{}, core.NewValidationError(errInvalidTrainer,
			core.FieldError{Field: "trainer_id", Error: errInvalidTrainer.Error()})
	}

	if _, err = svc.topSvc.GetForGrade(ctx, nd.TopicID, student.Grade); err != nil {
		if errors.Cause(err) != topic.ErrNotFound {
			return Session{}, errors.Wrap(err, "resolving topic")
		}
		return Session{}, core.NewValidationError(errInvalidTopic,
			core.FieldError{Field: "topic_id", Error: errInvalidTopic.Error()})
	}

	sess, err := svc.createSession(ctx, student, Session{
		StudentID: student.ID,
		TrainerID: trainer.ID,
		TopicID:   nd.TopicID,
		SchoolID:  sch.ID,
		Grade:     student.Grade,
		Type:      TypeTrainer,
		DoubtText: nd.Text,
	}, nd.Text, nd.AttachmentURL)
	if err != nil {
		return Session{}, err
	}

	svc.publish(ctx, core.Event{
		Room: core.PersonalRoom(trainer.ID),
		Name: EventNewDoubtSession,
		Data: SessionEvent{
			SessionID:   sess.ID,
			StudentName: student.Name,
			Excerpt:     Excerpt(nd.Text),
			SchoolName:  sch.Name,
			Grade:       student.Grade,
		},
	})
	if trainer.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: trainer.Name, Address: trainer.Email}},
			Subject:      "New doubt assigned",
			TemplateName: "new_doubt",
			TemplateData: struct {
				TrainerName, StudentName, SchoolName, Question string
				Grade                                          int
			}{trainer.Name, student.Name, sch.Name, nd.Text, student.Grade},
		})
	}
	return sess, nil
}

func (svc *Service) InitiateAIDoubt(ctx context.Context, student user.User, nd NewAIDoubt) (Session, error) {
	sch, err := svc.resolveInitiatorSchool(ctx, student)
	if err != nil {
		return Session{}, err
	}

	sess, err := svc.createSession(ctx, student, Session{
		StudentID: student.ID,
		SchoolID:  sch.ID,
		Grade:     student.Grade,
		Type:      TypeAI,
		DoubtText: nd.Text,
	}, nd.Text, nd.AttachmentURL)
	if err != nil {
		return Session{}, err
	}

	svc.responder.Schedule(sess.ID, nd.Text)
	return sess, nil
}

func (svc *Service) AppendMessage(ctx context.Context, actor user.User, sessionID string, nm NewMessage) (Message, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Message{}, err
	}
	if err = Authorize(actor, sess); err != nil {
		return Message{}, err
	}
	if sess.IsTerminal() {
		return Message{}, ErrConflict
	}

	role := sessionRole(actor, sess)

	switch {
	case sess.Status == StatusResolved && role == SenderStudent && CanTransition(sess.Type, sess.Status, StatusInProgress):
		// the one reopen edge: a student follow-up on a resolved ai session
		if sess, err = svc.repo.UpdateSessionStatus(ctx, sess.ID, []Status{StatusResolved}, StatusInProgress); err != nil {
			return Message{}, err
		}
	case sess.Status == StatusPending && role == SenderTrainer:
		// first trainer reply escalates the session
		if sess, err = svc.repo.UpdateSessionStatus(ctx, sess.ID, []Status{StatusPending}, StatusInProgress); err != nil {
			return Message{}, err
		}
	}

	now := time.Now().UTC()
	msg, err := svc.repo.CreateMessage(ctx, Message{
		SessionID:     sess.ID,
		SenderID:      actor.ID,
		SenderRole:    role,
		Text:          nm.Text,
		AttachmentURL: nm.AttachmentURL,
		CreatedAt:     now,
	})
	if err != nil {
		return Message{}, err
	}
	if err = svc.repo.TouchSession(ctx, sess.ID, now); err != nil {
		svc.logger.Warn(fmt.Sprintf("touching session %s: %v", sess.ID, err))
	}

	svc.publish(ctx, core.Event{
		Room: core.SessionRoom(sess.ID),
		Name: EventNewMessage,
		Data: MessageEvent{Message: msg, SenderName: actor.Name},
	})
	if role == SenderTrainer {
		svc.publish(ctx, core.Event{
			Room: core.PersonalRoom(sess.StudentID),
			Name: EventNewNotification,
			Data: NotificationEvent{
				ID:        msg.ID,
				Type:      "doubt_reply",
				Text:      fmt.Sprintf("%s replied to your doubt", actor.Name),
				Excerpt:   Excerpt(nm.Text),
				Timestamp: now,
				Read:      false,
				SessionID: sess.ID,
			},
		})
	}
	if sess.Type == TypeAI && role == SenderStudent {
		svc.responder.Schedule(sess.ID, nm.Text)
	}
	return msg, nil
}

func (svc *Service) Close(ctx context.Context, actor user.User, sessionID string) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err = Authorize(actor, sess); err != nil {
		return Session{}, err
	}
	if sess.IsTerminal() {
		return Session{}, ErrConflict
	}

	sess, err = svc.repo.UpdateSessionStatus(ctx, sess.ID, TransitionSources(sess.Type, StatusClosed), StatusClosed)
	if err != nil {
		return Session{}, err
	}

	// a pending simulated answer must not land on a closed session
	svc.responder.Cancel(sess.ID)

	svc.publish(ctx, core.Event{
		Room: core.SessionRoom(sess.ID),
		Name: EventSessionClosed,
		Data: ClosedEvent{SessionID: sess.ID, ClosedByName: actor.Name, Status: StatusClosed},
	})
	return sess, nil
}

func (svc *Service) SubmitAIFeedback(ctx context.Context, actor user.User, sessionID string, fb AIFeedback) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	// feedback belongs to the owning student
	if !actor.IsAdmin() && sess.StudentID != actor.ID {
		return Session{}, ErrForbidden
	}
	if sess.Type != TypeAI {
		return Session{}, core.NewValidationError(errNotAISession)
	}
	if fb.Helpful == nil {
		return Session{}, core.NewValidationError(errMissingVerdict)
	}
	return svc.repo.SetSessionFeedback(ctx, sess.ID, *fb.Helpful, fb.Comment)
}

func (svc *Service) Get(ctx context.Context, actor user.User, sessionID string) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err = Authorize(actor, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (svc *Service) History(ctx context.Context, actor user.User, sessionID string) ([]Message, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err = Authorize(actor, sess); err != nil {
		return nil, err
	}
	return svc.repo.QuerySessionMessages(ctx, sess.ID)
}

// Query lists sessions scoped to the actor: admins see everything, trainers
// their assigned sessions, students their own.
func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Session, error) {
	var f QueryFilter
	if filter != nil {
		f = *filter
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTrainer():
		f.TrainerID = actor.ID
	default:
		f.StudentID = actor.ID
	}
	return svc.repo.FilterSessions(ctx, f, core.DBOrdering{Field: "last_message_at"})
}

func (svc *Service) resolveInitiatorSchool(ctx context.Context, student user.User) (school.School, error) {
	if !student.HasCompleteProfile() {
		return school.School{}, core.NewValidationError(errIncompleteProfile)
	}
	sch, err := svc.schSvc.GetByName(ctx, student.School)
	if err != nil {
		// school.ErrNotFound propagates: nothing must be persisted
		return school.School{}, err
	}
	return sch, nil
}

// createSession persists a session in its initial status along with the
// initiating student message.
func (svc *Service) createSession(ctx context.Context, student user.User, sess Session, text, attachmentURL string) (Session, error) {
	now := time.Now().UTC()
	sess.Status = InitialStatus(sess.Type)
	sess.LastMessageAt = now
	sess.CreatedAt = now
	sess.UpdatedAt = now

	sess, err := svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, err
	}
	msg, err := svc.repo.CreateMessage(ctx, Message{
		SessionID:     sess.ID,
		SenderID:      student.ID,
		SenderRole:    SenderStudent,
		Text:          text,
		AttachmentURL: attachmentURL,
		CreatedAt:     now,
	})
	if err != nil {
		return Session{}, err
	}

	svc.publish(ctx, core.Event{
		Room: core.SessionRoom(sess.ID),
		Name: EventNewMessage,
		Data: MessageEvent{Message: msg, SenderName: student.Name},
	})
	return sess, nil
}

// sessionRole maps an authorized actor to the role recorded on their messages.
// Non-participant admins post as system.
func sessionRole(actor user.User, sess Session) SenderRole {
	switch {
	case actor.ID == sess.StudentID:
		return SenderStudent
	case sess.TrainerID != "" && actor.ID == sess.TrainerID:
		return SenderTrainer
	default:
		return SenderSystem
	}
}

// publish is fire-and-forget: the relay is a liveness optimization, a failed
// delivery never fails the request.
func (svc *Service) publish(ctx context.Context, event core.Event) {
	if err := svc.relay.Publish(ctx, event); err != nil {
		svc.logger.Warn(fmt.Sprintf("relay publish %s to %s: %v", event.Name, event.Room, err))
	}
}
