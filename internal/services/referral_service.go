// Package services – ReferralService
//
// ReferralService attributes registrants to referrers. It owns the
// write-once rule for referred_by, the self-referral checks, and the
// registration flow that mints a participant's own code.
//
// Checks run in a fixed order so that callers see a stable error for a given
// state: AlreadyLocked, EmptyCode, SelfReferral (own code), InvalidCode,
// SelfReferral (same identity). The write itself is a conditional update, so
// two concurrent attributions for the same participant cannot both succeed.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/repo"
	"github.com/tbourn/fallfest-referrals/internal/sysutil"
)

// ChangePublisher receives participant change events after each commit.
type ChangePublisher interface {
	Publish(ev domain.ChangeEvent) int
}

// ReferralService implements attribution and registration.
type ReferralService struct {
	DB      *gorm.DB
	Codes   *CodeGenerator
	Pending *PendingService // optional
	Changes ChangePublisher // optional

	now func() time.Time
}

// NewReferralService wires a ReferralService. pending and changes may be nil.
func NewReferralService(db *gorm.DB, codes *CodeGenerator, pending *PendingService, changes ChangePublisher) *ReferralService {
	return &ReferralService{
		DB:      db,
		Codes:   codes,
		Pending: pending,
		Changes: changes,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput carries the registration form plus any referral codes seen
// on the way in. ReferralCode (the form field) wins over LinkCode (a `ref`
// on the same request), which wins over the visitor's pending slot.
type RegisterInput struct {
	FullName     string
	Email        string
	ReferralCode string
	LinkCode     string
	VisitorKey   string
}

// RegistrationResult reports the created participant. ReferralError is set
// when a supplied code could not be used; registration still succeeds.
type RegistrationResult struct {
	Participant   *domain.Participant
	Referrer      *domain.Participant
	ReferralError error
}

func (s *ReferralService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// ApplyReferral attributes the caller to the owner of code. A caller without
// a participant record is registered in the same step. On success the pending
// slots of visitorKey and of the caller are cleared.
func (s *ReferralService) ApplyReferral(ctx context.Context, actor domain.Identity, code, visitorKey string) (p *domain.Participant, err error) {
	tr := otel.Tracer("services/ReferralService")
	ctx, span := tr.Start(ctx, "ApplyReferral",
		trace.WithAttributes(attribute.String("user.id", actor.UserID)),
	)
	defer span.End()
	defer func() {
		attributionOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	code = NormalizeCode(code)

	existing, err := s.findByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Locked() {
		return nil, ErrAlreadyLocked
	}
	if code == "" {
		return nil, ErrEmptyCode
	}
	if existing != nil && code == existing.ReferralCode {
		return nil, ErrSelfReferral
	}
	referrer, err := s.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.UserID == actor.UserID || (existing != nil && referrer.ID == existing.ID) {
		return nil, ErrSelfReferral
	}
	span.SetAttributes(attribute.Int64("referrer.id", int64(referrer.ID)))

	if existing != nil {
		p, err = s.attachReferrer(ctx, existing.ID, referrer.ID)
	} else {
		p, err = s.insertReferred(ctx, actor, referrer)
	}
	if err != nil {
		return nil, err
	}

	s.clearPending(ctx, visitorKey, actor.UserID)
	s.publish(domain.ChangeReferralAttributed, p.ID, referrer.ID)
	return p, nil
}

// Register creates the caller's participant record with a fresh code and,
// when a usable referral code is available, attributes it in the same
// transaction.
func (s *ReferralService) Register(ctx context.Context, actor domain.Identity, in RegisterInput) (*RegistrationResult, error) {
	tr := otel.Tracer("services/ReferralService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(attribute.String("user.id", actor.UserID)),
	)
	defer span.End()

	name := strings.TrimSpace(sysutil.FirstNonEmpty(in.FullName, actor.Name))
	email := strings.TrimSpace(sysutil.FirstNonEmpty(in.Email, actor.Email))
	if name == "" {
		return nil, ErrInvalidRegistration
	}

	existing, err := s.findByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		attributionOutcomes.WithLabelValues(outcomeLabel(ErrAlreadyRegistered)).Inc()
		return nil, ErrAlreadyRegistered
	}

	code, err := s.pickCode(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	res := &RegistrationResult{}
	if code != "" {
		ref, rerr := s.resolveCode(ctx, code)
		switch {
		case errors.Is(rerr, ErrInvalidCode):
			res.ReferralError = rerr
		case rerr != nil:
			return nil, rerr
		case ref.UserID == actor.UserID:
			res.ReferralError = ErrSelfReferral
		default:
			res.Referrer = ref
		}
	}

	p, err := s.insertParticipant(ctx, actor, name, email, res.Referrer)
	if errors.Is(err, repo.ErrDuplicate) {
		if again, ferr := s.findByUser(ctx, actor.UserID); ferr == nil && again != nil {
			return nil, ErrAlreadyRegistered
		}
		return nil, ErrCollision
	}
	if err != nil {
		return nil, err
	}
	res.Participant = p

	s.clearPending(ctx, in.VisitorKey, actor.UserID)

	var referrerID uint
	switch {
	case res.Referrer != nil:
		referrerID = res.Referrer.ID
		attributionOutcomes.WithLabelValues(outcomeLabel(nil)).Inc()
	case res.ReferralError != nil:
		attributionOutcomes.WithLabelValues(outcomeLabel(res.ReferralError)).Inc()
	}
	span.SetAttributes(attribute.Int64("participant.id", int64(p.ID)))
	s.publish(domain.ChangeParticipantRegistered, p.ID, referrerID)
	return res, nil
}

// State reports whether userID is registered. For unregistered callers the
// pending code of visitorKey (or of the user id) is included.
func (s *ReferralService) State(ctx context.Context, userID, visitorKey string) (domain.ParticipantState, error) {
	p, err := s.findByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return domain.Registered{Participant: *p}, nil
	}
	st := domain.Unregistered{UserID: userID}
	if s.Pending != nil {
		for _, k := range []string{visitorKey, userID} {
			code, err := s.Pending.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if code != "" {
				st.PendingCode = code
				break
			}
		}
	}
	return st, nil
}

// Participant returns the caller's record or ErrNotRegistered.
func (s *ReferralService) Participant(ctx context.Context, userID string) (*domain.Participant, error) {
	p, err := s.findByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotRegistered
	}
	return p, nil
}

// ReferrerOf returns the participant that p is attributed to. It returns nil
// when p is unlocked or its stored reference does not resolve.
func (s *ReferralService) ReferrerOf(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	if p == nil || !p.Locked() {
		return nil, nil
	}
	id, ok := p.ReferrerID()
	if !ok {
		return nil, nil
	}
	ref, err := repo.GetParticipantByID(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return ref, nil
}

func (s *ReferralService) pickCode(ctx context.Context, actor domain.Identity, in RegisterInput) (string, error) {
	if c := NormalizeCode(in.ReferralCode); c != "" {
		return c, nil
	}
	if c := NormalizeCode(in.LinkCode); c != "" {
		return c, nil
	}
	if s.Pending == nil {
		return "", nil
	}
	for _, k := range []string{in.VisitorKey, actor.UserID} {
		c, err := s.Pending.Get(ctx, k)
		if err != nil {
			return "", err
		}
		if c = NormalizeCode(c); c != "" {
			return c, nil
		}
	}
	return "", nil
}

func (s *ReferralService) findByUser(ctx context.Context, userID string) (*domain.Participant, error) {
	p, err := repo.GetParticipantByUserID(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (s *ReferralService) resolveCode(ctx context.Context, code string) (*domain.Participant, error) {
	p, err := repo.GetParticipantByCode(ctx, s.DB, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// attachReferrer sets referred_by on an existing row and bumps the
// referrer's counter in one transaction.
func (s *ReferralService) attachReferrer(ctx context.Context, id, referrerID uint) (*domain.Participant, error) {
	var out *domain.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.SetReferredByIfUnset(ctx, tx, id, referrerID)
		if err != nil {
			return storeErr(err)
		}
		if !ok {
			return ErrAlreadyLocked
		}
		if err := repo.IncrementTotalReferrals(ctx, tx, referrerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrInvalidCode
			}
			return storeErr(err)
		}
		p, err := repo.GetParticipantByID(ctx, tx, id)
		if err != nil {
			return storeErr(err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// insertReferred registers actor already attributed to referrer. If a
// concurrent request created the row first, it falls back to the
// conditional update.
func (s *ReferralService) insertReferred(ctx context.Context, actor domain.Identity, referrer *domain.Participant) (*domain.Participant, error) {
	p, err := s.insertParticipant(ctx, actor, actor.Name, actor.Email, referrer)
	if !errors.Is(err, repo.ErrDuplicate) {
		return p, err
	}
	existing, ferr := s.findByUser(ctx, actor.UserID)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, ErrCollision
	}
	if existing.Locked() {
		return nil, ErrAlreadyLocked
	}
	return s.attachReferrer(ctx, existing.ID, referrer.ID)
}

// insertParticipant mints a code and inserts the row, plus the referrer's
// counter increment when referrer is set. repo.ErrDuplicate is returned
// unwrapped.
func (s *ReferralService) insertParticipant(ctx context.Context, actor domain.Identity, name, email string, referrer *domain.Participant) (*domain.Participant, error) {
	var out *domain.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.Codes.generate(ctx, tx)
		if err != nil {
			return err
		}
		now := s.clock()
		p := &domain.Participant{
			UserID:       actor.UserID,
			FullName:     strings.TrimSpace(name),
			Email:        strings.TrimSpace(email),
			ReferralCode: code,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if referrer != nil {
			ref := domain.FormatParticipantID(referrer.ID)
			p.ReferredBy = &ref
		}
		if err := repo.CreateParticipant(ctx, tx, p); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return err
			}
			return storeErr(err)
		}
		if referrer != nil {
			if err := repo.IncrementTotalReferrals(ctx, tx, referrer.ID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrInvalidCode
				}
				return storeErr(err)
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// clearPending drops consumed slots. A failure only delays removal until the
// purge job runs.
func (s *ReferralService) clearPending(ctx context.Context, keys ...string) {
	if s.Pending == nil {
		return
	}
	if err := s.Pending.Clear(ctx, keys...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("pending referral not cleared")
	}
}

func (s *ReferralService) publish(kind string, participantID, referrerID uint) {
	if s.Changes == nil {
		return
	}
	s.Changes.Publish(domain.ChangeEvent{
		Kind:          kind,
		ParticipantID: participantID,
		ReferrerID:    referrerID,
		At:            s.clock(),
	})
}
