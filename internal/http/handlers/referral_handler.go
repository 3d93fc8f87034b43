package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/http/middleware"
	"github.com/tbourn/fallfest-referrals/internal/services"
)

// GenerateCode godoc
// @ID          generateReferralCode
// @Summary     Generate a referral code
// @Description Returns an 8-character code that no participant holds yet. Nothing is persisted.
// @Tags        Referrals
// @Produce     json
// @Success     201  {object}  handlers.CodeResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Code space exhausted"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /referral-codes [post]
func (h *Handlers) GenerateCode(c *gin.Context) {
	code, err := h.codes.Generate(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusCreated, CodeResponse{Code: code})
}

// Register godoc
// @ID          register
// @Summary     Register the caller
// @Description Creates the caller's participant record with a fresh referral code. The referral code
// @Description is taken from the body, else from `ref` on this request, else from the visitor's
// @Description captured link. A rejected code does not block registration; it is reported in referral_error.
// @Tags        Participants
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       X-Visitor-ID  header  string                    false  "Anonymous visitor key"
// @Param       ref           query   string                    false  "Referral code from a shared link"
// @Param       body          body    handlers.RegisterRequest  true   "Registration form"
// @Success     201  {object}  handlers.RegisterResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     409  {object}  handlers.ErrorResponse  "Already registered"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /registrations [post]
func (h *Handlers) Register(c *gin.Context) {
	actor, authed := currentUser(c)
	if !authed {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid registration form")
		return
	}
	link, _ := middleware.RefFrom(c)

	res, err := h.referrals.Register(c.Request.Context(), actor, services.RegisterInput{
		FullName:     req.FullName,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
		LinkCode:     link,
		VisitorKey:   middleware.VisitorKey(c),
	})
	if err != nil {
		failWith(c, err)
		return
	}
	if res.ReferralError != nil {
		middleware.LoggerFrom(c).Info().Err(res.ReferralError).Msg("registered without referrer")
	}
	ok(c, http.StatusCreated, RegisterResponse{
		Participant:   participantView(res.Participant, res.Referrer),
		ReferralError: referralErrorBody(res.ReferralError),
	})
}

// Me godoc
// @ID          getMe
// @Summary     Caller state
// @Description Returns the caller's participant record, or the pending code captured for an unregistered caller.
// @Tags        Participants
// @Produce     json
// @Security    BearerAuth
// @Param       X-Visitor-ID  header  string  false  "Anonymous visitor key"
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	actor, authed := currentUser(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()
	st, err := h.referrals.State(ctx, actor.UserID, middleware.VisitorKey(c))
	if err != nil {
		failWith(c, err)
		return
	}

	switch s := st.(type) {
	case domain.Registered:
		referrer, err := h.referrals.ReferrerOf(ctx, &s.Participant)
		if err != nil {
			failWith(c, err)
			return
		}
		v := participantView(&s.Participant, referrer)
		ok(c, http.StatusOK, MeResponse{Registered: true, Participant: &v})
	case domain.Unregistered:
		pending := s.PendingCode
		if ref, found := middleware.RefFrom(c); found {
			pending = ref
		}
		ok(c, http.StatusOK, MeResponse{PendingCode: pending})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// ApplyReferral godoc
// @ID          applyReferral
// @Summary     Apply a friend's referral code
// @Description Attributes the caller to the owner of the code. The referrer can be set only once.
// @Tags        Referrals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       X-Visitor-ID  header  string                         false  "Anonymous visitor key"
// @Param       body          body    handlers.ApplyReferralRequest  true   "Referral code"
// @Success     200  {object}  handlers.ParticipantView
// @Failure     400  {object}  handlers.ErrorResponse  "Empty code"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     409  {object}  handlers.ErrorResponse  "Referrer already set"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid code or own code"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me/referral [post]
func (h *Handlers) ApplyReferral(c *gin.Context) {
	actor, authed := currentUser(c)
	if !authed {
		return
	}
	var req ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	p, err := h.referrals.ApplyReferral(ctx, actor, req.Code, middleware.VisitorKey(c))
	if err != nil {
		failWith(c, err)
		return
	}
	referrer, err := h.referrals.ReferrerOf(ctx, p)
	if err != nil {
		// the write already happened; report it without the code
		middleware.LoggerFrom(c).Warn().Err(err).Msg("referrer lookup after apply")
	}
	ok(c, http.StatusOK, participantView(p, referrer))
}

// MyReferrals godoc
// @ID          listMyReferrals
// @Summary     People the caller referred
// @Tags        Referrals
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MyReferralsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me/referrals [get]
func (h *Handlers) MyReferrals(c *gin.Context) {
	actor, authed := currentUser(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()
	p, err := h.referrals.Participant(ctx, actor.UserID)
	if err != nil {
		failWith(c, err)
		return
	}
	users, err := h.board.ReferredUsers(ctx, p.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, MyReferralsResponse{Count: int64(len(users)), Referred: users})
}

// PendingReferral godoc
// @ID          getPendingReferral
// @Summary     Captured referral code
// @Description Returns the code captured from a shared link for this visitor, or an empty code.
// @Tags        Referrals
// @Produce     json
// @Param       X-Visitor-ID  header  string  false  "Anonymous visitor key"
// @Success     200  {object}  handlers.PendingResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /referrals/pending [get]
func (h *Handlers) PendingReferral(c *gin.Context) {
	if ref, found := middleware.RefFrom(c); found {
		ok(c, http.StatusOK, PendingResponse{Code: ref})
		return
	}
	key := middleware.VisitorKey(c)
	if key == "" || h.pending == nil {
		ok(c, http.StatusOK, PendingResponse{})
		return
	}
	code, err := h.pending.Get(c.Request.Context(), key)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, PendingResponse{Code: code})
}
