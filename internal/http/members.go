package http

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// MembersController handles registration, login and session endpoints.
type MembersController struct {
	accounts Accounts
	sessions SessionStore
	limiter  LoginLimiter
	auditor  Auditor
}

func NewMembersController(accounts Accounts, sessions SessionStore, limiter LoginLimiter, auditor Auditor) *MembersController {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &MembersController{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		auditor:  auditor,
	}
}

type registerRequest struct {
	Name    string          `json:"name" binding:"required,notblank,max=128"`
	Surname string          `json:"surname" binding:"required,notblank,max=128"`
	Email   string          `json:"email" binding:"required,email,max=254"`
	Secret  string          `json:"secret" binding:"required,min=1,max=72"`
	RoleID  entities.RoleID `json:"roleId"`
}

type loginRequest struct {
	Email  string `json:"email" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// LoginResponse is returned by POST /login.
type LoginResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	RoleID    entities.RoleID `json:"roleId"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Register handles POST /members.
func (mc *MembersController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	caller := auth.PrincipalFrom(c)
	member, err := mc.accounts.Register(c.Request.Context(), auth.Registration{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
		Secret:  req.Secret,
		RoleID:  req.RoleID,
	}, caller)
	if err != nil {
		respondAppError(c, err)
		return
	}

	var actorID uint
	if caller != nil {
		actorID = caller.MemberID
	}
	mc.auditor.LogMember(c.Request.Context(), actorID, "member_register", member.ID,
		"registered "+member.Email+" as "+member.RoleID.String())

	respondOK(c, "member registered", member)
}

// Login handles POST /login. Failures are throttled per client IP and email.
func (mc *MembersController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	if mc.limiter != nil {
		if allowed, wait := mc.limiter.Allow(ip, req.Email); !allowed {
			logging.FromContext(ctx).Warn().Str("client_ip", ip).Msg("login rate limited")
			respondRateLimited(c, retryAfterSeconds(wait))
			return
		}
	}

	result, err := mc.accounts.Login(ctx, req.Email, req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			mc.auditor.LogAuth(ctx, 0, "login", ip, false)
			if mc.limiter != nil {
				if locked, wait := mc.limiter.RecordFailure(ip, req.Email); locked {
					respondRateLimited(c, retryAfterSeconds(wait))
					return
				}
			}
		}
		respondAppError(c, err)
		return
	}

	if mc.limiter != nil {
		mc.limiter.RecordSuccess(ip, req.Email)
	}
	if mc.sessions != nil {
		if err := mc.sessions.CreateSession(c.Request, result.Member); err != nil {
			respondAppError(c, err)
			return
		}
	}
	mc.auditor.LogAuth(ctx, result.Member.ID, "login", ip, true)

	respondOK(c, "login successful", LoginResponse{
		ID:        result.Member.ID,
		Name:      result.Member.FullName,
		RoleID:    result.Member.RoleID,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Logout handles POST /logout. It succeeds whether or not a session exists.
func (mc *MembersController) Logout(c *gin.Context) {
	if mc.sessions != nil {
		if err := mc.sessions.DestroySession(c.Request); err != nil {
			respondAppError(c, err)
			return
		}
	}
	if principal := auth.PrincipalFrom(c); principal != nil {
		mc.auditor.LogAuth(c.Request.Context(), principal.MemberID, "logout", c.ClientIP(), true)
	}
	respondOK(c, "logged out", nil)
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	*entities.Member
	Method auth.AuthType `json:"method"`
}

// Me handles GET /me.
func (mc *MembersController) Me(c *gin.Context) {
	principal := auth.PrincipalFrom(c)
	member, err := mc.accounts.Member(c.Request.Context(), principal.MemberID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondOK(c, "", MeResponse{Member: member, Method: principal.Method})
}

// CSRFToken handles GET /csrf-token.
func (mc *MembersController) CSRFToken(c *gin.Context) {
	respondOK(c, "", gin.H{"token": auth.CSRFToken(c)})
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}
