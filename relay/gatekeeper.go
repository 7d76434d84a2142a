package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/auth"
	"github.com/kkapil94/whiteBoard/config"
)

// roomPathPrefix is the required shape of the room segment: board:<boardId>.
const roomPathPrefix = "board:"

// AdmissionError carries the websocket close code and reason sent to a
// rejected connection. Label feeds the auth failure metric.
type AdmissionError struct {
	Code   int
	Reason string
	Label  string
	Err    error
}

func (e *AdmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func policyViolation(label, reason string, err error) *AdmissionError {
	return &AdmissionError{Code: websocket.ClosePolicyViolation, Reason: reason, Label: label, Err: err}
}

func internalError(label string, err error) *AdmissionError {
	return &AdmissionError{Code: websocket.CloseInternalServerErr, Reason: "internal error", Label: label, Err: err}
}

// Gatekeeper admits or rejects connection attempts before any room state
// is touched.
type Gatekeeper struct {
	cfg        *config.AuthConfig
	verifier   *auth.Verifier
	membership auth.Membership
	log        *slog.Logger
}

func NewGatekeeper(cfg *config.AuthConfig, verifier *auth.Verifier, membership auth.Membership, log *slog.Logger) *Gatekeeper {
	if membership == nil {
		membership = auth.AllowAll{}
	}
	return &Gatekeeper{
		cfg:        cfg,
		verifier:   verifier,
		membership: membership,
		log:        log.With("component", "gatekeeper"),
	}
}

// Admit validates the room path, the bearer token and board membership,
// and returns the target board and verified identity. The context covers
// the membership round trip; a client that disconnects mid-check cancels
// it through the request context.
func (g *Gatekeeper) Admit(ctx context.Context, roomPath string, query url.Values) (string, auth.Identity, *AdmissionError) {
	boardID, ok := strings.CutPrefix(roomPath, roomPathPrefix)
	if !ok || boardID == "" {
		return "", auth.Identity{}, policyViolation("malformed_path", "malformed room path", nil)
	}

	if !g.cfg.Enabled {
		// Development mode: every connection gets a throwaway guest
		// identity so presence still works.
		guest := "guest-" + uuid.NewString()[:8]
		return boardID, auth.Identity{UserID: guest, DisplayName: guest}, nil
	}

	tokenString := query.Get(g.cfg.TokenQueryParam)
	if tokenString == "" {
		return "", auth.Identity{}, policyViolation("missing_token", "missing authentication token", nil)
	}

	identity, err := g.verifier.Verify(ctx, tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			return "", auth.Identity{}, policyViolation("invalid_token", "invalid authentication token", err)
		}
		return "", auth.Identity{}, internalError("token_verification", err)
	}

	member, err := g.membership.IsMember(ctx, boardID, identity.UserID)
	if err != nil {
		return "", auth.Identity{}, internalError("membership_lookup", err)
	}
	if !member {
		return "", auth.Identity{}, policyViolation("not_member", "not a member of this board", nil)
	}

	return boardID, identity, nil
}
