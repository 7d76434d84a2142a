package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkapil94/whiteBoard/auth"
	"github.com/kkapil94/whiteBoard/config"
)

const testSecret = "test-secret-with-enough-entropy"

type fakeMembership struct {
	members map[string]bool
	err     error
}

func (f fakeMembership) IsMember(_ context.Context, boardID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[boardID+"/"+userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthConfig(enabled bool) *config.AuthConfig {
	return &config.AuthConfig{
		Enabled:           enabled,
		JWTSecret:         testSecret,
		TokenQueryParam:   "token",
		RevocationListKey: "jwt:revoked",
	}
}

func mintToken(t *testing.T, userID, name string) string {
	t.Helper()
	claims := auth.Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestGatekeeper_Admit(t *testing.T) {
	cfg := testAuthConfig(true)
	verifier := auth.NewVerifier(cfg, nil, discardLogger())
	membership := fakeMembership{members: map[string]bool{"b1/alice": true}}
	gk := NewGatekeeper(cfg, verifier, membership, discardLogger())

	validToken := mintToken(t, "alice", "Alice")

	testCases := []struct {
		name        string
		roomPath    string
		query       url.Values
		wantBoard   string
		wantUser    string
		wantCode    int
		wantLabel   string
	}{
		{
			name:      "admitted member",
			roomPath:  "board:b1",
			query:     url.Values{"token": {validToken}},
			wantBoard: "b1",
			wantUser:  "alice",
		},
		{
			name:      "malformed room path",
			roomPath:  "b1",
			query:     url.Values{"token": {validToken}},
			wantCode:  websocket.ClosePolicyViolation,
			wantLabel: "malformed_path",
		},
		{
			name:      "empty board id",
			roomPath:  "board:",
			query:     url.Values{"token": {validToken}},
			wantCode:  websocket.ClosePolicyViolation,
			wantLabel: "malformed_path",
		},
		{
			name:      "missing token",
			roomPath:  "board:b1",
			query:     url.Values{},
			wantCode:  websocket.ClosePolicyViolation,
			wantLabel: "missing_token",
		},
		{
			name:      "invalid token",
			roomPath:  "board:b1",
			query:     url.Values{"token": {"garbage"}},
			wantCode:  websocket.ClosePolicyViolation,
			wantLabel: "invalid_token",
		},
		{
			name:      "not a member",
			roomPath:  "board:b2",
			query:     url.Values{"token": {validToken}},
			wantCode:  websocket.ClosePolicyViolation,
			wantLabel: "not_member",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			boardID, identity, aerr := gk.Admit(context.Background(), tc.roomPath, tc.query)
			if tc.wantCode != 0 {
				require.NotNil(t, aerr)
				assert.Equal(t, tc.wantCode, aerr.Code)
				assert.Equal(t, tc.wantLabel, aerr.Label)
				return
			}
			require.Nil(t, aerr)
			assert.Equal(t, tc.wantBoard, boardID)
			assert.Equal(t, tc.wantUser, identity.UserID)
			assert.Equal(t, "Alice", identity.DisplayName)
		})
	}
}

func TestGatekeeper_MembershipLookupFailureIsInternal(t *testing.T) {
	cfg := testAuthConfig(true)
	verifier := auth.NewVerifier(cfg, nil, discardLogger())
	gk := NewGatekeeper(cfg, verifier, fakeMembership{err: errors.New("redis down")}, discardLogger())

	_, _, aerr := gk.Admit(context.Background(), "board:b1", url.Values{"token": {mintToken(t, "alice", "")}})
	require.NotNil(t, aerr)
	// The client did nothing wrong; a backend failure is not a policy violation.
	assert.Equal(t, websocket.CloseInternalServerErr, aerr.Code)
	assert.Equal(t, "membership_lookup", aerr.Label)
}

func TestGatekeeper_AuthDisabledGrantsGuestIdentity(t *testing.T) {
	cfg := testAuthConfig(false)
	gk := NewGatekeeper(cfg, nil, nil, discardLogger())

	boardID, identity, aerr := gk.Admit(context.Background(), "board:b1", url.Values{})
	require.Nil(t, aerr)
	assert.Equal(t, "b1", boardID)
	assert.NotEmpty(t, identity.UserID)
	assert.Equal(t, identity.UserID, identity.DisplayName)

	// Path shape is still enforced with auth off.
	_, _, aerr = gk.Admit(context.Background(), "not-a-board", url.Values{})
	require.NotNil(t, aerr)
	assert.Equal(t, websocket.ClosePolicyViolation, aerr.Code)
}
