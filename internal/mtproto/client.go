// Package mtproto defines the boundary to the MTProto client library that
// performs the actual network handshake and RPC. The bot core only ever talks
// to these interfaces; the concrete driver is injected at startup.
package mtproto

import (
	"context"
	"time"
)

// DataCenter identifies one remote endpoint the client may be bound to.
type DataCenter struct {
	ID      int
	Address string
	Port    int
}

// SentCode is the server's answer to a verification-code request.
// Hash correlates the code the user will type with this request.
type SentCode struct {
	Hash    string
	Timeout time.Duration
}

// User is the authenticated account identity.
type User struct {
	ID        int64
	Phone     string
	FirstName string
	Username  string
}

// Authorization is the result of a sign-in attempt. Some drivers report a
// pending second factor as a result variant instead of raising
// ErrPasswordNeeded; both shapes are valid.
type Authorization struct {
	User                 *User
	SecondFactorRequired bool
}

// AuthorizationRecord is one authenticated device/session bound to the
// account. Current marks the record backing this very connection.
type AuthorizationRecord struct {
	Hash       int64
	Current    bool
	DeviceName string
	CreatedAt  time.Time
}

// Options configures a fresh client before the first connect.
type Options struct {
	DeviceModel         string
	SystemVersion       string
	AppVersion          string
	ConnectionRetries   int
	RetryDelay          time.Duration
	FloodSleepThreshold time.Duration
}

// DefaultOptions returns the options every generated session uses.
func DefaultOptions() Options {
	return Options{
		DeviceModel:         "SessionBot",
		SystemVersion:       "1.0",
		AppVersion:          "SessionGen 1.0",
		ConnectionRetries:   3,
		RetryDelay:          5 * time.Second,
		FloodSleepThreshold: 60 * time.Second,
	}
}

// Client is one live connection to the remote protocol service. A Client is
// owned by exactly one flow at a time and must be disconnected on every
// terminal path of that flow.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// SendCode requests a verification code for phone.
	SendCode(ctx context.Context, phone string) (*SentCode, error)

	// ResendCode requests a fresh code reusing the previous code hash as
	// correlation input.
	ResendCode(ctx context.Context, phone, codeHash string) (*SentCode, error)

	// SignIn submits the verification code. It may report a pending second
	// factor either via the returned Authorization or via ErrPasswordNeeded.
	SignIn(ctx context.Context, phone, code, codeHash string) (*Authorization, error)

	// SignInPassword submits the second-factor password.
	SignInPassword(ctx context.Context, password string) (*Authorization, error)

	// ExportSession serializes the authorized session into a reusable string.
	ExportSession() (string, error)

	// DataCenter returns the client's current data-center binding.
	DataCenter() DataCenter

	// SetDataCenter rebinds the target data center. Only valid while
	// disconnected.
	SetDataCenter(dc DataCenter)

	IsAuthorized(ctx context.Context) (bool, error)
	Self(ctx context.Context) (*User, error)
	Authorizations(ctx context.Context) ([]AuthorizationRecord, error)
	ResetAuthorization(ctx context.Context, hash int64) error
	LogOut(ctx context.Context) error
}

// Dialer creates clients. Dial builds a fresh unauthenticated client from the
// user-supplied API credentials; DialSession restores a client from a
// serialized session string.
type Dialer interface {
	Dial(apiID int, apiHash string, opts Options) (Client, error)
	DialSession(session string) (Client, error)
}
