package mtproto

import (
	"fmt"
	"sync"
)

// Driver is implemented by a concrete MTProto library binding. Drivers
// register themselves from an init function, the way database/sql drivers
// do; the rest of the program never imports them directly.
type Driver interface {
	// Open creates a fresh unauthenticated client for the given credentials.
	Open(apiID int, apiHash string, opts Options) (Client, error)

	// OpenSession restores a client from a serialized session string.
	OpenSession(apiID int, apiHash string, session string) (Client, error)
}

var (
	driverMu   sync.Mutex
	driver     Driver
	driverName string
)

// RegisterDriver makes a driver available to NewDialer. Registering twice is
// a programmer error.
func RegisterDriver(name string, d Driver) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if d == nil {
		panic("mtproto: RegisterDriver with nil driver")
	}
	if driver != nil {
		panic("mtproto: driver already registered: " + driverName)
	}
	driver = d
	driverName = name
}

// NewDialer returns a Dialer backed by the registered driver. apiID/apiHash
// are the bot's own credentials, used when restoring revocation sessions;
// login flows dial with the credentials each user supplies.
func NewDialer(apiID int, apiHash string) (Dialer, error) {
	driverMu.Lock()
	d, name := driver, driverName
	driverMu.Unlock()
	if d == nil {
		return nil, fmt.Errorf("no MTProto driver registered")
	}
	return &driverDialer{driver: d, name: name, apiID: apiID, apiHash: apiHash}, nil
}

type driverDialer struct {
	driver  Driver
	name    string
	apiID   int
	apiHash string
}

func (dd *driverDialer) Dial(apiID int, apiHash string, opts Options) (Client, error) {
	c, err := dd.driver.Open(apiID, apiHash, opts)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", dd.name, err)
	}
	return c, nil
}

func (dd *driverDialer) DialSession(session string) (Client, error) {
	c, err := dd.driver.OpenSession(dd.apiID, dd.apiHash, session)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", dd.name, err)
	}
	return c, nil
}
