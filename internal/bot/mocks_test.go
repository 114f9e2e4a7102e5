package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/udisondev/sessionbot/internal/config"
	"github.com/udisondev/sessionbot/internal/mtproto"
	"github.com/udisondev/sessionbot/internal/notify"
	"github.com/udisondev/sessionbot/internal/state"
)

const (
	testOwnerID int64 = 999
	testUserID  int64 = 1001
	testChatID  int64 = 1001
)

type sentMsg struct {
	chatID int64
	text   string
}

// recordingTransport мок транспорта: запоминает все отправленные сообщения.
type recordingTransport struct {
	mu    sync.Mutex
	sent  []sentMsg
	edits []sentMsg

	SendFunc     func(chatID int64, text string) (int, error)
	ChatInfoFunc func(userID int64) (*ChatInfo, error)
}

func (m *recordingTransport) Send(chatID int64, text string) (int, error) {
	m.mu.Lock()
	m.sent = append(m.sent, sentMsg{chatID, text})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(chatID, text)
	}
	return len(m.sent), nil
}

func (m *recordingTransport) Edit(chatID int64, msgID int, text string) error {
	m.mu.Lock()
	m.edits = append(m.edits, sentMsg{chatID, text})
	m.mu.Unlock()
	return nil
}

func (m *recordingTransport) ChatInfo(userID int64) (*ChatInfo, error) {
	if m.ChatInfoFunc != nil {
		return m.ChatInfoFunc(userID)
	}
	return &ChatInfo{ID: userID, Name: "Test User", Username: "testuser"}, nil
}

// messagesTo returns all texts delivered to one chat.
func (m *recordingTransport) messagesTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

func (m *recordingTransport) lastTo(chatID int64) string {
	msgs := m.messagesTo(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (m *recordingTransport) countContaining(chatID int64, substr string) int {
	n := 0
	for _, s := range m.messagesTo(chatID) {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// mockClient мок протокольного клиента. Поведение настраивается через
// *Func поля; по умолчанию все операции успешны.
type mockClient struct {
	mu          sync.Mutex
	connected   bool
	dc          mtproto.DataCenter
	connects    int
	disconnects int

	ConnectFunc        func(call int) error
	SendCodeFunc       func(call int, phone string) (*mtproto.SentCode, error)
	ResendCodeFunc     func(phone, codeHash string) (*mtproto.SentCode, error)
	SignInFunc         func(call int, phone, code, codeHash string) (*mtproto.Authorization, error)
	SignInPasswordFunc func(password string) (*mtproto.Authorization, error)
	ExportSessionFunc  func() (string, error)
	IsAuthorizedFunc   func() (bool, error)
	SelfFunc           func() (*mtproto.User, error)
	AuthorizationsFunc func() ([]mtproto.AuthorizationRecord, error)
	ResetFunc          func(hash int64) error
	LogOutFunc         func() error

	sendCodeCalls int
	signInCalls   int
	resetCalls    []int64
	loggedOut     bool
}

func newMockClient(dcID int) *mockClient {
	dc, _ := mtproto.ResolveDataCenter(dcID)
	return &mockClient{dc: dc}
}

func (m *mockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connects++
	call := m.connects
	m.mu.Unlock()
	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(call); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *mockClient) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.connected = false
	return nil
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) SendCode(ctx context.Context, phone string) (*mtproto.SentCode, error) {
	m.mu.Lock()
	m.sendCodeCalls++
	call := m.sendCodeCalls
	m.mu.Unlock()
	if m.SendCodeFunc != nil {
		return m.SendCodeFunc(call, phone)
	}
	return &mtproto.SentCode{Hash: "hash-1"}, nil
}

func (m *mockClient) ResendCode(ctx context.Context, phone, codeHash string) (*mtproto.SentCode, error) {
	if m.ResendCodeFunc != nil {
		return m.ResendCodeFunc(phone, codeHash)
	}
	return &mtproto.SentCode{Hash: "hash-resent"}, nil
}

func (m *mockClient) SignIn(ctx context.Context, phone, code, codeHash string) (*mtproto.Authorization, error) {
	m.mu.Lock()
	m.signInCalls++
	call := m.signInCalls
	m.mu.Unlock()
	if m.SignInFunc != nil {
		return m.SignInFunc(call, phone, code, codeHash)
	}
	return &mtproto.Authorization{User: &mtproto.User{ID: testUserID, Phone: phone}}, nil
}

func (m *mockClient) SignInPassword(ctx context.Context, password string) (*mtproto.Authorization, error) {
	if m.SignInPasswordFunc != nil {
		return m.SignInPasswordFunc(password)
	}
	return &mtproto.Authorization{User: &mtproto.User{ID: testUserID}}, nil
}

func (m *mockClient) ExportSession() (string, error) {
	if m.ExportSessionFunc != nil {
		return m.ExportSessionFunc()
	}
	return "STRING-SESSION", nil
}

func (m *mockClient) DataCenter() mtproto.DataCenter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dc
}

func (m *mockClient) SetDataCenter(dc mtproto.DataCenter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dc = dc
}

func (m *mockClient) IsAuthorized(ctx context.Context) (bool, error) {
	if m.IsAuthorizedFunc != nil {
		return m.IsAuthorizedFunc()
	}
	return true, nil
}

func (m *mockClient) Self(ctx context.Context) (*mtproto.User, error) {
	if m.SelfFunc != nil {
		return m.SelfFunc()
	}
	return &mtproto.User{ID: testUserID, Phone: "+10000000000"}, nil
}

func (m *mockClient) Authorizations(ctx context.Context) ([]mtproto.AuthorizationRecord, error) {
	if m.AuthorizationsFunc != nil {
		return m.AuthorizationsFunc()
	}
	return []mtproto.AuthorizationRecord{{Hash: 777, Current: true}}, nil
}

func (m *mockClient) ResetAuthorization(ctx context.Context, hash int64) error {
	m.mu.Lock()
	m.resetCalls = append(m.resetCalls, hash)
	m.mu.Unlock()
	if m.ResetFunc != nil {
		return m.ResetFunc(hash)
	}
	return nil
}

func (m *mockClient) LogOut(ctx context.Context) error {
	m.mu.Lock()
	m.loggedOut = true
	m.mu.Unlock()
	if m.LogOutFunc != nil {
		return m.LogOutFunc()
	}
	return nil
}

func (m *mockClient) disconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// mockDialer мок фабрики клиентов.
type mockDialer struct {
	DialFunc        func(apiID int, apiHash string, opts mtproto.Options) (mtproto.Client, error)
	DialSessionFunc func(session string) (mtproto.Client, error)
}

func (m *mockDialer) Dial(apiID int, apiHash string, opts mtproto.Options) (mtproto.Client, error) {
	if m.DialFunc != nil {
		return m.DialFunc(apiID, apiHash, opts)
	}
	return newMockClient(2), nil
}

func (m *mockDialer) DialSession(session string) (mtproto.Client, error) {
	if m.DialSessionFunc != nil {
		return m.DialSessionFunc(session)
	}
	return newMockClient(2), nil
}

// newTestBot wires a Bot over mocks with instant retry backoff.
func newTestBot(t *testing.T, dialer mtproto.Dialer) (*Bot, *recordingTransport, *state.Store) {
	t.Helper()

	transport := &recordingTransport{}
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	cfg := config.DefaultBot()
	cfg.OwnerID = testOwnerID
	cfg.SupportContact = "@operator"
	cfg.FallbackLog = filepath.Join(t.TempDir(), "fallback.txt")

	notifier := notify.New(transport, testOwnerID, cfg.FallbackLog, nil)

	b := New(cfg, transport, dialer, store, notifier, nil)
	b.sleep = func(context.Context, time.Duration) {}
	return b, transport, store
}

// runLogin drives the flow up to (and including) the phone step.
func runLogin(ctx context.Context, b *Bot, phone string) {
	b.HandleUpdate(ctx, Update{UserID: testUserID, ChatID: testChatID, Command: "genstring"})
	b.HandleUpdate(ctx, Update{UserID: testUserID, ChatID: testChatID, Text: "12345"})
	b.HandleUpdate(ctx, Update{UserID: testUserID, ChatID: testChatID, Text: "abcdef0123456789"})
	b.HandleUpdate(ctx, Update{UserID: testUserID, ChatID: testChatID, Text: phone})
}
