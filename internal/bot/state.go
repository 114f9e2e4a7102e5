package bot

// FlowState represents the state machine for one user's conversation.
type FlowState int

const (
	StateAwaitAPIID    FlowState = iota // /genstring issued, waiting for numeric API id
	StateAwaitAPIHash                   // API id stored, waiting for API hash
	StateAwaitPhone                     // credentials stored, waiting for phone number
	StateAwaitCode                      // code requested, waiting for the OTP
	StateAwaitPassword                  // sign-in wants the two-step password
	StateAwaitSession                   // /revoke issued, waiting for a session string
	StateDormant                        // flow ended, handle kept alive for /resend
)

func (s FlowState) String() string {
	switch s {
	case StateAwaitAPIID:
		return "AWAIT_API_ID"
	case StateAwaitAPIHash:
		return "AWAIT_API_HASH"
	case StateAwaitPhone:
		return "AWAIT_PHONE"
	case StateAwaitCode:
		return "AWAIT_CODE"
	case StateAwaitPassword:
		return "AWAIT_PASSWORD"
	case StateAwaitSession:
		return "AWAIT_SESSION"
	case StateDormant:
		return "DORMANT"
	default:
		return "UNKNOWN"
	}
}
