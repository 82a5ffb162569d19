package apiclient

import (
	"fmt"
	"net/http"
)

// Error codes the dispatcher recognizes in response bodies. The backend puts
// them in either the code or the error field depending on the endpoint, so
// both are inspected.
const (
	CodeAccessTokenExpired       = "ACCESS_TOKEN_EXPIRED"
	CodeTotpVerificationRequired = "TOTP_VERIFICATION_REQUIRED"
	CodeTotpVerificationExpired  = "TOTP_VERIFICATION_EXPIRED"
	CodeTotpRequired             = "TOTP_REQUIRED"
)

// Kind is the dispatcher's classification of one physical attempt.
type Kind int

const (
	// KindSuccess is any 2xx response.
	KindSuccess Kind = iota

	// KindClientError is a 4xx other than the specially handled 401/403
	// auth cases. Definitive; never retried.
	KindClientError

	// KindServerError is a 5xx. Transient; retried with backoff.
	KindServerError

	// KindNetworkError is a failed send (connectivity). Transient; retried
	// with backoff.
	KindNetworkError

	// KindAuthExpired is a 401 whose body names an expired access token.
	// Recoverable via refresh.
	KindAuthExpired

	// KindSessionSuspect is any other 401: possibly a dead session,
	// possibly a racy cookie. Resolved by a verification probe.
	KindSessionSuspect

	// KindStepUpRequired is a 403 demanding TOTP verification for a
	// sensitive operation.
	KindStepUpRequired

	// KindStepUpExpired is a 403 after a previously granted TOTP
	// verification lapsed.
	KindStepUpExpired

	// KindStepUpNotEnrolled is a 403 because the account has no TOTP
	// enrolled at all; the user must set it up, not re-verify.
	KindStepUpNotEnrolled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	case KindAuthExpired:
		return "auth_expired"
	case KindSessionSuspect:
		return "session_suspect"
	case KindStepUpRequired:
		return "step_up_required"
	case KindStepUpExpired:
		return "step_up_expired"
	case KindStepUpNotEnrolled:
		return "step_up_not_enrolled"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// classification is computed once per physical attempt from the status code
// and the parsed error body.
type classification struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
}

// classify maps a response or transport error to the dispatch decision.
func classify(resp *Response, err error) classification {
	if err != nil {
		return classification{Kind: KindNetworkError, Err: err}
	}

	env := resp.envelope()
	code := env.Code
	if code == "" {
		code = env.Error
	}

	switch {
	case resp.OK():
		return classification{Kind: KindSuccess, Status: resp.Status}

	case resp.Status == http.StatusForbidden:
		switch code {
		case CodeTotpVerificationRequired:
			return classification{Kind: KindStepUpRequired, Status: resp.Status, Code: code}
		case CodeTotpVerificationExpired:
			return classification{Kind: KindStepUpExpired, Status: resp.Status, Code: code}
		case CodeTotpRequired:
			return classification{Kind: KindStepUpNotEnrolled, Status: resp.Status, Code: code}
		}
		return classification{Kind: KindClientError, Status: resp.Status, Code: code}

	case resp.Status == http.StatusUnauthorized:
		if code == CodeAccessTokenExpired {
			return classification{Kind: KindAuthExpired, Status: resp.Status, Code: code}
		}
		return classification{Kind: KindSessionSuspect, Status: resp.Status, Code: code}

	case resp.Status >= 500:
		return classification{Kind: KindServerError, Status: resp.Status, Code: code}

	default:
		return classification{Kind: KindClientError, Status: resp.Status, Code: code}
	}
}
