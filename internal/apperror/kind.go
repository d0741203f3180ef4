package apperror

import "errors"

// Kind groups codes by how the caller must react.
type Kind int

const (
	KindInternal Kind = iota
	// KindCanceled is a superseded request; never shown to the user.
	KindCanceled
	// KindValidation is malformed user input caught at the input layer.
	KindValidation
	// KindTransport is a failed remote call, shown as an error state.
	KindTransport
	// KindInsufficientLiquidity disables submission.
	KindInsufficientLiquidity
	// KindGate is any other refused submission (balance, permission).
	KindGate
)

func (k Kind) String() string {
	switch k {
	case KindCanceled:
		return "canceled"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindInsufficientLiquidity:
		return "insufficient_liquidity"
	case KindGate:
		return "gate"
	default:
		return "internal"
	}
}

// KindOf classifies err. context.Canceled is not treated as a superseded
// task: only errors registered through MarkCanceled are.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, sentinel := range canceledSentinels {
		if errors.Is(err, sentinel) {
			return KindCanceled
		}
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindInternal
}

var canceledSentinels []error

// MarkCanceled registers a sentinel that KindOf reports as KindCanceled.
// It is meant to be called from package init.
func MarkCanceled(sentinel error) {
	canceledSentinels = append(canceledSentinels, sentinel)
}

func kindOf(code Code) Kind {
	switch code {
	case CodeInvalidInput, CodeInvalidAmount, CodeInvalidSlippage, CodeInvalidDeadline,
		CodeInvalidToken, CodeSameToken:
		return KindValidation
	case CodeQuoteTransport, CodeWalletTransport, CodeWalletRejected, CodeWalletDisconnected,
		CodeContractCallFailed, CodeTransactionReverted, CodeTokenListFetch,
		CodeWebSocketConnection, CodeWebSocketClosed, CodeWebSocketSend, CodeCircuitOpen,
		CodeRateLimitExceeded:
		return KindTransport
	case CodeInsufficientLiquidity:
		return KindInsufficientLiquidity
	case CodeInsufficientBalance, CodePermissionRequired, CodeEstimateMissing, CodePoolNotFound,
		CodeUnsupportedOperation:
		return KindGate
	default:
		return KindInternal
	}
}
