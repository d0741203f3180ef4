package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
)

// Input validation. These never reach the estimation pipeline.
const (
	CodeInvalidAmount   Code = "INVALID_AMOUNT"
	CodeInvalidSlippage Code = "INVALID_SLIPPAGE"
	CodeInvalidDeadline Code = "INVALID_DEADLINE"
	CodeInvalidToken    Code = "INVALID_TOKEN"
	CodeSameToken       Code = "SAME_TOKEN"
)

// Estimation and wallet transport failures.
const (
	CodeQuoteTransport      Code = "QUOTE_TRANSPORT_FAILED"
	CodeWalletTransport     Code = "WALLET_TRANSPORT_FAILED"
	CodeWalletRejected      Code = "WALLET_REJECTED"
	CodeWalletDisconnected  Code = "WALLET_DISCONNECTED"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"
	CodeTransactionReverted Code = "TRANSACTION_REVERTED"
	CodeTokenListFetch      Code = "TOKEN_LIST_FETCH_FAILED"
	CodeWebSocketConnection Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed     Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSend       Code = "WEBSOCKET_SEND_ERROR"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
)

// Submission gates. Estimation reports liquidity as a flag; these codes
// only appear when a submit is refused.
const (
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodePermissionRequired    Code = "PERMISSION_REQUIRED"
	CodeEstimateMissing       Code = "ESTIMATE_MISSING"
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeUnsupportedOperation  Code = "UNSUPPORTED_OPERATION"
)
