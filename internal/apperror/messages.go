package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	CodeInvalidAmount:   "Amount is not a valid number for this token",
	CodeInvalidSlippage: "Slippage tolerance must be greater than 0 and at most 50",
	CodeInvalidDeadline: "Deadline must be greater than 0 and at most 180 minutes",
	CodeInvalidToken:    "Unknown token",
	CodeSameToken:       "Both sides use the same token",

	CodeQuoteTransport:      "Failed to fetch a quote",
	CodeWalletTransport:     "Wallet request failed",
	CodeWalletRejected:      "Wallet rejected the request",
	CodeWalletDisconnected:  "Wallet is not connected",
	CodeContractCallFailed:  "Smart contract call failed",
	CodeTransactionReverted: "Transaction reverted",
	CodeTokenListFetch:      "Failed to load the token list",
	CodeWebSocketConnection: "WebSocket connection error",
	CodeWebSocketClosed:     "WebSocket connection closed",
	CodeWebSocketSend:       "Failed to send WebSocket message",
	CodeCircuitOpen:         "Circuit breaker is open",

	CodeInsufficientLiquidity: "Insufficient liquidity for this trade",
	CodeInsufficientBalance:   "Insufficient balance",
	CodePermissionRequired:    "Token use permission required",
	CodeEstimateMissing:       "No estimate for the current input",
	CodePoolNotFound:          "Pool not found",
	CodeUnsupportedOperation:  "Operation not supported by this wallet",
}
