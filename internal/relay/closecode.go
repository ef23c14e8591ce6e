package relay

import "github.com/gorilla/websocket"

// SanitizeCloseCode normalizes a close code so it can legally be sent
// in a close frame. Reserved codes (1004, 1005, 1006, 1015) and codes
// outside [1000,1003] ∪ [1007,1011] ∪ [3000,4999] collapse to 1000.
// Zero or negative input, meaning no code was supplied, also yields
// 1000. The function is pure and total.
func SanitizeCloseCode(code int) int {
	switch code {
	case websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
		websocket.CloseTLSHandshake,
		1004: // reserved, no exported constant
		return websocket.CloseNormalClosure
	}

	switch {
	case code >= 1000 && code <= 1003:
		return code
	case code >= 1007 && code <= 1011:
		return code
	case code >= 3000 && code <= 4999:
		return code
	}

	return websocket.CloseNormalClosure
}
