package httpapi

import "net/http"

// WebSocketUpdates implements WS /ws/updates. Unlike the REST endpoints,
// the handshake resolves the session cookie itself so a missing or
// expired session can be reported with close code 4001 over the
// WebSocket rather than a plain HTTP 401.
func (s *Server) WebSocketUpdates(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		s.Hub.CloseUnauthenticated(w, r)
		return
	}
	sess, ok := s.Sessions.Validate(token)
	if !ok {
		s.Hub.CloseUnauthenticated(w, r)
		return
	}
	s.Hub.Upgrade(w, r, sess.AllowedChatIDs)
}
