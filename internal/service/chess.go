package service

import (
	"context"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// serveChess implements spec.md §4.7 for the chess verb. A requester_id
// seen for the first time must parse successfully before its session is
// even created (spec.md §7: a malformed request never creates a session);
// an already-tracked session (including one that has cycled back to idle)
// goes through the normal per-state dispatch in pollReply.
func (s *Service) serveChess(ctx context.Context, name, requesterID string) (string, error) {
	if sess, existed := s.Sessions.Get(requesterID); existed {
		return pollReply(ctx, sess, ndn.VerbChess, s.Metrics, func() (string, error) {
			req, err := ndn.ParseChessRequest(name)
			if err != nil {
				return "", ndn.ErrMalformedName
			}
			return s.Dispatcher.StartChessSession(ctx, sess, req), nil
		})
	}

	req, err := ndn.ParseChessRequest(name)
	if err != nil {
		return "", ndn.ErrMalformedName
	}
	sess, _ := s.Sessions.GetOrCreate(requesterID)
	reply := s.Dispatcher.StartChessSession(ctx, sess, req)
	s.Metrics.RecordPoll(ndn.VerbChess, 1)
	return reply, nil
}
