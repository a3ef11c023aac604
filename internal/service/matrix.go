package service

import (
	"context"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// serveMultiply implements spec.md §4.7 for the multiply verb; see
// serveChess's doc comment for why a first-sighting requester_id is
// parsed before its session is created.
func (s *Service) serveMultiply(ctx context.Context, name, requesterID string) (string, error) {
	if sess, existed := s.Sessions.Get(requesterID); existed {
		return pollReply(ctx, sess, ndn.VerbMultiply, s.Metrics, func() (string, error) {
			req, err := ndn.ParseMultiplyRequest(name)
			if err != nil {
				return "", ndn.ErrMalformedName
			}
			return s.Dispatcher.StartMatrixSession(ctx, sess, req), nil
		})
	}

	req, err := ndn.ParseMultiplyRequest(name)
	if err != nil {
		return "", ndn.ErrMalformedName
	}
	sess, _ := s.Sessions.GetOrCreate(requesterID)
	reply := s.Dispatcher.StartMatrixSession(ctx, sess, req)
	s.Metrics.RecordPoll(ndn.VerbMultiply, 1)
	return reply, nil
}
