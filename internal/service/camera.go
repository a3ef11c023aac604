package service

import (
	"context"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// serveDetectFaces implements spec.md §4.7 for the detectfaces verb. Every
// snapshot of a trial is its own idle→pending_input→computing→ready cycle
// for the same requester_id session; the session's camera reuse cache
// (spec.md §4.5) persists across cycles regardless. See serveChess's doc
// comment for why a first-sighting requester_id is parsed before its
// session is created.
func (s *Service) serveDetectFaces(ctx context.Context, name, requesterID string) (string, error) {
	if sess, existed := s.Sessions.Get(requesterID); existed {
		return pollReply(ctx, sess, ndn.VerbDetectFaces, s.Metrics, func() (string, error) {
			req, err := ndn.ParseDetectFacesRequest(name)
			if err != nil {
				return "", ndn.ErrMalformedName
			}
			return s.Dispatcher.StartCameraSession(ctx, sess, req), nil
		})
	}

	req, err := ndn.ParseDetectFacesRequest(name)
	if err != nil {
		return "", ndn.ErrMalformedName
	}
	sess, _ := s.Sessions.GetOrCreate(requesterID)
	reply := s.Dispatcher.StartCameraSession(ctx, sess, req)
	s.Metrics.RecordPoll(ndn.VerbDetectFaces, 1)
	return reply, nil
}
