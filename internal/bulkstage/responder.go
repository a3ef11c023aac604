package bulkstage

import (
	"context"
	"fmt"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// RowProvider supplies the raw row bytes for [begin, end) of a consumer's
// staged input. Implementations live in the consumer binaries, which hold
// the actual matrix/camera data being pulled.
type RowProvider func(begin, end int) ([]byte, error)

// RegisterResponder publishes the interest filter a consumer uses to
// answer a compute node's staging pulls under
// /edge-compute/requester/{requesterID}/{kind}, serving each range from
// provider. This is the requester side of spec.md §4.8's protocol.
func RegisterResponder(face ndn.Face, requesterID, kind string, provider RowProvider) error {
	prefix := fmt.Sprintf("/edge-compute/requester/%s/%s", requesterID, kind)
	return face.PublishInterestFilter(prefix, func(ctx context.Context, interest ndn.Interest) (ndn.Data, bool, string) {
		sn, err := ndn.ParseStagingName(interest.Name)
		if err != nil {
			return ndn.Data{}, false, "malformed-name"
		}
		payload, err := provider(sn.Begin, sn.End)
		if err != nil {
			return ndn.Data{}, false, "provider-error"
		}
		return ndn.Data{Name: interest.Name, Content: payload, Freshness: Lifetime(kind)}, true, ""
	})
}
