// Package ndn models the structured request/staging names and the
// transport face this compute node talks to. The underlying named-data
// library itself is out of scope (spec treats it as an opaque duplex of
// publish/express/put); this package only codes the name grammar and
// declares the interface the rest of the node programs against.
package ndn

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedName is returned by every parser below on a structurally
// invalid name. Callers translate it into a NACK with reason
// "malformed-name".
var ErrMalformedName = fmt.Errorf("malformed-name")

const (
	rootComputer  = "edge-compute/computer"
	rootRequester = "edge-compute/requester"

	VerbChess       = "chess"
	VerbMultiply    = "multiply"
	VerbDetectFaces = "detectfaces"
)

// splitName splits a "/"-delimited name into non-empty components.
func splitName(name string) []string {
	name = strings.Trim(name, "/")
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}

func joinName(parts ...string) string {
	return "/" + strings.Join(parts, "/")
}

// encodeFEN percent-encodes the spaces in a FEN for use on the wire.
func encodeFEN(fen string) string {
	return strings.ReplaceAll(fen, " ", "%20")
}

// decodeFEN restores the spaces the wire form percent-encoded.
func decodeFEN(fen string) string {
	return strings.ReplaceAll(fen, "%20", " ")
}

// PeekVerb extracts the verb and requester_id components of a
// computer-prefixed name without parsing its verb-specific parameters,
// used by the service entrypoint to route an incoming interest before it
// knows which verb-specific parser to call (spec.md §4.1/§8).
func PeekVerb(name string) (verb, requesterID string, ok bool) {
	parts := splitName(name)
	if len(parts) < 4 || parts[0] != "edge-compute" || parts[1] != "computer" {
		return "", "", false
	}
	return parts[3], parts[2], true
}

// ChessRequest is the parsed form of
// /edge-compute/computer/{rid}/chess/{depth}/{FEN}.
type ChessRequest struct {
	RequesterID string
	Depth       int
	FEN         string
}

// ParseChessRequest parses a chess verb request name.
func ParseChessRequest(name string) (*ChessRequest, error) {
	parts := splitName(name)
	// edge-compute computer {rid} chess {depth} {fen...}
	if len(parts) < 6 || parts[0] != "edge-compute" || parts[1] != "computer" || parts[3] != VerbChess {
		return nil, ErrMalformedName
	}
	depth, err := strconv.Atoi(parts[4])
	if err != nil || depth < 1 {
		return nil, ErrMalformedName
	}
	// The FEN itself contains "/" separated rank fields, so everything
	// after the depth component belongs to it.
	fen := decodeFEN(strings.Join(parts[5:], "/"))
	if fen == "" {
		return nil, ErrMalformedName
	}
	return &ChessRequest{RequesterID: parts[2], Depth: depth, FEN: fen}, nil
}

// Name formats the request name for this chess request.
func (r *ChessRequest) Name() string {
	return joinName(rootComputer, r.RequesterID, VerbChess, strconv.Itoa(r.Depth), encodeFEN(r.FEN))
}

// MultiplyRequest is the parsed form of
// /edge-compute/computer/{rid}/multiply/{dim}/{exp}/{matrix_hash?}.
type MultiplyRequest struct {
	RequesterID string
	Dim         int
	Exp         int
	MatrixHash  string // empty when reuse is disabled for this call
}

// ParseMultiplyRequest parses a multiply verb request name.
func ParseMultiplyRequest(name string) (*MultiplyRequest, error) {
	parts := splitName(name)
	if len(parts) < 6 || parts[0] != "edge-compute" || parts[1] != "computer" || parts[3] != VerbMultiply {
		return nil, ErrMalformedName
	}
	dim, err := strconv.Atoi(parts[4])
	if err != nil || dim < 1 {
		return nil, ErrMalformedName
	}
	exp, err := strconv.Atoi(parts[5])
	if err != nil || exp < 1 {
		return nil, ErrMalformedName
	}
	req := &MultiplyRequest{RequesterID: parts[2], Dim: dim, Exp: exp}
	if len(parts) >= 7 {
		req.MatrixHash = parts[6]
	}
	return req, nil
}

// Name formats the request name for this multiply request.
func (r *MultiplyRequest) Name() string {
	if r.MatrixHash == "" {
		return joinName(rootComputer, r.RequesterID, VerbMultiply, strconv.Itoa(r.Dim), strconv.Itoa(r.Exp))
	}
	return joinName(rootComputer, r.RequesterID, VerbMultiply, strconv.Itoa(r.Dim), strconv.Itoa(r.Exp), r.MatrixHash)
}

// DetectFacesRequest is the parsed form of
// /edge-compute/computer/{rid}/detectfaces/{overlap}/{height}x{width}[/first].
type DetectFacesRequest struct {
	RequesterID string
	Overlap     float64
	Height      int
	Width       int
	First       bool
}

// ParseDetectFacesRequest parses a detectfaces verb request name.
func ParseDetectFacesRequest(name string) (*DetectFacesRequest, error) {
	parts := splitName(name)
	if len(parts) < 6 || parts[0] != "edge-compute" || parts[1] != "computer" || parts[3] != VerbDetectFaces {
		return nil, ErrMalformedName
	}
	overlap, err := strconv.ParseFloat(parts[4], 64)
	if err != nil || overlap < 0 || overlap >= 1 {
		return nil, ErrMalformedName
	}
	dims := strings.SplitN(parts[5], "x", 2)
	if len(dims) != 2 {
		return nil, ErrMalformedName
	}
	height, err := strconv.Atoi(dims[0])
	if err != nil || height < 1 {
		return nil, ErrMalformedName
	}
	width, err := strconv.Atoi(dims[1])
	if err != nil || width < 1 {
		return nil, ErrMalformedName
	}
	req := &DetectFacesRequest{RequesterID: parts[2], Overlap: overlap, Height: height, Width: width}
	if len(parts) >= 7 {
		if parts[6] != "first" {
			return nil, ErrMalformedName
		}
		req.First = true
	}
	return req, nil
}

// Name formats the request name for this detectfaces request.
func (r *DetectFacesRequest) Name() string {
	dims := fmt.Sprintf("%dx%d", r.Height, r.Width)
	if r.First {
		return joinName(rootComputer, r.RequesterID, VerbDetectFaces, formatOverlap(r.Overlap), dims, "first")
	}
	return joinName(rootComputer, r.RequesterID, VerbDetectFaces, formatOverlap(r.Overlap), dims)
}

func formatOverlap(o float64) string {
	return strconv.FormatFloat(o, 'g', -1, 64)
}

// StagingName is the parsed form of the reverse-interest names the CN
// issues to pull bulk input from the requester:
// /edge-compute/requester/{rid}/{kind}/{begin}/{end}/{version}.
type StagingName struct {
	RequesterID string
	Kind        string // "matrix" or "detectfaces"
	Begin       int
	End         int
	Version     string
}

// ParseStagingName parses a staging interest/data name.
func ParseStagingName(name string) (*StagingName, error) {
	parts := splitName(name)
	if len(parts) < 7 || parts[0] != "edge-compute" || parts[1] != "requester" {
		return nil, ErrMalformedName
	}
	begin, err := strconv.Atoi(parts[4])
	if err != nil || begin < 0 {
		return nil, ErrMalformedName
	}
	end, err := strconv.Atoi(parts[5])
	if err != nil || end <= begin {
		return nil, ErrMalformedName
	}
	return &StagingName{
		RequesterID: parts[2],
		Kind:        parts[3],
		Begin:       begin,
		End:         end,
		Version:     parts[6],
	}, nil
}

// Name formats the staging name with its version component.
func (s *StagingName) Name() string {
	return joinName(rootRequester, s.RequesterID, s.Kind, strconv.Itoa(s.Begin), strconv.Itoa(s.End), s.Version)
}

// MatchesIgnoringVersion reports whether two staging names address the
// same row range for the same requester/kind, disregarding the version
// component — this is how incoming data is matched to an outstanding
// interest per spec.md §4.8.
func (s *StagingName) MatchesIgnoringVersion(other *StagingName) bool {
	return s.RequesterID == other.RequesterID &&
		s.Kind == other.Kind &&
		s.Begin == other.Begin &&
		s.End == other.End
}
