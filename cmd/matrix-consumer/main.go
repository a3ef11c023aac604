// Command matrix-consumer drives one multiply request to completion
// against a matrix-cn process: it builds a dim×dim matrix filled with
// fill_value, registers itself as the bulk-staging responder for its own
// rows (spec.md §4.8), and polls until the final "Done" reply (spec.md
// §6, supplemented from src/consumer/MACconsumer_matrix.cpp). CLI:
// <id> <dim> <exp> <fill_value> <log_file> <use_cache:0|1>.
//
// use_cache=0 omits matrix_hash from the request name entirely, which
// dispatch's matrix worker treats as reuse disabled for that call (see
// internal/ndn's MultiplyRequest.MatrixHash doc comment).
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/consumerutil"
	"github.com/bukatea/reuse-edge/internal/matrixkernel"
	"github.com/bukatea/reuse-edge/internal/ndn"
)

func main() {
	if len(os.Args) != 7 {
		slog.Error("matrix-consumer: usage: matrix-consumer <id> <dim> <exp> <fill_value> <log_file> <use_cache:0|1>")
		os.Exit(1)
	}
	id := os.Args[1]
	dim, err := strconv.Atoi(os.Args[2])
	if err != nil || dim < 1 {
		slog.Error("matrix-consumer: dim must be a positive integer", "value", os.Args[2])
		os.Exit(1)
	}
	exp, err := strconv.Atoi(os.Args[3])
	if err != nil || exp < 1 {
		slog.Error("matrix-consumer: exp must be a positive integer", "value", os.Args[3])
		os.Exit(1)
	}
	fillValue, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		slog.Error("matrix-consumer: fill_value must be an integer", "value", os.Args[4])
		os.Exit(1)
	}
	logFile := os.Args[5]
	useCache, err := strconv.Atoi(os.Args[6])
	if err != nil || (useCache != 0 && useCache != 1) {
		slog.Error("matrix-consumer: use_cache must be 0 or 1", "value", os.Args[6])
		os.Exit(1)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("matrix-consumer: failed to open log file", "path", logFile, "error", err)
		os.Exit(1)
	}
	defer f.Close()
	logger := slog.New(slog.NewTextHandler(f, nil))

	base := matrixkernel.Fill(dim, fillValue)
	var matrixHash string
	if useCache == 1 {
		matrixHash = matrixkernel.Fingerprint(base)
	}

	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	if err := bulkstage.RegisterResponder(face, id, bulkstage.KindMatrix, rowProvider(base)); err != nil {
		logger.Error("failed to register bulk-staging responder", "error", err)
		os.Exit(1)
	}

	req := &ndn.MultiplyRequest{RequesterID: id, Dim: dim, Exp: exp, MatrixHash: matrixHash}
	logger.Info("starting request", "id", id, "dim", dim, "exp", exp, "fill_value", fillValue, "use_cache", useCache == 1)

	final, err := consumerutil.PollUntilFinal(context.Background(), face, req.Name(), logger)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	logger.Info("final result", "result", final)
}

// rowProvider answers a bulk-staging pull for rows [begin, end) of m,
// encoded in the same ","-column/"|"-row wire format internal/matrixkernel
// uses for the full matrix.
func rowProvider(m matrixkernel.Matrix) bulkstage.RowProvider {
	return func(begin, end int) ([]byte, error) {
		var b strings.Builder
		for _, row := range m[begin:end] {
			for i, v := range row {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.FormatInt(v, 10))
			}
			b.WriteByte('|')
		}
		return []byte(b.String()), nil
	}
}
