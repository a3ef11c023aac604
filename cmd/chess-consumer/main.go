// Command chess-consumer drives one chess request to completion against a
// chess-cn process, polling on the cadence its CTT replies report and
// logging every round-trip (spec.md §6, supplemented from
// src/consumer/MACconsumer_chess.cpp). CLI:
// <id> <start_prob> <depth> <log_file> [<fen_input_file> <line_no>].
//
// With probability start_prob the consumer issues one of the 20 opening
// FENs (chosen uniformly); otherwise it reads the FEN at line_no of
// fen_input_file when given, or falls back to a fixed non-opening test
// position. This binary's Face is the in-memory ndn.Fake stand-in: it
// only reaches a chess-cn process attached to the same ndn.Network, which
// in this repository means a host process wiring both together (e.g. an
// integration test), since the real named-data transport is out of scope.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/consumerutil"
	"github.com/bukatea/reuse-edge/internal/ndn"
)

const fallbackFEN = "8/8/8/8/8/8/8/8 w - - 0 1"

func main() {
	if len(os.Args) != 5 && len(os.Args) != 7 {
		slog.Error("chess-consumer: usage: chess-consumer <id> <start_prob> <depth> <log_file> [<fen_input_file> <line_no>]")
		os.Exit(1)
	}
	id := os.Args[1]
	startProb, err := strconv.ParseFloat(os.Args[2], 64)
	if err != nil || startProb < 0 || startProb > 1 {
		slog.Error("chess-consumer: start_prob must be a float in [0,1]", "value", os.Args[2])
		os.Exit(1)
	}
	depth, err := strconv.Atoi(os.Args[3])
	if err != nil || depth < 1 {
		slog.Error("chess-consumer: depth must be a positive integer", "value", os.Args[3])
		os.Exit(1)
	}
	logFile := os.Args[4]

	var fenInputFile string
	var lineNo int
	if len(os.Args) == 7 {
		fenInputFile = os.Args[5]
		lineNo, err = strconv.Atoi(os.Args[6])
		if err != nil || lineNo < 0 {
			slog.Error("chess-consumer: line_no must be a non-negative integer", "value", os.Args[6])
			os.Exit(1)
		}
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("chess-consumer: failed to open log file", "path", logFile, "error", err)
		os.Exit(1)
	}
	defer f.Close()
	logger := slog.New(slog.NewTextHandler(f, nil))

	fen, err := pickFEN(startProb, fenInputFile, lineNo)
	if err != nil {
		slog.Error("chess-consumer: failed to pick FEN", "error", err)
		os.Exit(1)
	}

	req := &ndn.ChessRequest{RequesterID: id, Depth: depth, FEN: fen}
	logger.Info("starting request", "id", id, "depth", depth, "fen", fen)

	// A standalone run of this binary talks to no forwarder; callers that
	// need a live chess-cn attach this Face to the same ndn.Network the
	// CN uses instead of NewNetwork() here.
	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	final, err := consumerutil.PollUntilFinal(context.Background(), face, req.Name(), logger)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	logger.Info("final result", "result", final)
}

func pickFEN(startProb float64, fenInputFile string, lineNo int) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if rng.Float64() < startProb {
		return cache.OpeningFENs[rng.Intn(len(cache.OpeningFENs))], nil
	}
	if fenInputFile == "" {
		return fallbackFEN, nil
	}
	f, err := os.Open(fenInputFile)
	if err != nil {
		return "", fmt.Errorf("open fen_input_file: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan(); i++ {
		if i == lineNo {
			return strings.TrimSpace(scanner.Text()), nil
		}
	}
	return "", fmt.Errorf("fen_input_file has fewer than %d lines", lineNo+1)
}
