// Package consumerutil factors the request/poll loop shared by the three
// cmd/*-consumer binaries: express an interest, and if the reply is a CTT
// estimate rather than the final payload, sleep for that estimate and
// poll again (spec.md §6, supplemented from the consumer sources'
// fixed-cadence-derived-from-CTT polling).
package consumerutil

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// PollUntilFinal expresses name against face repeatedly, logging every
// round-trip to logger, until the reply is the final (non-CTT-prefixed)
// result, and returns it.
func PollUntilFinal(ctx context.Context, face ndn.Face, name string, logger *slog.Logger) (string, error) {
	for {
		data, nackReason, timedOut, err := ExpressOnce(ctx, face, name)
		if err != nil {
			return "", err
		}
		if timedOut {
			return "", fmt.Errorf("consumerutil: interest timed out")
		}
		if nackReason != "" {
			return "", fmt.Errorf("consumerutil: nacked: %s", nackReason)
		}
		content := string(data.Content)
		logger.Info("poll reply", "name", name, "content", content)
		if !strings.HasPrefix(content, "CTT: ") {
			return content, nil
		}
		time.Sleep(cttDelay(content))
	}
}

// cttDelay extracts the millisecond estimate from a "CTT: <n>[, found]"
// reply, falling back to a short fixed delay if it cannot be parsed.
func cttDelay(cttReply string) time.Duration {
	rest := strings.TrimPrefix(cttReply, "CTT: ")
	rest, _, _ = strings.Cut(rest, ",")
	ms, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || ms < 0 {
		ms = 50
	}
	return time.Duration(ms) * time.Millisecond
}

// ExpressOnce issues a single interest against face and waits for exactly
// one of a data reply, a nack, or a timeout (including its own 5s upper
// bound in case face never calls back).
func ExpressOnce(ctx context.Context, face ndn.Face, name string) (data ndn.Data, nackReason string, timedOut bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	type outcome struct {
		data    ndn.Data
		nack    string
		timeout bool
	}
	ch := make(chan outcome, 1)
	expErr := face.ExpressInterest(ctx,
		ndn.Interest{Name: name, Lifetime: 2 * time.Second},
		func(d ndn.Data) { ch <- outcome{data: d} },
		func(i ndn.Interest, reason string) { ch <- outcome{nack: reason} },
		func(i ndn.Interest) { ch <- outcome{timeout: true} },
	)
	if expErr != nil {
		return ndn.Data{}, "", false, expErr
	}
	select {
	case o := <-ch:
		return o.data, o.nack, o.timeout, nil
	case <-ctx.Done():
		return ndn.Data{}, "", true, nil
	}
}
