// Command camera-consumer drives one detectfaces snapshot request to
// completion against a camera-cn process: it loads a grayscale image,
// registers itself as the bulk-staging responder for a sub_width-wide
// strip of it, and polls until the final face-count reply (spec.md §6,
// supplemented from src/consumer/MACconsumer_simcamera.cpp). CLI:
// <id> <overlap> <sub_width> <image_file> <log_file>.
//
// image_file is a raw grayscale dump: an 8-byte header of two big-endian
// uint32s (height, width) followed by height*width pixel bytes. The
// on-wire image format is an explicit non-goal codec detail (spec.md §1),
// so this repository defines its own, the same way internal/matrixkernel
// defines the matrix row/column wire format.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/consumerutil"
	"github.com/bukatea/reuse-edge/internal/facedetect"
	"github.com/bukatea/reuse-edge/internal/ndn"
)

func main() {
	if len(os.Args) != 6 {
		slog.Error("camera-consumer: usage: camera-consumer <id> <overlap> <sub_width> <image_file> <log_file>")
		os.Exit(1)
	}
	id := os.Args[1]
	overlap, err := strconv.ParseFloat(os.Args[2], 64)
	if err != nil || overlap < 0 || overlap >= 1 {
		slog.Error("camera-consumer: overlap must be a float in [0,1)", "value", os.Args[2])
		os.Exit(1)
	}
	subWidth, err := strconv.Atoi(os.Args[3])
	if err != nil || subWidth < 1 {
		slog.Error("camera-consumer: sub_width must be a positive integer", "value", os.Args[3])
		os.Exit(1)
	}
	imageFile := os.Args[4]
	logFile := os.Args[5]

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("camera-consumer: failed to open log file", "path", logFile, "error", err)
		os.Exit(1)
	}
	defer f.Close()
	logger := slog.New(slog.NewTextHandler(f, nil))

	img, err := loadImage(imageFile)
	if err != nil {
		logger.Error("failed to load image_file", "path", imageFile, "error", err)
		os.Exit(1)
	}
	if subWidth > img.Width {
		logger.Error("sub_width exceeds image width", "sub_width", subWidth, "image_width", img.Width)
		os.Exit(1)
	}
	sub := img.SubImage(0, subWidth)

	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	if err := bulkstage.RegisterResponder(face, id, bulkstage.KindCamera, rowProvider(sub)); err != nil {
		logger.Error("failed to register bulk-staging responder", "error", err)
		os.Exit(1)
	}

	req := &ndn.DetectFacesRequest{RequesterID: id, Overlap: overlap, Height: sub.Height, Width: sub.Width, First: true}
	logger.Info("starting request", "id", id, "overlap", overlap, "sub_width", subWidth)

	final, err := consumerutil.PollUntilFinal(context.Background(), face, req.Name(), logger)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	logger.Info("final result", "faces", final)
}

func loadImage(path string) (facedetect.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return facedetect.Image{}, err
	}
	if len(data) < 8 {
		return facedetect.Image{}, fmt.Errorf("image file too short for header")
	}
	height := int(binary.BigEndian.Uint32(data[0:4]))
	width := int(binary.BigEndian.Uint32(data[4:8]))
	pixels := data[8:]
	if len(pixels) != height*width {
		return facedetect.Image{}, fmt.Errorf("image file has %d pixel bytes, want %d (%dx%d)", len(pixels), height*width, height, width)
	}
	return facedetect.Image{Width: width, Height: height, Pixels: pixels}, nil
}

// rowProvider answers a bulk-staging pull for rows [begin, end) of img, one
// width-byte grayscale scanline per row.
func rowProvider(img facedetect.Image) bulkstage.RowProvider {
	return func(begin, end int) ([]byte, error) {
		return img.Pixels[begin*img.Width : end*img.Width], nil
	}
}
