// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/biovault/bfloat16-go/bf16stats"
	"github.com/nlpodyssey/safetensors"
	"github.com/pbnjay/memory"
	"golang.org/x/sync/errgroup"
)

// packedTensor locates one tensor inside the packed payload. Offsets are
// relative to the end of the JSON index.
type packedTensor struct {
	DType       string   `json:"dtype"`
	NumEl       int64    `json:"numel"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// packedIndex is the JSON index of a .bf16 file: an 8 bytes little endian
// index length, the index, then the contiguous little endian bfloat16
// payloads.
type packedIndex struct {
	Tensors map[string]packedTensor `json:"tensors"`
}

func writePacked(name string, order []string, payloads map[string][]byte) error {
	index := packedIndex{Tensors: make(map[string]packedTensor, len(order))}
	offset := int64(0)
	for _, n := range order {
		l := int64(len(payloads[n]))
		index.Tensors[n] = packedTensor{
			DType:       "BF16",
			NumEl:       l / 2,
			DataOffsets: [2]int64{offset, offset + l},
		}
		offset += l
	}
	hdr, err := json.Marshal(&index)
	if err != nil {
		return err
	}
	out := binary.LittleEndian.AppendUint64(nil, uint64(len(hdr)))
	out = append(out, hdr...)
	for _, n := range order {
		out = append(out, payloads[n]...)
	}
	return os.WriteFile(name, out, 0o666)
}

// readPacked parses a .bf16 file back into per tensor payloads.
func readPacked(name string) (map[string][]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if len(b) < 8 {
		return nil, fmt.Errorf("%s: truncated", name)
	}
	hdrLen := binary.LittleEndian.Uint64(b)
	if hdrLen > uint64(len(b)-8) {
		return nil, fmt.Errorf("%s: truncated index", name)
	}
	index := packedIndex{}
	if err := json.Unmarshal(b[8:8+hdrLen], &index); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	payload := b[8+hdrLen:]
	out := make(map[string][]byte, len(index.Tensors))
	for n, t := range index.Tensors {
		if t.DataOffsets[0] < 0 || t.DataOffsets[1] < t.DataOffsets[0] || t.DataOffsets[1] > int64(len(payload)) {
			return nil, fmt.Errorf("%s: tensor %s out of bounds", name, n)
		}
		out[n] = payload[t.DataOffsets[0]:t.DataOffsets[1]]
	}
	return out, nil
}

// convertWorkers caps tensor conversion concurrency by CPU count and by
// RAM, since each in-flight tensor holds both payloads in memory.
func convertWorkers() int {
	workers := runtime.NumCPU()
	if m := int(memory.TotalMemory() / (512 << 20)); m < workers {
		workers = m
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func convertFile(ctx context.Context, name, out string, reTensors *regexp.Regexp) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	s, err := safetensors.Deserialize(b)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	tensors := s.Tensors()
	toConvert := make([]int, 0, len(tensors))
	for i := range tensors {
		if !reTensors.MatchString(tensors[i].Name) {
			continue
		}
		if dt := tensors[i].TensorView.DType(); dt != safetensors.F32 {
			slog.Debug("convert", "name", tensors[i].Name, "dtype", dt, "skip", "not float32")
			continue
		}
		toConvert = append(toConvert, i)
	}
	slog.Info("convert", "file", filepath.Base(name), "num_tensors", len(tensors), "to_convert", len(toConvert), "workers", convertWorkers())

	order := make([]string, len(toConvert))
	packedByIdx := make([][]byte, len(toConvert))
	reports := make([]bf16stats.ConversionReport, len(toConvert))
	limit := make(chan struct{}, convertWorkers())
	eg := errgroup.Group{}
	for j, i := range toConvert {
		order[j] = tensors[i].Name
		eg.Go(func() error {
			limit <- struct{}{}
			defer func() {
				<-limit
			}()
			if err2 := ctx.Err(); err2 != nil {
				return err2
			}
			n := tensors[i].Name
			packed, report, err2 := bf16stats.ConvertFloat32(n, tensors[i].TensorView.Data())
			if err2 != nil {
				return err2
			}
			reports[j] = report
			packedByIdx[j] = packed
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	payloads := make(map[string][]byte, len(toConvert))
	for j, n := range order {
		payloads[n] = packedByIdx[j]
	}

	var before, after int64
	for j := range reports {
		r := &reports[j]
		before += r.NumEl * 4
		after += r.NumEl * 2
		fmt.Printf("%s: %dw  max_err=%.3g  distinct=%d\n", r.Name, r.NumEl, r.MaxAbsError, r.Distinct())
		if r.Flushed != 0 {
			slog.Warn("convert", "name", r.Name, "flushed_denormals", r.Flushed)
		}
		if r.Overflowed != 0 {
			slog.Warn("convert", "name", r.Name, "overflowed_to_inf", r.Overflowed)
		}
		if r.Quieted != 0 {
			slog.Warn("convert", "name", r.Name, "quieted_nans", r.Quieted)
		}
	}
	if err := writePacked(out, order, payloads); err != nil {
		return err
	}
	fmt.Printf("%s: %s -> %s (%s saved)\n", filepath.Base(out), humanBytes(before), humanBytes(after), humanBytes(before-after))
	return nil
}

func cmdConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	hfToken := fs.String("hf-token", "", "HuggingFace token")
	hfRepo := fs.String("hf-repo", "", "HuggingFace repository, e.g. \"meta-llama/Llama-3.2-1B\"")
	tensorsRe := fs.String("tensors", "", "regexp of tensor names to convert")
	out := fs.String("out", "", "output file; defaults to the input with a .bf16 suffix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	reTensors, err := regexp.Compile(*tensorsRe)
	if err != nil {
		return err
	}
	files, err := resolveFiles(ctx, *hfToken, *hfRepo, fs.Args())
	if err != nil {
		return err
	}
	if *out != "" && len(files) != 1 {
		return fmt.Errorf("-out requires exactly one input file, got %d", len(files))
	}
	for _, f := range files {
		o := *out
		if o == "" {
			o = f + ".bf16"
		}
		if err := convertFile(ctx, f, o, reTensors); err != nil {
			return err
		}
	}
	return nil
}
