// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"

	"github.com/biovault/bfloat16-go/bf16stats"
	"github.com/nlpodyssey/safetensors"
	"golang.org/x/sync/errgroup"
)

func humanBytes(i int64) string {
	switch {
	case i > 1024*1024*1024:
		return fmt.Sprintf("%.1fGiB", float64(i)/1024./1024./1024.)
	case i > 1024*1024:
		return fmt.Sprintf("%.1fMiB", float64(i)/1024./1024.)
	case i > 1024:
		return fmt.Sprintf("%.1fkiB", float64(i)/1024.)
	default:
		return fmt.Sprintf("%dB", i)
	}
}

// analyzeFile analyzes the bfloat16 tensors of one safetensors file.
func analyzeFile(ctx context.Context, name string, reTensors *regexp.Regexp, cpuLimit chan struct{}) ([]bf16stats.AnalyzedTensor, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	s, err := safetensors.Deserialize(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tensors := s.Tensors()
	toAnalyze := make([]int, 0, len(tensors))
	for i := range tensors {
		if !reTensors.MatchString(tensors[i].Name) {
			continue
		}
		if dt := tensors[i].TensorView.DType(); dt != safetensors.BF16 {
			slog.Debug("analyze", "name", tensors[i].Name, "dtype", dt, "skip", "not bfloat16")
			continue
		}
		toAnalyze = append(toAnalyze, i)
	}
	slog.Info("analyze", "file", filepath.Base(name), "num_tensors", len(tensors), "to_analyze", len(toAnalyze))
	analyzed := make([]bf16stats.AnalyzedTensor, len(toAnalyze))
	// Analyze tensors concurrently.
	eg := errgroup.Group{}
	for j, i := range toAnalyze {
		eg.Go(func() error {
			cpuLimit <- struct{}{}
			defer func() {
				<-cpuLimit
			}()
			if err2 := ctx.Err(); err2 != nil {
				return err2
			}
			n := tensors[i].Name
			slog.Debug("analyze", "file", filepath.Base(name), "name", n)
			var err2 error
			analyzed[j], err2 = bf16stats.AnalyzeBF16(n, tensors[i].TensorView.Data())
			return err2
		})
	}
	err = eg.Wait()
	return analyzed, err
}

func calcNameLen(tensors []bf16stats.AnalyzedTensor) (int, int) {
	maxNameLen := 0
	maxSizeLen := 0
	for _, tensor := range tensors {
		if l := len(tensor.Name); l > maxNameLen {
			maxNameLen = l
		}
		if l := len(strconv.FormatInt(tensor.NumEl, 10)); l > maxSizeLen {
			maxSizeLen = l
		}
	}
	return maxNameLen, maxSizeLen
}

func printAnalyzed(analyzed []bf16stats.AnalyzedTensor) {
	maxNameLen, maxSizeLen := calcNameLen(analyzed)
	for i := range analyzed {
		a := &analyzed[i]
		wasted := int64(a.WastedBits())
		fmt.Printf("%-*s: %*dw  avg=%8.3g [%9.3g, %9.3g]  sign=%d  exponents=%3d/256  mantissas=%3d/128  wasted=%2d/16bits  %8s\n",
			maxNameLen, a.Name, maxSizeLen, a.NumEl,
			a.Avg, a.Min, a.Max,
			a.Sign.Effective(), a.Exponent.Effective(), a.Mantissa.Effective(),
			wasted, humanBytes(wasted*a.NumEl/8),
		)
		if n := a.Classes.QuietNaN + a.Classes.SignalingNaN; n != 0 {
			slog.Warn("analyze", "name", a.Name, "nans", n)
		}
		if a.Classes.Inf != 0 {
			slog.Warn("analyze", "name", a.Name, "infs", a.Classes.Inf)
		}
	}
}

func cmdAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	hfToken := fs.String("hf-token", "", "HuggingFace token")
	hfRepo := fs.String("hf-repo", "", "HuggingFace repository, e.g. \"meta-llama/Llama-3.2-1B\"")
	tensorsRe := fs.String("tensors", "", "regexp of tensor names to analyze")
	out := fs.String("out", "", "write the analysis as JSON to this file")
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

	// Concurrency limit.
	cpus := runtime.NumCPU()
	if cpus < 2 {
		cpus = 2
	}
	cpuLimit := make(chan struct{}, cpus)

	all := bf16stats.Model{}
	var totalBytes, totalWeights, bytesWasted int64
	for _, f := range files {
		fmt.Printf("Processing %s:\n", filepath.Base(f))
		analyzed, err := analyzeFile(ctx, f, reTensors, cpuLimit)
		if err != nil {
			return err
		}
		printAnalyzed(analyzed)
		for i := range analyzed {
			a := &analyzed[i]
			bytesWasted += a.NumEl * int64(a.WastedBits()) / 8
			totalBytes += a.Bytes()
			totalWeights += a.NumEl
		}
		all.Tensors = append(all.Tensors, analyzed...)
	}
	if totalBytes != 0 {
		fmt.Printf("%s (%.1f%%) wasted on %s total storing %d weights\n",
			humanBytes(bytesWasted), 100.*float64(bytesWasted)/float64(totalBytes), humanBytes(totalBytes), totalWeights)
	}
	if *out != "" {
		data, err := json.Marshal(&all)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, data, 0o666); err != nil {
			return err
		}
	}
	return nil
}
