// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nlpodyssey/safetensors"
)

func cmdMetadata(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metadata", flag.ContinueOnError)
	hfToken := fs.String("hf-token", "", "HuggingFace token")
	hfRepo := fs.String("hf-repo", "", "HuggingFace repository, e.g. \"meta-llama/Llama-3.2-1B\"")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files, err := resolveFiles(ctx, *hfToken, *hfRepo, fs.Args())
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		s, err := safetensors.Deserialize(b)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		fmt.Printf("%s:\n", filepath.Base(f))
		types := map[safetensors.DType]int{}
		bytes := map[safetensors.DType]int64{}
		for _, t := range s.Tensors() {
			dt := t.TensorView.DType()
			types[dt]++
			bytes[dt] += int64(t.TensorView.DataLen())
		}
		for dtype, count := range types {
			fmt.Printf("  %d tensors of type %s (%s)\n", count, dtype, humanBytes(bytes[dtype]))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
