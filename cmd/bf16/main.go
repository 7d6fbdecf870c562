// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// bf16 inspects safetensors model files and repacks float32 tensors as
// bfloat16.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/maruel/sillybot/huggingface"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const usageDoc = `usage: bf16 [flags] <command> [command flags] [file...]

commands:
  analyze   bit usage statistics of bfloat16 tensors
  convert   repack float32 tensors as bfloat16
  metadata  tensor dtype inventory
`

// resolveFiles returns local paths, downloading from HuggingFace when a
// repository is given instead.
func resolveFiles(ctx context.Context, hfToken, hfRepo string, args []string) ([]string, error) {
	if hfRepo != "" {
		hf, err := huggingface.New(hfToken, "")
		if err != nil {
			return nil, err
		}
		p, err := hf.EnsureFile(ctx, huggingface.PackedFileRef("hf:"+hfRepo+"/HEAD/model.safetensors"), 0o666)
		if err != nil {
			return nil, err
		}
		args = append(args, p)
	}
	if len(args) == 0 {
		return nil, errors.New("pass at least one safetensors file or -hf-repo")
	}
	return args, nil
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageDoc)
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorableStderr(), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	ctx := context.Background()
	switch args[0] {
	case "analyze":
		return cmdAnalyze(ctx, args[1:])
	case "convert":
		return cmdConvert(ctx, args[1:])
	case "metadata":
		return cmdMetadata(ctx, args[1:])
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "bf16: %s\n", err)
		os.Exit(1)
	}
}
