// Command gltfexport converts a CAD document to glTF 2.0 on the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gltf-export-service/internal/config"
	"gltf-export-service/internal/decoder"
	"gltf-export-service/internal/gltfexport"
	"gltf-export-service/internal/logger"
	"gltf-export-service/internal/materials"
	"gltf-export-service/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type convertFlags struct {
	configPath     string
	output         string
	selectedOnly   bool
	predicate      string
	format         string
	generator      string
	decoderCommand string
	decoderArgs    []string
	decoderTimeout time.Duration
	logLevel       string
}

func newRootCmd() *cobra.Command {
	var f convertFlags

	root := &cobra.Command{
		Use:   "gltfexport <input>",
		Short: "Convert a CAD document to glTF 2.0",
		Long: `Convert a decoded document (.json) or, with a decoder command configured,
a .3dm file to a glTF 2.0 document. Objects without a mesh representation are
skipped and reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], f)
		},
	}

	flags := root.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML configuration file")
	flags.StringVarP(&f.output, "output", "o", "", "output path (default: input name with the format's extension)")
	flags.BoolVar(&f.selectedOnly, "selected-only", false, "export only selected objects")
	flags.StringVar(&f.predicate, "predicate", "", "selection predicate: any, partial or full")
	flags.StringVarP(&f.format, "format", "f", "", "output format: gltf or glb")
	flags.StringVar(&f.generator, "generator", "", "asset generator string")
	flags.StringVar(&f.decoderCommand, "decoder", "", "external decoder command for .3dm files")
	flags.StringArrayVar(&f.decoderArgs, "decoder-arg", nil, "decoder argument, may use {input} and {output} (repeatable)")
	flags.DurationVar(&f.decoderTimeout, "decoder-timeout", 0, "external decoder timeout")
	flags.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newInspectCmd())
	return root
}

// resolveConfig layers changed flags over the loaded configuration.
func resolveConfig(cmd *cobra.Command, f convertFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("selected-only") {
		cfg.Export.ExportSelectedOnly = f.selectedOnly
	}
	if flags.Changed("predicate") {
		cfg.Export.SelectionPredicate = f.predicate
	}
	if flags.Changed("format") {
		cfg.Export.Format = f.format
	}
	if flags.Changed("generator") {
		cfg.Export.Generator = f.generator
	}
	if flags.Changed("decoder") {
		cfg.Decoder.Command = f.decoderCommand
	}
	if flags.Changed("decoder-arg") {
		cfg.Decoder.Args = f.decoderArgs
	}
	if flags.Changed("decoder-timeout") {
		cfg.Decoder.Timeout = f.decoderTimeout
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

func runConvert(cmd *cobra.Command, input string, f convertFlags) error {
	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		return err
	}

	lc := logger.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.File = cfg.Logging.File
	lc.JSON = cfg.Logging.JSON
	log, err := logger.New(lc)
	if err != nil {
		return err
	}
	defer log.Sync()

	policy, err := materials.NewPolicy(cfg.Export.ExportSelectedOnly, cfg.Export.SelectionPredicate)
	if err != nil {
		return err
	}
	format, err := gltfexport.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	decoders := decoder.NewDefaultRegistry(&decoder.ExternalDecoder{
		Command: cfg.Decoder.Command,
		Args:    cfg.Decoder.Args,
		Timeout: cfg.Decoder.Timeout,
		Log:     log,
	})
	if !decoders.Supports(input) {
		return fmt.Errorf("%w: %s (supported: %v)", decoder.ErrUnsupportedInput, input, decoders.Extensions())
	}

	conv := pipeline.NewConverter(nil, nil, log)
	result, err := conv.ConvertFile(cmd.Context(), decoders, input, pipeline.Options{
		Policy:    policy,
		Format:    format,
		Generator: cfg.Export.Generator,
	})
	if err != nil {
		log.Error("conversion failed", zap.Error(err))
		return err
	}

	output := f.output
	if output == "" {
		output = pipeline.OutputPath(input, format)
	}
	if err := pipeline.WriteFile(output, result.Data); err != nil {
		log.Error("write failed", zap.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d nodes, %d skipped, %d bytes)\n",
		output, result.Nodes, len(result.Warnings), len(result.Data))
	return nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.gltf|file.glb>",
		Short: "Print a summary of a glTF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return inspect(cmd.OutOrStdout(), f)
		},
	}
}

func inspect(w io.Writer, r io.Reader) error {
	doc, err := gltfexport.Decode(r)
	if err != nil {
		return err
	}
	generator := doc.Asset.Generator
	if generator == "" {
		generator = "-"
	}
	fmt.Fprintf(w, "version:   %s\n", doc.Asset.Version)
	fmt.Fprintf(w, "generator: %s\n", generator)
	fmt.Fprintf(w, "nodes:     %d\n", len(doc.Nodes))
	fmt.Fprintf(w, "meshes:    %d\n", len(doc.Meshes))
	fmt.Fprintf(w, "materials: %d\n", len(doc.Materials))
	fmt.Fprintf(w, "accessors: %d\n", len(doc.Accessors))
	for i, n := range doc.Nodes {
		fmt.Fprintf(w, "  node %d: %s\n", i, n.Name)
	}
	return nil
}
