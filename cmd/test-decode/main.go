package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	streamdecode "github.com/e7canasta/orion-care-sensor/modules/stream-decode"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/framesource"
)

// Version information
const version = "v0.1.0"

var (
	title = color.New(color.FgCyan, color.Bold)
	good  = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
	bad   = color.New(color.FgRed, color.Bold)
)

func main() {
	// Parse command-line flags
	configPath := flag.StringP("config", "c", "", "YAML configuration file (optional)")
	input := flag.StringP("input", "i", "", "Input: frame directory, .h264/.h265, .ivf or .mp4 (required)")
	codec := flag.String("codec", "", "Codec: mjpeg, vp8, h264, vp9, h265, auto (default: from input)")
	pixelFormat := flag.String("pixel-format", "BGRx", "Decoded pixel format: BGRx, RGBx, RGBA, BGRA, RGB")
	stallTimeout := flag.Duration("stall-timeout", 0, "Max wait per frame (0 = wait forever)")
	sourceStream := flag.String("source", "test", "Source stream identifier")
	outputDir := flag.StringP("output", "o", "", "Directory to save decoded frames (optional)")
	outputFormat := flag.String("format", "png", "Output format: png, jpeg, bmp")
	jpegQuality := flag.Int("jpeg-quality", 90, "JPEG quality (1-100, only for jpeg format)")
	saveEvery := flag.Int("save-every", 1, "Save one decoded frame out of N")
	maxFrames := flag.IntP("max-frames", "n", 0, "Maximum compressed frames to feed (0 = all)")
	loop := flag.Bool("loop", false, "Restart the input at EOF (requires --max-frames)")
	rate := flag.Float64("rate", 0, "Feed rate in frames per second (0 = as fast as possible)")
	statsInterval := flag.Duration("stats-interval", 10*time.Second, "Interval between stats reports")
	debug := flag.BoolP("debug", "d", false, "Enable debug logging")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	showVersion := flag.BoolP("version", "v", false, "Show version and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("test-decode %s\n", version)
		os.Exit(0)
	}
	if *noColor {
		color.NoColor = true
	}

	// Load configuration; explicit flags win over the file
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	override := func(name string, apply func()) {
		if *configPath == "" || flag.CommandLine.Changed(name) {
			apply()
		}
	}
	override("input", func() { cfg.Input.Path = *input })
	override("codec", func() { cfg.Decoder.Codec = *codec })
	override("pixel-format", func() { cfg.Decoder.OutputFormat = *pixelFormat })
	override("stall-timeout", func() { cfg.Decoder.StallTimeout = *stallTimeout })
	override("source", func() { cfg.Decoder.SourceStream = *sourceStream })
	override("output", func() { cfg.Output.Dir = *outputDir })
	override("format", func() { cfg.Output.Format = *outputFormat })
	override("jpeg-quality", func() { cfg.Output.Quality = *jpegQuality })
	override("save-every", func() { cfg.Output.SaveEvery = *saveEvery })
	override("max-frames", func() { cfg.Input.MaxFrames = *maxFrames })
	override("loop", func() { cfg.Input.Loop = *loop })
	override("rate", func() { cfg.Input.RateFPS = *rate })
	override("stats-interval", func() { cfg.StatsInterval = *statsInterval })
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *logJSON {
		cfg.Log.JSON = true
	}

	if cfg.Input.Path == "" {
		fmt.Fprintf(os.Stderr, "Error: --input flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  test-decode --input clip.h264\n")
		fmt.Fprintf(os.Stderr, "  test-decode --input clip.ivf --output ./frames --format bmp\n")
		fmt.Fprintf(os.Stderr, "  test-decode --config decode.yaml --max-frames 100\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	setupLogging(cfg.Log)

	// Open frame source
	src, err := framesource.Open(cfg.Input.Path)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer func() { src.Close() }()

	decCfg, err := cfg.DecoderConfig(src.Codec())
	if err != nil {
		log.Fatalf("Invalid decoder configuration: %v", err)
	}

	// Create output directory if specified
	saver, err := newFrameSaver(cfg.Output)
	if err != nil {
		log.Fatalf("Failed to prepare output: %v", err)
	}

	printBanner(cfg, decCfg)

	// Build the decoder
	stream := streamdecode.NewStream(decCfg)
	if err := stream.Init(); err != nil {
		bad.Printf("✗ Decoder construction failed: %v\n", err)
		var cerr *streamdecode.ConstructionError
		if errors.As(err, &cerr) {
			fmt.Printf("  Category:    %s\n", cerr.Category)
			fmt.Printf("  Description: %s\n", cerr.Description)
		}
		os.Exit(1)
	}
	defer stream.Cleanup()
	dec := stream.Decoder()
	good.Printf("✓ Pipeline running: %s\n\n", dec.Stats().Description)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
		cancel()
		// A Decode stalled on the pipeline only returns once the decoder closes
		dec.Close()

		<-sigChan
		fmt.Printf("\nSecond interrupt signal, exiting immediately\n")
		os.Exit(1)
	}()

	fmt.Printf("Feeding frames...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully (twice to force)\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	startTime := time.Now()

	// Launch stats reporter goroutine
	if cfg.StatsInterval > 0 {
		statsTicker := time.NewTicker(cfg.StatsInterval)
		defer statsTicker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-statsTicker.C:
					printStats(dec.Stats(), saver, time.Since(startTime))
				}
			}
		}()
	}

	var pace <-chan time.Time
	if cfg.Input.RateFPS > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / cfg.Input.RateFPS))
		defer t.Stop()
		pace = t.C
	}

	// Input buffers outlive Decode until the pipeline frees them
	var buffersFreed atomic.Uint64
	onFree := func() { buffersFreed.Add(1) }

	// Main decode loop
	fed := 0
	for ctx.Err() == nil {
		if cfg.Input.MaxFrames > 0 && fed >= cfg.Input.MaxFrames {
			fmt.Printf("\nReached maximum frames (%d), stopping...\n", cfg.Input.MaxFrames)
			break
		}

		pkt, err := src.Next()
		if errors.Is(err, io.EOF) {
			if !cfg.Input.Loop {
				fmt.Printf("\nEnd of input, stopping...\n")
				break
			}
			next, err := reopen(src, cfg.Input.Path)
			if err != nil {
				slog.Error("Failed to reopen input", "error", err)
				break
			}
			src = next
			continue
		}
		if err != nil {
			slog.Error("Failed to read frame", "error", err)
			break
		}

		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
				continue
			}
		}

		fed++
		msg := streamdecode.NewMessage(pkt.Data, onFree)
		stream.SetCurrentFrame(streamdecode.FrameFromMessage(msg))
		stream.Decode()
		msg.Unref()

		if stream.Out == nil {
			warn.Printf("[%s] Input #%-6d | %6.1f KB | no output: %v\n",
				time.Now().Format("15:04:05"),
				fed,
				float64(len(pkt.Data))/1024,
				reason(stream.LastErr),
			)
			if errors.Is(stream.LastErr, streamdecode.ErrPipelineFailed) {
				slog.Error("Pipeline failed, stopping", "error", stream.LastErr)
				break
			}
			continue
		}

		frame := stream.Out
		fmt.Printf("[%s] Input #%-6d | Seq: %-8d | %dx%d %s | %7.1f KB | key: %-5v\n",
			time.Now().Format("15:04:05"),
			fed,
			frame.Seq,
			frame.Width,
			frame.Height,
			frame.Format,
			float64(len(frame.Data))/1024,
			pkt.Keyframe,
		)

		if err := saver.Save(frame); err != nil {
			slog.Error("Failed to save frame", "error", err, "seq", frame.Seq)
		}
	}

	cancel()
	stats := dec.Stats()
	cadence := dec.Cadence()
	stream.Cleanup()

	printFinal(stats, cadence, saver, time.Since(startTime), fed, buffersFreed.Load())
	slog.Info("Test decode completed")
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// reason returns a short label for a no-output error
// reopen closes src and opens path again for another pass over the input
func reopen(src framesource.Source, path string) (framesource.Source, error) {
	if err := src.Close(); err != nil {
		slog.Debug("Failed to close input before looping", "error", err)
	}
	return framesource.Open(path)
}

func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, streamdecode.ErrEmptyFrame):
		return "empty frame"
	case errors.Is(err, streamdecode.ErrNeedMoreInput):
		return "need more input"
	case errors.Is(err, streamdecode.ErrInjectionRejected):
		return "rejected"
	case errors.Is(err, streamdecode.ErrStalled):
		return "stalled"
	case errors.Is(err, streamdecode.ErrPullFailed):
		return "pull failed"
	case errors.Is(err, streamdecode.ErrMapFailed):
		return "map failed"
	case errors.Is(err, streamdecode.ErrNoPipeline):
		return "no pipeline"
	case errors.Is(err, streamdecode.ErrPipelineFailed):
		return "pipeline failed"
	default:
		return err.Error()
	}
}

func printBanner(cfg *config.Config, decCfg streamdecode.Config) {
	fmt.Printf("\n")
	title.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	title.Printf("║          Stream Decode Test - Orion 2.0 Module           ║\n")
	title.Printf("║                      Version %s                        ║\n", version)
	title.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Input:         %s\n", cfg.Input.Path)
	fmt.Printf("  Codec:         %s\n", decCfg.Codec)
	fmt.Printf("  Pixel Format:  %s\n", decCfg.OutputFormat)
	if decCfg.StallTimeout > 0 {
		fmt.Printf("  Stall Timeout: %s\n", decCfg.StallTimeout)
	} else {
		fmt.Printf("  Stall Timeout: none (wait forever)\n")
	}
	if decCfg.Overrides != nil {
		fmt.Printf("  GST Auto:      %q\n", decCfg.Overrides.AutoSelect)
		fmt.Printf("  Decodebin:     %v\n", decCfg.Overrides.ForceDecodebin)
	}
	fmt.Printf("  Source Stream: %s\n", decCfg.SourceStream)
	if cfg.Output.Dir != "" {
		fmt.Printf("  Output Dir:    %s (%s, 1/%d)\n", cfg.Output.Dir, cfg.Output.Format, cfg.Output.SaveEvery)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if cfg.Input.MaxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", cfg.Input.MaxFrames)
	} else {
		fmt.Printf("  Max Frames:    all\n")
	}
	fmt.Printf("\n")
}

func printStats(stats streamdecode.DecoderStats, saver *frameSaver, uptime time.Duration) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Decoder Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames In:          %6d frames\n", stats.FramesIn)
	fmt.Printf("│ Frames Out:         %6d frames\n", stats.FramesOut)
	fmt.Printf("│ Frames Saved:       %6d frames\n", saver.Saved())
	fmt.Printf("│ No Output:          %6d\n", stats.NoOutput.Total())
	fmt.Printf("│ Bytes In:           %6.2f MB\n", float64(stats.BytesIn)/1024/1024)
	fmt.Printf("│ Bytes Out:          %6.2f MB\n", float64(stats.BytesOut)/1024/1024)
	fmt.Printf("│ Resolution:         %s\n", stats.Resolution)
	fmt.Printf("│ Mean Latency:       %6.2f ms\n", stats.LatencyMeanMS)
	fmt.Printf("│ P95 Latency:        %6.2f ms\n", stats.LatencyP95MS)
	fmt.Printf("│ Max Latency:        %6.2f ms\n", stats.LatencyMaxMS)
	if len(stats.PipelineErrors) > 0 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Pipeline Errors\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		for category, n := range stats.PipelineErrors {
			bad.Printf("│ %-18s  %6d\n", category+":", n)
		}
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func printFinal(stats streamdecode.DecoderStats, cadence *streamdecode.CadenceStats, saver *frameSaver, uptime time.Duration, fed int, freed uint64) {
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	title.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Millisecond))
	fmt.Printf("  Frames Fed:         %d frames\n", fed)
	fmt.Printf("  Frames Decoded:     %d frames\n", stats.FramesOut)
	fmt.Printf("  Input Buffers Freed: %d / %d\n", freed, fed)
	if saver.Enabled() {
		fmt.Printf("  Frames Saved:       %d frames\n", saver.Saved())
		fmt.Printf("  Save Failures:      %d frames\n", saver.Failed())
	}
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("  No Output:          %d\n", stats.NoOutput.Total())
	fmt.Printf("    Empty:            %d\n", stats.NoOutput.Empty)
	fmt.Printf("    Need More Input:  %d\n", stats.NoOutput.NeedMoreInput)
	fmt.Printf("    Rejected:         %d\n", stats.NoOutput.Rejected)
	fmt.Printf("    Stalled:          %d\n", stats.NoOutput.Stalled)
	fmt.Printf("    Pipeline Failed:  %d\n", stats.NoOutput.PipelineFailed)
	fmt.Printf("    Pull/Map Failed:  %d/%d\n", stats.NoOutput.PullFailed, stats.NoOutput.MapFailed)
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("  Mean Decode Latency: %.2f ms\n", stats.LatencyMeanMS)
	fmt.Printf("  P95 Decode Latency:  %.2f ms\n", stats.LatencyP95MS)
	fmt.Printf("  Max Decode Latency:  %.2f ms\n", stats.LatencyMaxMS)
	if cadence.Frames >= 2 {
		fmt.Printf("  Output FPS:          %.2f (%.1f - %.1f)\n", cadence.FPSMean, cadence.FPSMin, cadence.FPSMax)
		fmt.Printf("  Jitter Mean/Max:     %.3f / %.3f s\n", cadence.JitterMean, cadence.JitterMax)
		if cadence.IsStable {
			good.Printf("  Cadence:             stable\n")
		} else {
			warn.Printf("  Cadence:             unstable\n")
		}
	}
	if stats.LastPipelineError != "" {
		bad.Printf("  Last Pipeline Error: %s\n", stats.LastPipelineError)
	}
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
