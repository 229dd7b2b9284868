// Robo - wake word voice assistant for small robots.
// Listens for the wake phrase, records the question, answers through an LLM
// and speaks the reply while the eyes animate.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	robolog "github.com/teslashibe/go-robo/internal/log"
	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/robo"
	"github.com/teslashibe/go-robo/pkg/session"
	"github.com/teslashibe/go-robo/pkg/vad"
)

// Set at build time.
var version = "dev"

type options struct {
	configPath string
	envFiles   []string
	logLevel   string
	jsonLogs   bool
	debug      bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "robo",
		Short:         "Robo - wake word voice assistant",
		Long:          "Robo listens for its wake phrase, transcribes the question, asks a language model and speaks the answer while its eyes animate.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", os.Getenv("ROBO_CONFIG"), "YAML config file (ROBO_CONFIG)")
	pf.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "log as JSON")
	pf.BoolVar(&opts.debug, "debug", false, "enable verbose debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the voice loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts)
		},
	}
	rootCmd.RunE = runCmd.RunE

	rootCmd.AddCommand(
		runCmd,
		newSayCmd(opts),
		newBlinkCmd(opts),
		newVADCmd(opts),
		newCheckCmd(opts),
		newConfigCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// load resolves the config and installs the process logger.
func load(opts *options) (*session.Config, *slog.Logger, error) {
	cfg, err := session.Resolve(opts.configPath, opts.envFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.debug {
		cfg.Log.Level = "debug"
		cfg.VAD.Diagnostic = true
	}
	if opts.jsonLogs {
		cfg.Log.JSON = true
	}
	logger := robolog.New(os.Stderr, cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runLoop(opts *options) error {
	cfg, logger, err := load(opts)
	if err != nil {
		return err
	}

	app, err := robo.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	defer app.Shutdown()

	ctx := context.Background()
	if err := app.Init(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newSayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Speak a sentence through the configured speech backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			speaker, closeFn, err := robo.NewSpeaker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			text := strings.Join(args, " ")
			fmt.Printf("🗣️  %s\n", text)
			return speaker.Speak(ctx, text)
		},
	}
}

func newBlinkCmd(opts *options) *cobra.Command {
	var kind string
	var duration time.Duration
	var intensity float64

	cmd := &cobra.Command{
		Use:   "blink [L|R|B]",
		Short: "Blink the eyes, or play an animation with --animate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			target := cfg.Turn.BlinkTarget
			if len(args) == 1 {
				if target, err = device.ParseTarget(args[0]); err != nil {
					return err
				}
			}

			dev, err := device.New(cfg.Device, logger)
			if err != nil {
				return err
			}
			defer dev.Close()

			ctx, cancel := signalContext()
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Turn.DeviceTimeout+duration)
			defer cancelTimeout()

			if kind != "" {
				if err := dev.Animate(ctx, target, device.Kind(kind), intensity, duration); err != nil {
					return err
				}
				fmt.Printf("👀 %s %s on %s ✅\n", kind, duration, dev.Name())
				return nil
			}
			if err := dev.Blink(ctx, target); err != nil {
				return err
			}
			fmt.Printf("👀 blink %s on %s ✅\n", target, dev.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "animate", "", "animation kind (thinking, listening, speaking, idle)")
	cmd.Flags().DurationVar(&duration, "duration", time.Second, "animation duration")
	cmd.Flags().Float64Var(&intensity, "intensity", 1, "animation intensity 0..1")
	return cmd
}

func newVADCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "vad <file.wav>...",
		Short: "Run the voice gate over WAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(opts)
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				chunk, err := audioio.DecodeWAV(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				res := vad.Analyze(chunk.Mono(audioio.ModelSampleRate), cfg.VAD)
				mark := "🔇"
				if res.Voiced {
					mark = "🗣️ "
				}
				fmt.Printf("%s %s: voiced=%v longest=%v mean=%.4f peak=%.4f frames=%d\n",
					mark, path, res.Voiced, res.LongestRun, res.MeanEnergy, res.PeakEnergy, res.Frames)
			}
			return nil
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the recognizer, language model and eyes are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			failed := 0
			report := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Printf("❌ %-8s %v\n", name, err)
					return
				}
				fmt.Printf("✅ %-8s ok\n", name)
			}

			rec, err := robo.NewRecognizer(ctx, cfg.STT, logger)
			if err == nil {
				err = rec.Health(ctx)
				rec.Close()
			}
			report("stt", err)

			llm, err := robo.NewInference(ctx, cfg.LLM, cfg.Reply, logger)
			if err == nil {
				err = llm.Health(ctx)
				llm.Close()
			}
			report("llm", err)

			dev, err := device.New(cfg.Device, logger)
			if err == nil {
				if h, ok := dev.(*device.HTTP); ok {
					_, err = h.Status(ctx)
				}
				dev.Close()
			}
			report("device", err)

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(opts)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}
