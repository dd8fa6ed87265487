// Package main provides the lyric extraction CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cjs1301/lyric-extractor/cmd/lyric-extract/ui"
	"github.com/cjs1301/lyric-extractor/internal/config"
	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/observability"
	"github.com/cjs1301/lyric-extractor/pkg/extractor"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	quiet      bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "lyric-extract",
	Short: "Extract structured lyrics from scanned song sheets",
	Long: `lyric-extract turns scanned PDFs or page images of worship song sheets
into structured lyrics.

Pages are rasterized, optionally OCR'd with Google Cloud Vision, and
transcribed by a vision-capable language model. The raw transcription
streams to stdout as it arrives; the structured result can be emitted
as JSON with --json.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // .env is optional

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Decorated output would corrupt piped JSON.
		ui.Quiet = quiet || outputJSON

		logLevel := cfg.Observability.LogLevel
		if quiet {
			logLevel = "error"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      "console",
			ServiceName: "lyric-extract",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print structured lyrics as JSON instead of raw text")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress logging")

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	var (
		mode    string
		model   string
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract [file...]",
		Short: "Extract lyrics from a PDF or one or more page images",
		Long: `Extract runs the full pipeline on the given input. A single .pdf
argument is rasterized page by page; any other arguments are treated
as page images in the order given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if mode != "" {
				cfg.LLM.Mode = mode
			}
			if model != "" {
				cfg.LLM.Model = model
			}

			client, err := extractor.NewClientWithConfig(cfg)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer client.Close()

			events, err := startStream(ctx, client, args)
			if err != nil {
				return err
			}

			lyrics, text, err := consume(events)
			if err != nil {
				return err
			}

			if output != "" {
				if err := writeResult(output, lyrics, text); err != nil {
					return err
				}
				logger.Info().Str("path", output).Msg("Result written")
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(lyrics)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "transcription mode: vision or ocr (default: config)")
	cmd.Flags().StringVar(&model, "model", "", "model name override")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the transcription to a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall extraction timeout")

	return cmd
}

// startStream selects the PDF or image entry point from the arguments.
func startStream(ctx context.Context, client *extractor.Client, args []string) (<-chan extractor.StreamEvent, error) {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".pdf") {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", args[0], err)
		}
		return client.ProcessPDF(ctx, data)
	}

	images := make([][]byte, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		images = append(images, data)
	}
	return client.ProcessImages(ctx, images)
}

// consume drains the event stream, echoing transcription chunks to
// stdout unless structured JSON output was requested.
func consume(events <-chan extractor.StreamEvent) (*extractor.StructuredLyrics, string, error) {
	var (
		lyrics  *extractor.StructuredLyrics
		text    string
		bar     *ui.ProgressBar
		waiting *ui.Spinner
	)
	stopSpinner := func() {
		if waiting != nil {
			waiting.Stop()
			waiting = nil
		}
	}
	defer stopSpinner()

	for ev := range events {
		switch ev.Type {
		case extractor.EventStart:
			if total, ok := ev.Payload.(int); ok && total > 1 {
				bar = ui.NewProgressBar(int64(total), "페이지 렌더링")
			}
		case extractor.EventPageRendered:
			if p, ok := ev.Payload.(domain.PageRenderedPayload); ok && bar != nil {
				bar.Set(int64(p.Page))
				if p.Page == p.Total {
					bar.Finish()
					waiting = ui.NewSpinner("전사 대기 중")
					waiting.Start()
				}
			}
		case extractor.EventOCRComplete:
			if p, ok := ev.Payload.(domain.OCRCompletePayload); ok {
				logger.Info().Int("pages", p.Pages).Int("blocks", p.Blocks).Msg("OCR complete")
			}
		case extractor.EventLLMStreaming:
			stopSpinner()
			if chunk, ok := ev.Payload.(string); ok && !outputJSON {
				fmt.Print(chunk)
			}
		case extractor.EventError:
			stopSpinner()
			err, _ := ev.Payload.(error)
			ui.Error("추출 실패: %v", err)
			return nil, "", fmt.Errorf("extraction failed: %w", err)
		case extractor.EventComplete:
			stopSpinner()
			if p, ok := ev.Payload.(extractor.CompletePayload); ok {
				lyrics = p.Lyrics
				text = p.Text
			}
			if !outputJSON {
				fmt.Println()
			}
		}
	}

	if lyrics == nil {
		return nil, "", fmt.Errorf("stream ended without a result")
	}
	ui.Success("추출 완료: %s (%d개 섹션)", lyrics.Title, len(lyrics.Sections))
	return lyrics, text, nil
}

// writeResult saves the final transcription, or the structured lyrics
// when JSON output is active.
func writeResult(path string, lyrics *extractor.StructuredLyrics, text string) error {
	var data []byte
	if outputJSON {
		var err error
		data, err = json.MarshalIndent(lyrics, "", "  ")
		if err != nil {
			return fmt.Errorf("encode lyrics: %w", err)
		}
	} else {
		data = []byte(text)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("lyric-extract v0.3.0")
		},
	}
}
