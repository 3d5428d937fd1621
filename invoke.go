package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quel-style-server/modules/stylegen"
)

type invokeFlags struct {
	eventFile string
	prompt    string
	styleURL  string
	styleB64  string
	styleFile string
	feedback  string
	revised   string
}

// newInvokeCmd - 이벤트 하나를 로컬에서 실행하고 응답 JSON 출력
func newInvokeCmd() *cobra.Command {
	var f invokeFlags

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run one event through the handler and print the response",
		Example: `  quel-style-server invoke --prompt "A wizard in a forest" --style-file ./style.jpg
  quel-style-server invoke --event ./test_input.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := f.event()
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			resp := p.handler.Handle(cmd.Context(), event)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("handler failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.eventFile, "event", "", `JSON file with {"input": {...}}`)
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "prompt to rewrite")
	cmd.Flags().StringVar(&f.styleURL, "style-url", "", "style image URL")
	cmd.Flags().StringVar(&f.styleB64, "style-b64", "", "style image as base64")
	cmd.Flags().StringVar(&f.styleFile, "style-file", "", "local style image (sent as base64)")
	cmd.Flags().StringVar(&f.feedback, "feedback", "", "record feedback instead of generating (up|down)")
	cmd.Flags().StringVar(&f.revised, "revised", "", "rewritten prompt the feedback refers to")
	return cmd
}

// event - --event 파일이 있으면 우선, 없으면 개별 플래그로 구성
func (f invokeFlags) event() (stylegen.Event, error) {
	if f.eventFile != "" {
		data, err := os.ReadFile(f.eventFile)
		if err != nil {
			return stylegen.Event{}, fmt.Errorf("failed to read event file: %w", err)
		}
		var event stylegen.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return stylegen.Event{}, fmt.Errorf("failed to parse event file: %w", err)
		}
		return event, nil
	}

	styleB64 := f.styleB64
	if f.styleFile != "" {
		data, err := os.ReadFile(f.styleFile)
		if err != nil {
			return stylegen.Event{}, fmt.Errorf("failed to read style image: %w", err)
		}
		styleB64 = base64.StdEncoding.EncodeToString(data)
	}

	return stylegen.Event{
		ID: "local-test",
		Input: &stylegen.Input{
			Prompt:      f.prompt,
			StyleImgURL: f.styleURL,
			StyleImgB64: styleB64,
			Feedback:    f.feedback,
			Revised:     f.revised,
		},
	}, nil
}
