package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"deckgen/internal/bootstrap"
	"deckgen/internal/domain"
)

type generateOptions struct {
	requestFile string
	topic       string
	slides      int
	audience    string
	template    string
	locale      string
	out         string
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one deck through the pipeline in this process",
	Long: `Creates a job, runs every stage synchronously and writes the bundle.
The request comes from flags or from a YAML file with the same field names
as the HTTP API (topic, slide_count, audience, template, locale).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := genOpts.request()
		if err != nil {
			return err
		}
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		rt, err := bootstrap.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		job, err := rt.Jobs.Create(ctx, req)
		if err != nil {
			return err
		}
		runErr := rt.Orchestrator.Run(ctx, job.ID)
		job, err = rt.Jobs.Get(ctx, job.ID)
		if err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("deck %s failed: %w", job.ID, runErr)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "deck %s %s (%d%%)\n", job.ID, job.Status, job.Progress)
		fmt.Fprintf(out, "artifact %s\n", job.ArtifactRef)
		if genOpts.out == "" {
			return nil
		}
		data, err := rt.Artifacts.Read(ctx, job.ArtifactRef)
		if err != nil {
			return err
		}
		if err := os.WriteFile(genOpts.out, data, 0o644); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
		fmt.Fprintf(out, "bundle written to %s\n", genOpts.out)
		return nil
	},
}

type requestFile struct {
	Topic      string `yaml:"topic"`
	SlideCount int    `yaml:"slide_count"`
	Audience   string `yaml:"audience"`
	Template   string `yaml:"template"`
	Locale     string `yaml:"locale"`
}

// request merges the YAML file, when given, with explicitly set flags.
// Flags win.
func (o generateOptions) request() (domain.DeckRequest, error) {
	var rf requestFile
	if o.requestFile != "" {
		raw, err := os.ReadFile(o.requestFile)
		if err != nil {
			return domain.DeckRequest{}, fmt.Errorf("read request: %w", err)
		}
		if err := yaml.Unmarshal(raw, &rf); err != nil {
			return domain.DeckRequest{}, fmt.Errorf("parse request: %w", err)
		}
	}
	if o.topic != "" {
		rf.Topic = o.topic
	}
	if o.slides > 0 {
		rf.SlideCount = o.slides
	}
	if o.audience != "" {
		rf.Audience = o.audience
	}
	if o.template != "" {
		rf.Template = o.template
	}
	if o.locale != "" {
		rf.Locale = o.locale
	}
	if strings.TrimSpace(rf.Topic) == "" {
		return domain.DeckRequest{}, fmt.Errorf("a topic is required (--topic or request file)")
	}
	return domain.DeckRequest{
		Topic:      rf.Topic,
		SlideCount: rf.SlideCount,
		Audience:   domain.Audience(rf.Audience),
		Template:   domain.Template(rf.Template),
		Locale:     rf.Locale,
	}, nil
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genOpts.requestFile, "request", "r", "", "YAML file describing the deck request")
	f.StringVar(&genOpts.topic, "topic", "", "Deck topic")
	f.IntVar(&genOpts.slides, "slides", 0, "Number of slides (5-30)")
	f.StringVar(&genOpts.audience, "audience", "", "Audience: business, academic, general, technical or executive")
	f.StringVar(&genOpts.template, "template", "", "Template: corporate, academic, startup or minimal")
	f.StringVar(&genOpts.locale, "locale", "", "Deck language, en or id")
	f.StringVarP(&genOpts.out, "out", "o", "", "Copy the finished bundle to this path")
}
