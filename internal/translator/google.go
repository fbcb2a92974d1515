package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/api/option"
)

// GoogleTranslator sends whole batches to the Cloud Translation API. It has
// no notion of temperature or model and cannot take reviewer feedback, so
// it is only usable as a BatchTranslator.
type GoogleTranslator struct {
	client *translate.Client
}

// NewGoogleTranslator builds a client from an API key or a credentials
// file; with neither, application default credentials are used.
func NewGoogleTranslator(ctx context.Context, cfg ServiceConfig) (*GoogleTranslator, error) {
	opts := []option.ClientOption{}
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Credentials != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}
	return &GoogleTranslator{client: client}, nil
}

func (s *GoogleTranslator) Name() string {
	return "google"
}

func (s *GoogleTranslator) Close() error {
	return s.client.Close()
}

func (s *GoogleTranslator) TranslateBatch(ctx context.Context, req BatchRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	target, err := ResolveLanguage(req.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	translations, err := s.client.Translate(ctx, req.Texts, target, &translate.Options{
		Source: language.English,
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("google: translation failed: %w", err)
	}
	if len(translations) != len(req.Texts) {
		return nil, &ShapeError{Want: len(req.Texts), Got: len(translations)}
	}

	out := make([]string, len(translations))
	for i, tr := range translations {
		out[i] = tr.Text
	}
	return out, nil
}

var (
	nameIndexOnce sync.Once
	nameIndex     map[string]language.Tag
)

// ResolveLanguage turns a target language given as free text ("Chinese",
// "french") or as a BCP 47 code ("zh", "pt-BR") into a language tag.
func ResolveLanguage(name string) (language.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return language.Und, fmt.Errorf("%w: empty target language", ErrInvalidInput)
	}

	nameIndexOnce.Do(func() {
		nameIndex = make(map[string]language.Tag)
		namer := display.English.Languages()
		for _, tag := range display.Supported.Tags() {
			if n := namer.Name(tag); n != "" {
				key := strings.ToLower(n)
				if _, exists := nameIndex[key]; !exists {
					nameIndex[key] = tag
				}
			}
		}
	})

	if tag, ok := nameIndex[strings.ToLower(name)]; ok {
		return tag, nil
	}
	if tag, err := language.Parse(name); err == nil {
		return tag, nil
	}
	return language.Und, fmt.Errorf("%w: unknown target language %q", ErrInvalidInput, name)
}
