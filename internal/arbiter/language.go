package arbiter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/valpere/jsontran/internal/translator"
)

// minDetectLength is the rune count below which detection is unreliable
// and a translation is accepted without checking.
const minDetectLength = 20

// LanguageJudge rejects translations that are not written in the target
// language. It runs locally and never calls a model.
//
// The underlying detector is expensive to build; it is created on first use
// and shared afterwards.
type LanguageJudge struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func NewLanguageJudge() *LanguageJudge {
	return &LanguageJudge{}
}

func (j *LanguageJudge) Name() string {
	return "language"
}

func (j *LanguageJudge) Review(ctx context.Context, req ReviewRequest) ([]Verdict, error) {
	if len(req.Pairs) == 0 {
		return []Verdict{}, nil
	}

	tag, err := translator.ResolveLanguage(req.TargetLang)
	if err != nil {
		return nil, err
	}
	base, _ := tag.Base()
	want := strings.ToUpper(base.String())

	j.once.Do(func() {
		j.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})

	out := make([]Verdict, len(req.Pairs))
	for i, p := range req.Pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = j.check(p.Translation, want, req.TargetLang)
	}
	return out, nil
}

func (j *LanguageJudge) check(translation, want, targetLang string) Verdict {
	text := strings.TrimSpace(translation)
	if text == "" {
		return Verdict{OK: false, Feedback: "The translation is empty; translate the full text."}
	}
	if len([]rune(text)) < minDetectLength {
		return Verdict{OK: true}
	}

	lang, ok := j.detector.DetectLanguageOf(text)
	if !ok {
		return Verdict{OK: true}
	}
	got := lang.IsoCode639_1().String()
	if strings.EqualFold(got, want) {
		return Verdict{OK: true}
	}
	return Verdict{
		OK: false,
		Feedback: fmt.Sprintf("The text reads as %s, not %s. Translate it fully into %s.",
			lang.String(), targetLang, targetLang),
	}
}
