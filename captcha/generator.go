package captcha

import (
	"errors"
	"image/color"
	"strings"

	"github.com/mojocn/base64Captcha"
)

// Kind selects the puzzle style.
type Kind string

const (
	// KindMath renders an arithmetic expression; the answer is its result.
	KindMath Kind = "math"
	// KindDigit renders a string of digits to be copied.
	KindDigit Kind = "digit"
)

// Puzzle is one generated challenge: Image is presented to the user, Answer
// is stored server-side.
type Puzzle struct {
	Image  string
	Answer string
}

// Generator produces puzzles.
type Generator interface {
	Generate() (Puzzle, error)
}

// GeneratorConfig sizes the rendered image.
type GeneratorConfig struct {
	Kind   Kind
	Width  int
	Height int
	Length int
	Noise  int
}

type imageGenerator struct {
	driver base64Captcha.Driver
}

// NewGenerator returns a PNG puzzle generator backed by base64Captcha.
func NewGenerator(cfg GeneratorConfig) (Generator, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("captcha image size must be positive")
	}

	switch cfg.Kind {
	case KindMath, "":
		bg := &color.RGBA{R: 240, G: 240, B: 246, A: 255}
		driver := base64Captcha.NewDriverMath(
			cfg.Height,
			cfg.Width,
			cfg.Noise,
			base64Captcha.OptionShowHollowLine,
			bg,
			nil,
			nil,
		)
		return &imageGenerator{driver: driver}, nil
	case KindDigit:
		if cfg.Length <= 0 {
			return nil, errors.New("digit captcha length must be positive")
		}
		driver := base64Captcha.NewDriverDigit(cfg.Height, cfg.Width, cfg.Length, 0.7, 80)
		return &imageGenerator{driver: driver}, nil
	default:
		return nil, errors.New("unsupported captcha kind")
	}
}

func (g *imageGenerator) Generate() (Puzzle, error) {
	_, question, answer := g.driver.GenerateIdQuestionAnswer()
	item, err := g.driver.DrawCaptcha(question)
	if err != nil {
		return Puzzle{}, err
	}
	return Puzzle{
		Image:  item.EncodeB64string(),
		Answer: strings.TrimSpace(answer),
	}, nil
}
