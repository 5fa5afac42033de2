package delegate

import (
	"context"
	"image"
	"regexp"
	"sort"
	"strings"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OCRConfidence is the confidence of a catalog name read from the photo.
const OCRConfidence = 0.7

// Word is one recognized word and its pixel box.
type Word struct {
	Text string
	Box  image.Rectangle
}

// TextReader extracts words from an encoded image.
type TextReader func(ctx context.Context, img []byte) ([]Word, error)

// OCRBackend reads menu cards, labels and packaging in the photo and reports
// every catalog food it finds named there.
type OCRBackend struct {
	read     TextReader
	patterns []keyPattern
	logger   *zap.Logger
}

type keyPattern struct {
	key   string
	first string
	re    *regexp.Regexp
}

// NewOCRBackend creates an OCR backend using Tesseract.
//
// Arguments:
// - language: Tesseract language code, e.g. "eng".
// - catalogKeys: The food names to look for.
// - logger: Logger for recognized text; nil disables logging.
//
// Returns:
// - *OCRBackend: The backend.
func NewOCRBackend(language string, catalogKeys []string, logger *zap.Logger) *OCRBackend {
	return NewOCRBackendWithReader(TesseractReader(language), catalogKeys, logger)
}

// NewOCRBackendWithReader creates an OCR backend around any TextReader.
func NewOCRBackendWithReader(read TextReader, catalogKeys []string, logger *zap.Logger) *OCRBackend {
	keys := append([]string(nil), catalogKeys...)
	sort.Strings(keys)

	patterns := make([]keyPattern, 0, len(keys))
	for _, key := range keys {
		words := strings.Fields(strings.ReplaceAll(key, "_", " "))
		if len(words) == 0 {
			continue
		}
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		patterns = append(patterns, keyPattern{
			key:   key,
			first: words[0],
			re:    regexp.MustCompile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`),
		})
	}

	return &OCRBackend{read: read, patterns: patterns, logger: logging.Component(logger, "delegate_ocr")}
}

// Name implements Backend.
func (b *OCRBackend) Name() string { return BackendOCR }

// Detect implements Backend.
func (b *OCRBackend) Detect(ctx context.Context, req Request) ([]common.Candidate, error) {
	words, err := b.read(ctx, req.Image)
	if err != nil {
		return nil, errors.Wrap(err, "ocr")
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	text := strings.Join(texts, " ")
	b.logger.Debug("ocr text", zap.Int("words", len(words)), zap.String("text", truncate(text, 200)))

	var out []common.Candidate
	for _, p := range b.patterns {
		if !p.re.MatchString(text) {
			continue
		}
		c := common.Candidate{Name: p.key, Confidence: OCRConfidence, Method: common.MethodDelegate}
		for _, w := range words {
			if strings.EqualFold(strings.Trim(w.Text, ".,:;!?()"), p.first) && !w.Box.Empty() {
				c.BBox = common.BoxFromRect(w.Box)
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// TesseractReader returns a TextReader backed by gosseract. A client is
// created per call since gosseract clients are not safe for concurrent use.
func TesseractReader(language string) TextReader {
	return func(ctx context.Context, img []byte) ([]Word, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client := gosseract.NewClient()
		defer client.Close()

		if language != "" {
			if err := client.SetLanguage(language); err != nil {
				return nil, errors.Wrap(err, "set ocr language")
			}
		}
		if err := client.SetImageFromBytes(img); err != nil {
			return nil, errors.Wrap(err, "set ocr image")
		}

		boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			return nil, errors.Wrap(err, "ocr bounding boxes")
		}

		words := make([]Word, 0, len(boxes))
		for _, box := range boxes {
			if strings.TrimSpace(box.Word) == "" {
				continue
			}
			words = append(words, Word{Text: box.Word, Box: box.Box})
		}
		return words, nil
	}
}
