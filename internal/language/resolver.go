package language

import (
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// Confidence grades how trustworthy a detection result is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Detection is the resolved language of a document. It is computed once per
// document session and reused for every segment; per-segment text is too
// short to re-detect reliably.
type Detection struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
}

const (
	// DefaultCode is used when detection comes up empty.
	DefaultCode = "en"
	defaultName = "English"

	minSampleRunes = 40
	narrowSample   = 600
	wideSample     = 3000
)

// Languages the service has voices for. Detection outside this set falls
// back to DefaultCode with low confidence.
var supported = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Polish,
	lingua.Swedish,
	lingua.Turkish,
	lingua.Russian,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
}

// Resolver detects document language and decides whether translation is
// needed for a target.
type Resolver struct {
	detector lingua.LanguageDetector
	fallback Detection
}

// NewResolver builds a detector over the supported-voice languages.
// defaultCode is the code reported when detection comes up empty; blank or
// unrecognized values fall back to DefaultCode.
func NewResolver(defaultCode string) *Resolver {
	return &Resolver{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			Build(),
		fallback: fallbackDetection(defaultCode),
	}
}

func fallbackDetection(code string) Detection {
	code = normalizeCode(code)
	for _, lang := range supported {
		if strings.ToLower(lang.IsoCode639_1().String()) == code {
			return Detection{Code: code, Name: lang.String(), Confidence: ConfidenceLow}
		}
	}
	return Detection{Code: DefaultCode, Name: defaultName, Confidence: ConfidenceLow}
}

// Detect resolves the language of text using a two-attempt strategy: a
// narrow sample first, then a widened one. A widened success is graded
// medium; undetermined text and very short samples grade low.
func (r *Resolver) Detect(text string) Detection {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minSampleRunes {
		if lang, ok := r.detector.DetectLanguageOf(trimmed); ok {
			return detection(lang, ConfidenceLow)
		}
		return r.fallback
	}

	if lang, ok := r.detector.DetectLanguageOf(firstRunes(trimmed, narrowSample)); ok {
		return detection(lang, ConfidenceHigh)
	}
	if lang, ok := r.detector.DetectLanguageOf(firstRunes(trimmed, wideSample)); ok {
		return detection(lang, ConfidenceMedium)
	}
	return r.fallback
}

// NeedsTranslation reports whether text in source must be translated to
// reach target. Codes are compared case-insensitively with any region
// subtag stripped, so "en-US" and "en" are the same language.
func NeedsTranslation(source, target string) bool {
	s := normalizeCode(source)
	t := normalizeCode(target)
	if s == "" || t == "" {
		return false
	}
	return s != t
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

func detection(lang lingua.Language, conf Confidence) Detection {
	return Detection{
		Code:       strings.ToLower(lang.IsoCode639_1().String()),
		Name:       lang.String(),
		Confidence: conf,
	}
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
