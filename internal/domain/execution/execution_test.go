package execution

import (
	"errors"
	"testing"

	"github.com/codeforge/gateway/internal/domain"
)

func TestParseLanguage(t *testing.T) {
	for _, in := range []string{"python", "Python", " javascript "} {
		if _, err := ParseLanguage(in); err != nil {
			t.Errorf("ParseLanguage(%q): %v", in, err)
		}
	}
	for _, in := range []string{"", "ruby", "js"} {
		if _, err := ParseLanguage(in); !errors.Is(err, domain.ErrUnsupportedLanguage) {
			t.Errorf("ParseLanguage(%q): expected ErrUnsupportedLanguage, got %v", in, err)
		}
	}
}

func TestResult_Failed(t *testing.T) {
	if (Result{Output: "ok"}).Failed() {
		t.Error("output only should not fail")
	}
	if !(Result{Error: "SyntaxError"}).Failed() {
		t.Error("error should fail")
	}
}
