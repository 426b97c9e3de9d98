package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Quizmaster" {
		t.Errorf("T(AppTitle) = %q, want 'Quizmaster'", got)
	}

	got = T(ctx, "SubmitQuiz")
	if got != "Submit answers" {
		t.Errorf("T(SubmitQuiz) = %q, want 'Submit answers'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Квизмастер" {
		t.Errorf("T(AppTitle) = %q, want 'Квизмастер'", got)
	}

	got = T(ctx, "SubmitQuiz")
	if got != "Отправить ответы" {
		t.Errorf("T(SubmitQuiz) = %q, want 'Отправить ответы'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 mark"},
		{"en", 5, "5 marks"},
		{"ru", 1, "1 балл"},
		{"ru", 3, "3 балла"},
		{"ru", 5, "5 баллов"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "Marks", tt.count); got != tt.want {
			t.Errorf("%s: Tp(Marks, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuizCreated", map[string]any{"Code": "AB12CD"})
	if got != "Quiz created. Share the code AB12CD with your students." {
		t.Errorf("Td(QuizCreated) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "en")
	for lang, want := range map[string]bool{"en": true, "ru": true, "en-GB": true, "de": false, "??": false} {
		if got := Supported(lang); got != want {
			t.Errorf("Supported(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestMiddlewareLanguageSelection(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		name       string
		query      string
		cookie     string
		accept     string
		want       string
		wantCookie bool
	}{
		{"default", "", "", "", "Quizmaster", false},
		{"accept-language", "", "", "ru-RU,ru;q=0.9", "Квизмастер", false},
		{"cookie beats header", "", "en", "ru", "Quizmaster", false},
		{"query sets cookie", "ru", "", "en", "Квизмастер", true},
		{"unsupported query ignored", "de", "", "", "Quizmaster", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "AppTitle")
			}))
			target := "/"
			if tt.query != "" {
				target += "?lang=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("AppTitle = %q, want %q", got, tt.want)
			}
			setCookie := len(rec.Result().Cookies()) > 0
			if setCookie != tt.wantCookie {
				t.Errorf("cookie set = %v, want %v", setCookie, tt.wantCookie)
			}
		})
	}
}
