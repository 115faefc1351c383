package browser

import (
	"net/http/httptest"
	"testing"

	"opf-quickbuy/internal/model"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    model.BrowserInfo
		wantErr bool
	}{
		{
			name:   "screen and color",
			header: `color-depth=24, screen-height=1080, screen-width=1920`,
			want:   model.BrowserInfo{ColorDepth: 24, ScreenHeight: 1080, ScreenWidth: 1920},
		},
		{
			name:   "time zone and language",
			header: `tz-offset=-60, lang="de-DE"`,
			want:   model.BrowserInfo{TimeZoneOffset: -60, Language: "de-DE"},
		},
		{
			name:   "java flag",
			header: `java=?1`,
			want:   model.BrowserInfo{JavaEnabled: true},
		},
		{
			name:   "unknown keys ignored",
			header: `color-depth=30, platform="MacIntel"`,
			want:   model.BrowserInfo{ColorDepth: 30},
		},
		{
			name:    "empty header",
			header:  "   ",
			wantErr: true,
		},
		{
			name:    "malformed dictionary",
			header:  `color-depth=`,
			wantErr: true,
		},
		{
			name:    "integer as string",
			header:  `screen-width="1920"`,
			wantErr: true,
		},
		{
			name:    "inner list",
			header:  `lang=("en" "de")`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.BrowserInfo
			err := ParseHeader(tt.header, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/quickbuy/sessions", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r.Header.Set("Origin", "https://shop.example.com")
	r.Header.Set(HeaderName, `screen-width=390, screen-height=844, tz-offset=300`)

	info, err := FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}

	want := model.BrowserInfo{
		AcceptHeader:      "application/json",
		JavaEnabled:       false,
		JavaScriptEnabled: true,
		Language:          "en-US",
		ScreenHeight:      844,
		ScreenWidth:       390,
		UserAgent:         "Mozilla/5.0",
		OriginURL:         "https://shop.example.com",
		TimeZoneOffset:    300,
	}
	if *info != want {
		t.Errorf("FromRequest() = %+v, want %+v", *info, want)
	}
}

func TestFromRequestHeaderOverridesLanguage(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set(HeaderName, `lang="fr-FR"`)

	info, err := FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if info.Language != "fr-FR" {
		t.Errorf("Language = %q, want %q", info.Language, "fr-FR")
	}
}

func TestFromRequestMalformedHeaderKeepsDefaults(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("User-Agent", "curl/8")
	r.Header.Set(HeaderName, `!!!`)

	info, err := FromRequest(r)
	if err == nil {
		t.Fatal("FromRequest() error = nil, want error")
	}
	if info.UserAgent != "curl/8" || !info.JavaScriptEnabled {
		t.Errorf("FromRequest() = %+v, want defaults from standard headers", *info)
	}
}

func TestPrimaryLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en-US,en;q=0.9", "en-US"},
		{"de;q=0.8", "de"},
		{" fr-CA ", "fr-CA"},
		{"*", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := primaryLanguage(tt.in); got != tt.want {
			t.Errorf("primaryLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
