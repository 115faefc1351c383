// Package browser collects the shopper's browser details that payment
// providers use for 3-D Secure risk checks.
//
// Wallet clients report what only the browser knows (screen size, color
// depth, time zone) in the OPF-Browser-Info header, an RFC 8941 dictionary:
//
//	OPF-Browser-Info: color-depth=24, screen-height=1080, screen-width=1920, tz-offset=-60, lang="de-DE"
//
// Everything else is taken from standard request headers.
package browser

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"

	"opf-quickbuy/internal/model"
)

// HeaderName carries the client-side browser details.
const HeaderName = "OPF-Browser-Info"

// Dictionary keys of HeaderName.
const (
	keyColorDepth   = "color-depth"
	keyScreenHeight = "screen-height"
	keyScreenWidth  = "screen-width"
	keyTZOffset     = "tz-offset"
	keyLanguage     = "lang"
	keyJava         = "java"
)

var knownKeys = map[string]bool{
	keyColorDepth:   true,
	keyScreenHeight: true,
	keyScreenWidth:  true,
	keyTZOffset:     true,
	keyLanguage:     true,
	keyJava:         true,
}

// AcceptHeader is reported to the backend for every submission; wallet
// flows talk JSON.
const AcceptHeader = "application/json"

// ParseHeader applies the OPF-Browser-Info dictionary to info. Unknown keys
// are ignored.
func ParseHeader(header string, info *model.BrowserInfo) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errors.New("empty " + HeaderName + " header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return fmt.Errorf("invalid %s header: %w", HeaderName, err)
	}

	for _, name := range dict.Names() {
		if !knownKeys[name] {
			continue
		}
		member, _ := dict.Get(name)
		item, ok := member.(httpsfv.Item)
		if !ok {
			return fmt.Errorf("%s value must be an item", name)
		}

		switch name {
		case keyColorDepth:
			err = setInt(name, item, &info.ColorDepth)
		case keyScreenHeight:
			err = setInt(name, item, &info.ScreenHeight)
		case keyScreenWidth:
			err = setInt(name, item, &info.ScreenWidth)
		case keyTZOffset:
			err = setInt(name, item, &info.TimeZoneOffset)
		case keyLanguage:
			s, ok := item.Value.(string)
			if !ok {
				return fmt.Errorf("%s value must be a string", name)
			}
			info.Language = s
		case keyJava:
			b, ok := item.Value.(bool)
			if !ok {
				return fmt.Errorf("%s value must be a boolean", name)
			}
			info.JavaEnabled = b
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func setInt(name string, item httpsfv.Item, dst *int) error {
	v, ok := item.Value.(int64)
	if !ok {
		return fmt.Errorf("%s value must be an integer", name)
	}
	*dst = int(v)
	return nil
}

// FromRequest builds the browser info for r. A malformed OPF-Browser-Info
// header is returned as an error alongside the info gathered from the
// standard headers.
func FromRequest(r *http.Request) (*model.BrowserInfo, error) {
	info := &model.BrowserInfo{
		AcceptHeader:      AcceptHeader,
		JavaEnabled:       false,
		JavaScriptEnabled: true,
		Language:          primaryLanguage(r.Header.Get("Accept-Language")),
		UserAgent:         r.UserAgent(),
		OriginURL:         r.Header.Get("Origin"),
	}

	header := r.Header.Get(HeaderName)
	if header == "" {
		return info, nil
	}
	return info, ParseHeader(header, info)
}

// primaryLanguage returns the first tag of an Accept-Language value.
func primaryLanguage(accept string) string {
	first, _, _ := strings.Cut(accept, ",")
	tag, _, _ := strings.Cut(first, ";")
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return ""
	}
	return tag
}
