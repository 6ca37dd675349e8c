package payload

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"", // tool agent, version filled in at pick time
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"it-IT,it;q=0.9",
	"fr-FR,fr;q=0.9",
	"de-DE,de;q=0.9",
}

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"

// HeaderOptions describes the request the headers are built for
type HeaderOptions struct {
	Method      string
	Scheme      string
	Host        string
	KeepAlive   bool
	PayloadSize int    // size of a generated payload, 0 if none
	Data        string // literal request body, used when no payload is generated
	CustomJSON  string // JSON object of header overrides
}

// CarriesBody reports whether requests of this method send the payload
func CarriesBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// BuildHeaders synthesizes the request header set. rng may be nil to use the global source.
func BuildHeaders(opts HeaderOptions, rng *rand.Rand) http.Header {
	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}

	h := make(http.Header)

	ua := userAgents[intn(len(userAgents))]
	if ua == "" {
		ua = fmt.Sprintf("httpstress/%d.%d", 1+intn(9), intn(10))
	}
	h.Set("User-Agent", ua)
	h.Set("Accept", acceptHeader)
	h.Set("Accept-Language", acceptLanguages[intn(len(acceptLanguages))])
	if opts.KeepAlive {
		h.Set("Connection", "keep-alive")
	} else {
		h.Set("Connection", "close")
	}
	h.Set("Referer", fmt.Sprintf("%s://%s/", opts.Scheme, opts.Host))

	if CarriesBody(opts.Method) {
		switch {
		case opts.PayloadSize > 0:
			h.Set("Content-Type", "application/octet-stream")
			h.Set("Content-Length", strconv.Itoa(opts.PayloadSize))
		case opts.Data != "":
			if json.Valid([]byte(opts.Data)) {
				h.Set("Content-Type", "application/json")
			} else {
				h.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
	}

	if opts.CustomJSON != "" {
		custom, err := parseCustomHeaders(opts.CustomJSON)
		if err != nil {
			logrus.WithError(err).WithField("headers", opts.CustomJSON).
				Warn("Ignoring custom headers, a JSON object is required")
		} else {
			for k, v := range custom {
				h.Set(k, v)
			}
		}
	}

	return h
}

func parseCustomHeaders(raw string) (map[string]string, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(parsed))
	for k, v := range parsed {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}
