package proxy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
)

// Candidate is one proxy extracted from the public listing. Only entries
// flagged as elite and HTTPS-capable make it past the parse.
type Candidate struct {
	URL string // https://host:port
}

// Finder discovers working proxies: it scrapes a listing page for
// candidates and validates them against a known echo endpoint. Finding no
// working proxy is a normal outcome, not an error.
type Finder struct {
	listingURL string
	probeURL   string
	httpClient *http.Client
	logger     logger.Logger
}

// probeResponse is the echo endpoint's body; origin carries the egress IP
type probeResponse struct {
	Origin string `json:"origin"`
}

// NewFinder creates a proxy finder from the proxy config section.
func NewFinder(cfg *config.ProxyConfig, log logger.Logger) *Finder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Finder{
		listingURL: cfg.ListingURL,
		probeURL:   cfg.ProbeURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

// ParseCandidates fetches the listing page and extracts candidate proxies
// from its table. Malformed rows are skipped with a warning; they never
// abort the parse.
func (f *Finder) ParseCandidates() ([]Candidate, error) {
	resp, err := f.httpClient.Get(f.listingURL)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to fetch proxy listing: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("proxy listing returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse proxy listing: %v", err),
		}
	}

	var candidates []Candidate
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) == 0 {
			return // header row
		}
		if len(cells) < 7 {
			f.logger.WarnWithFields("skipping malformed proxy listing row", map[string]interface{}{
				"cells": len(cells),
			})
			return
		}
		if cells[4] == "elite proxy" && cells[6] == "yes" {
			candidates = append(candidates, Candidate{URL: "https://" + cells[0] + ":" + cells[1]})
		}
	})

	f.logger.InfoWithFields("parsed proxy candidates", map[string]interface{}{
		"count": len(candidates),
	})

	return candidates, nil
}

// Validate probes the echo endpoint through the candidate and reports
// whether a well-formed response came back.
func (f *Finder) Validate(candidate Candidate) bool {
	proxyURL, err := url.Parse(candidate.URL)
	if err != nil {
		f.logger.WarnWithFields("invalid proxy address", map[string]interface{}{
			"proxy": candidate.URL,
			"error": err.Error(),
		})
		return false
	}

	client := &http.Client{
		Timeout: f.httpClient.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}

	resp, err := client.Get(f.probeURL)
	if err != nil {
		f.logger.WarnWithFields("proxy probe failed", map[string]interface{}{
			"proxy": candidate.URL,
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	var probe probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil || probe.Origin == "" {
		f.logger.WarnWithFields("proxy returned a malformed probe response", map[string]interface{}{
			"proxy": candidate.URL,
		})
		return false
	}

	f.logger.InfoWithFields("proxy validated", map[string]interface{}{
		"proxy":  candidate.URL,
		"origin": probe.Origin,
	})

	return true
}

// FirstValid scans the candidates in order and returns the first one that
// validates. ok is false when none do.
func (f *Finder) FirstValid(candidates []Candidate) (Candidate, bool) {
	for _, candidate := range candidates {
		if f.Validate(candidate) {
			return candidate, true
		}
	}
	return Candidate{}, false
}

// RandomValid draws up to maxTries candidates uniformly at random, with
// replacement, and returns the first that validates. With maxTries zero or
// no candidates it returns immediately without probing.
func (f *Finder) RandomValid(candidates []Candidate, maxTries int) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	for i := 0; i < maxTries; i++ {
		candidate := candidates[rand.Intn(len(candidates))]
		if f.Validate(candidate) {
			return candidate, true
		}
	}
	return Candidate{}, false
}
