package models

import (
	"fmt"
	"sort"
	"strings"
)

// Supported platforms
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformTwitter   = "twitter"
)

// Service is one purchasable boost type on one platform.
// Loaded at startup from config; never mutated afterwards.
type Service struct {
	ID       string  `json:"id"`     // upstream service identifier
	Name     string  `json:"name"`   // display name
	Cost     float64 `json:"cost"`   // upstream unit cost in USD
	Margin   float64 `json:"margin"` // resale multiplier
	Limit    int     `json:"limit"`  // max quantity per order
	PriceJPY float64 `json:"jpy"`    // display price in JPY
	Free     bool    `json:"free"`   // eligible for the free tier
}

// Price is the unit price charged to the customer.
func (s Service) Price() float64 {
	return s.Cost * s.Margin
}

// Catalog maps platform -> service kind -> service.
type Catalog map[string]map[string]Service

// Lookup returns the service for a platform/kind pair.
func (c Catalog) Lookup(platform, kind string) (Service, bool) {
	services, ok := c[platform]
	if !ok {
		return Service{}, false
	}
	svc, ok := services[kind]
	return svc, ok
}

// FreeService returns the platform's free-tier service, if any.
func (c Catalog) FreeService(platform string) (Service, bool) {
	for _, kind := range sortedKeys(c[platform]) {
		if svc := c[platform][kind]; svc.Free {
			return svc, true
		}
	}
	return Service{}, false
}

// Platforms returns the platform names in stable order.
func (c Catalog) Platforms() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds returns the service kinds of a platform in stable order.
func (c Catalog) Kinds(platform string) []string {
	return sortedKeys(c[platform])
}

// Validate checks the catalog for entries the pipeline cannot price.
func (c Catalog) Validate() error {
	for platform, services := range c {
		if len(services) == 0 {
			return fmt.Errorf("platform %q has no services", platform)
		}
		for kind, svc := range services {
			if svc.ID == "" {
				return fmt.Errorf("%s/%s: missing upstream service id", platform, kind)
			}
			if svc.Cost < 0 || svc.Margin <= 0 {
				return fmt.Errorf("%s/%s: invalid pricing", platform, kind)
			}
			if svc.Limit < 1 {
				return fmt.Errorf("%s/%s: limit must be at least 1", platform, kind)
			}
		}
	}
	return nil
}

// URLMatchesPlatform reports whether url plausibly points at the platform.
// Lenient on purpose: any URL mentioning the platform's domain passes.
func URLMatchesPlatform(url, platform string) bool {
	url = strings.ToLower(url)
	if platform == PlatformTwitter {
		return strings.Contains(url, "twitter.com") || strings.Contains(url, "x.com")
	}
	return strings.Contains(url, platform+".com")
}

func sortedKeys(m map[string]Service) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
