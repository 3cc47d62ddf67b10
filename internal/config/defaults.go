package config

import "github.com/boostgw/boostgw/internal/models"

// Default returns the built-in configuration. The config file and env only
// need to override what differs per deployment; the catalog below is the
// consolidated service table of the deployed variants.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			Environment: "development",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Upstream: UpstreamConfig{
			Endpoint:      "https://zefame.com/api/v2",
			TimeoutSecs:   15,
			MaxRetries:    3,
			BackoffMillis: 500,
			CacheTTLSecs:  3600,
		},
		Limits: LimitsConfig{
			PurchaseCooldownSecs: 30,
			FreeCooldownSecs:     12 * 60 * 60,
			FreeQuantity:         10,
			BlockThreshold:       3,
			BlockDurationSecs:    3600,
			ThrottleRPS:          5,
			ThrottleBurst:        10,
		},
		Pricing: PricingConfig{
			Mode:            PricingDirect,
			StartingBalance: 100,
		},
		Auth: AuthConfig{
			TokenExpiryHours: 24,
		},
		Catalog: DefaultCatalog(),
	}
}

// DefaultCatalog is the consolidated pricing table. Plain data: ids, unit
// costs and margins come straight from the reseller account.
func DefaultCatalog() models.Catalog {
	return models.Catalog{
		models.PlatformInstagram: {
			"followers_real": {ID: "894", Name: "Real Followers", Cost: 0.018, Margin: 1.8, Limit: 5, PriceJPY: 2.7},
			"followers_temp": {ID: "757", Name: "Temporary Followers", Cost: 0.0078, Margin: 1.8, Limit: 10, PriceJPY: 1.4, Free: true},
			"likes":          {ID: "856", Name: "Likes", Cost: 0.0052, Margin: 2.0, Limit: 10000, PriceJPY: 1.0},
			"views":          {ID: "story", Name: "Story Views", Cost: 0.0039, Margin: 1.92, Limit: 10000, PriceJPY: 0.75},
		},
		models.PlatformTikTok: {
			"followers":  {ID: "708", Name: "Followers", Cost: 0.0199, Margin: 1.8, Limit: 30000, PriceJPY: 3.58},
			"likes":      {ID: "988", Name: "Likes", Cost: 0.0004, Margin: 2.25, Limit: 500000, PriceJPY: 0.09},
			"comments":   {ID: "694", Name: "Comments", Cost: 0.0239, Margin: 1.8, Limit: 10000, PriceJPY: 4.3},
			"views_live": {ID: "794", Name: "Live Views", Cost: 0.0239, Margin: 1.8, Limit: 100000, PriceJPY: 4.3},
			"shares":     {ID: "786", Name: "Shares", Cost: 0.0034, Margin: 1.8, Limit: 50000, PriceJPY: 0.61},
			"reposts":    {ID: "1039", Name: "Reposts", Cost: 0.0335, Margin: 1.8, Limit: 50000, PriceJPY: 6.03},
		},
		models.PlatformTwitter: {
			"followers": {ID: "781", Name: "Followers", Cost: 0.0322, Margin: 2.0, Limit: 10000, PriceJPY: 6.44},
			"views":     {ID: "399", Name: "Tweet Views", Cost: 0.0003, Margin: 1.8, Limit: 100000, PriceJPY: 0.054},
			"retweets":  {ID: "403", Name: "Retweets", Cost: 0.0481, Margin: 1.8, Limit: 5000, PriceJPY: 8.66},
		},
	}
}
