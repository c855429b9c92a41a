package main

// routeForSize picks the delivery path for an artifact of the given byte
// size. The decision is made once, right after download, and carried on
// the VideoJob so the dispatcher never re-derives it.
func routeForSize(size int64, cfg *Config) (Route, error) {
	switch {
	case size <= cfg.StandardMaxBytes:
		return RouteStandard, nil
	case size <= cfg.ExtendedMaxBytes:
		if !cfg.ExtendedConfigured() {
			return "", &ConfigError{
				Key:    "TELEGRAM_LOCAL_API_URL",
				Reason: "required for artifacts over the standard limit",
			}
		}
		return RouteExtended, nil
	default:
		return "", &SizeLimitError{Size: size, Limit: cfg.ExtendedMaxBytes}
	}
}
