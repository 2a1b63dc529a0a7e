package httpclient

// defaultHeaders identifies the client as a regular browser session on the
// vendor's web property. Cookies are not required by any endpoint.
func defaultHeaders() map[string]string {
	return map[string]string{
		"user-agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"accept":             "*/*",
		"accept-language":    "en-US,en;q=0.9",
		"origin":             "https://www.nba.com",
		"referer":            "https://www.nba.com/",
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-site",
		"x-nba-stats-origin": "stats",
		"x-nba-stats-token":  "true",
	}
}
