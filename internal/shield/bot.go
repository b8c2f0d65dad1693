package shield

import "strings"

// Bot categories reported by BotDetector.
const (
	CategoryHuman        = "human"
	CategorySearchEngine = "search_engine"
	CategoryPreview      = "preview"
	CategoryAutomation   = "automation"
	CategoryHeadless     = "headless"
	CategoryGenericBot   = "generic_bot"
	CategoryEmptyUA      = "empty_user_agent"
)

var (
	searchEngineAgents = []string{
		"googlebot", "bingbot", "duckduckbot", "yandexbot", "baiduspider",
		"applebot", "slurp",
	}
	previewAgents = []string{
		"slackbot", "twitterbot", "facebookexternalhit", "linkedinbot",
		"discordbot", "whatsapp", "telegrambot", "embedly",
	}
	automationAgents = []string{
		"curl/", "wget/", "python-requests", "python-urllib", "go-http-client",
		"scrapy", "okhttp", "java/", "libwww-perl", "httpie", "aiohttp",
	}
	headlessAgents = []string{"headlesschrome", "phantomjs", "selenium", "puppeteer", "playwright"}
	genericBotHint = []string{"bot", "crawler", "spider", "scraper"}
)

// BotDetector classifies user agents. Search-engine crawlers and link-preview
// fetchers are allowed; other bot categories are denied.
type BotDetector struct{}

// Classify returns the category of userAgent and whether it should be denied.
func (BotDetector) Classify(userAgent string) (string, bool) {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	switch {
	case ua == "":
		return CategoryEmptyUA, true
	case containsAny(ua, searchEngineAgents):
		return CategorySearchEngine, false
	case containsAny(ua, previewAgents):
		return CategoryPreview, false
	case containsAny(ua, headlessAgents):
		return CategoryHeadless, true
	case containsAny(ua, automationAgents):
		return CategoryAutomation, true
	case containsAny(ua, genericBotHint):
		return CategoryGenericBot, true
	default:
		return CategoryHuman, false
	}
}
