package shield

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Rule is a malicious request signature.
type Rule struct {
	Name  string
	Match func(target, userAgent string) bool
}

var (
	pathTraversal = regexp.MustCompile(`(\.\./|\.\.\\|/etc/passwd|/proc/self/|\\windows\\)`)
	sqlInjection  = regexp.MustCompile(`(?i)(\bunion\b[\s+]+(all[\s+]+)?select\b|'\s*or\s*'?\d+'?\s*=\s*'?\d+|\bor\b\s+1\s*=\s*1|\bsleep\s*\(\s*\d+\s*\)|\bbenchmark\s*\(|information_schema|;\s*drop\s+table|'\s*--)`)
	scriptInject  = regexp.MustCompile(`(?i)(<\s*script|javascript:|\bon(error|load)\s*=|<\s*iframe)`)
)

var scannerAgents = []string{
	"sqlmap", "nikto", "nmap", "masscan", "acunetix", "wpscan",
	"dirbuster", "gobuster", "zgrab", "nuclei", "havij", "w3af",
}

// DefaultRules returns the built-in signatures.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "path_traversal", Match: func(target, _ string) bool { return pathTraversal.MatchString(target) }},
		{Name: "sql_injection", Match: func(target, _ string) bool { return sqlInjection.MatchString(target) }},
		{Name: "script_injection", Match: func(target, _ string) bool { return scriptInject.MatchString(target) }},
		{Name: "scanner_user_agent", Match: func(_, ua string) bool { return containsAny(ua, scannerAgents) }},
	}
}

// requestTarget returns the lowercase decoded path and query of r.
func requestTarget(r *http.Request) string {
	raw := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	target := raw
	// decode twice to catch double-encoded payloads
	for i := 0; i < 2; i++ {
		decoded, err := url.QueryUnescape(target)
		if err != nil || decoded == target {
			break
		}
		target = decoded
	}
	return strings.ToLower(target)
}

// matchRules returns the first rule matching r, if any.
func matchRules(rules []Rule, r *http.Request) (string, bool) {
	target := requestTarget(r)
	ua := strings.ToLower(r.UserAgent())
	for _, rule := range rules {
		if rule.Match(target, ua) {
			return rule.Name, true
		}
	}
	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
