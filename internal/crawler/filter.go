package crawler

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/corpuscrawl/internal/config"
)

// defaultDisallowedExtensions are file extensions that never carry
// extractable page text.
var defaultDisallowedExtensions = []string{
	// Images
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".ico", ".tif", ".tiff", ".avif",
	// Archives
	".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar",
	// Audio
	".mp3", ".wav", ".ogg", ".flac", ".aac", ".m4a",
	// Video
	".mp4", ".avi", ".mov", ".mkv", ".webm", ".wmv", ".flv",
	// Executables and packages
	".exe", ".msi", ".dmg", ".deb", ".rpm", ".apk", ".bin", ".iso",
	// Documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	// Fonts
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	// Assets
	".css", ".js",
}

// ExtensionFilter rejects URLs whose path ends in a denylisted extension.
// It is immutable after construction.
type ExtensionFilter struct {
	// extensions holds lowercase extensions including the leading dot.
	extensions map[string]struct{}
}

// NewExtensionFilter creates a filter for the given extensions.
// Extensions are matched case-insensitively; a missing leading dot is added.
func NewExtensionFilter(extensions ...string) *ExtensionFilter {
	f := &ExtensionFilter{extensions: make(map[string]struct{}, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	return f
}

// DefaultExtensionFilter returns the filter for images, archives, audio,
// video, executables, office documents, PDFs, fonts and static assets.
func DefaultExtensionFilter() *ExtensionFilter {
	return NewExtensionFilter(defaultDisallowedExtensions...)
}

// IsDisallowed reports whether the URL path ends in a denylisted extension.
// The query string is ignored. Unparseable URLs fall back to the raw text
// up to the first '?'.
func (f *ExtensionFilter) IsDisallowed(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}

	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, found := f.extensions[ext]
	return found
}

// Extensions returns the denylisted extensions in sorted order.
func (f *ExtensionFilter) Extensions() []string {
	exts := make([]string, 0, len(f.extensions))
	for ext := range f.extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// DomainPolicy decides whether a discovered URL is in scope.
// It is immutable after construction.
type DomainPolicy struct {
	// domains are the lowercase allowed domain tokens.
	domains []string

	// mode is one of config.DomainMatchSuffix, DomainMatchSubstring or
	// DomainMatchExact.
	mode string
}

// NewDomainPolicy creates a policy for the allowed domains.
// An empty domain list makes the policy unrestricted.
func NewDomainPolicy(domains []string, mode string) (*DomainPolicy, error) {
	switch mode {
	case config.DomainMatchSuffix, config.DomainMatchSubstring, config.DomainMatchExact:
	case "":
		mode = config.DefaultDomainMatch
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomainMatch, mode)
	}

	tokens := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" && !slices.Contains(tokens, d) {
			tokens = append(tokens, d)
		}
	}

	return &DomainPolicy{domains: tokens, mode: mode}, nil
}

// Unrestricted reports whether every host is in scope.
func (p *DomainPolicy) Unrestricted() bool {
	return len(p.domains) == 0
}

// Mode returns the match mode.
func (p *DomainPolicy) Mode() string {
	return p.mode
}

// InScope reports whether the URL host matches an allowed domain.
//
// In substring mode the host:port text is searched for each token, so
// notexample.com matches example.com. In suffix mode the host must equal a
// token or end with "." followed by it. In exact mode the host must equal
// a token.
func (p *DomainPolicy) InScope(rawURL string) bool {
	if p.Unrestricted() {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	hostPort := strings.ToLower(u.Host)
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, domain := range p.domains {
		switch p.mode {
		case config.DomainMatchSubstring:
			if strings.Contains(hostPort, domain) {
				return true
			}
		case config.DomainMatchExact:
			if host == domain {
				return true
			}
		default:
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return true
			}
		}
	}
	return false
}

// PathFilter applies ignore and follow glob patterns to URL paths.
//
// Logic:
//  1. If the path matches any ignore pattern, it is skipped
//  2. If follow patterns are set and the path matches none, it is skipped
//  3. Otherwise it is crawled
type PathFilter struct {
	// ignore are URL path patterns to skip (e.g. "/admin/*", "*.php").
	ignore []string

	// follow restrict crawling to matching paths when non-empty.
	follow []string
}

// NewPathFilter creates a path filter. Both pattern lists may be empty.
func NewPathFilter(ignore, follow []string) *PathFilter {
	return &PathFilter{
		ignore: slices.Clone(ignore),
		follow: slices.Clone(follow),
	}
}

// Allows reports whether the URL path passes the ignore and follow patterns.
func (f *PathFilter) Allows(rawURL string) bool {
	if len(f.ignore) == 0 && len(f.follow) == 0 {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(f.follow) > 0 {
		for _, pattern := range f.follow {
			if matchPattern(pattern, p) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.php" matches "/index.php"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, p)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare filename patterns like "login*" match the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, path.Base(p))
		if err == nil && matched {
			return true
		}
	}

	return false
}
