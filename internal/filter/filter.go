package filter

import (
	"log"
	"net/netip"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Heuristic categories. Cheap nuisance filtering, not a security boundary:
// everything here is trivially spoofable.
const (
	CategoryBot        = "bot"
	CategoryVPN        = "vpn"
	CategoryAdBlock    = "adblock"
	CategoryPrivileged = "root"
	CategoryPentest    = "tools"
	CategoryLocalIP    = "local"
	CategoryBlocked    = "blocked"
)

var patterns = map[string]*regexp.Regexp{
	CategoryBot:        regexp.MustCompile(`bot|crawler|spider|curl|wget|python|requests|selenium|puppeteer|mechanize|scrapy|httpx`),
	CategoryVPN:        regexp.MustCompile(`vpn|proxy|tor|vps|datacenter|aws|azure|digital.ocean|linode|vultr|virtual|hide|vpngate|expressvpn|nord|surfshark|cyberghost|hotspot`),
	CategoryAdBlock:    regexp.MustCompile(`ad.*block|ublock|adguard|ghostery|disconnect|fair.ads|adawy|ubo`),
	CategoryPrivileged: regexp.MustCompile(`root|sudo|su|administrator|system32|program.files|etc/passwd`),
	CategoryPentest:    regexp.MustCompile(`nmap|metasploit|burp|wireshark|charles|fiddler|zaproxy|owasp`),
}

// Verdict is the outcome of one classification.
type Verdict struct {
	Allowed  bool
	Category string
}

// Block is one entry on the temporary block list, as reported to operators.
type Block struct {
	Address   string    `json:"address"`
	Category  string    `json:"category"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Filter classifies requests by user-agent and source address. Repeated
// matches from the same address promote it to a temporary block list; expiry
// is the only recovery path.
type Filter struct {
	mu        sync.Mutex
	attempts  map[string]int
	blocked   map[string]Block
	threshold int
	blockFor  time.Duration
	now       func() time.Time
}

type Config struct {
	Threshold     int           // matches before the address is blocked (default 3)
	BlockDuration time.Duration // default 1 hour
}

func New(cfg Config) *Filter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = time.Hour
	}
	return &Filter{
		attempts:  make(map[string]int),
		blocked:   make(map[string]Block),
		threshold: cfg.Threshold,
		blockFor:  cfg.BlockDuration,
		now:       time.Now,
	}
}

// Check classifies a user-agent and source address. A rejected request
// increments the address's violation counter; reaching the threshold puts
// the address on the block list for the configured duration.
func (f *Filter) Check(ua, addr string) Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()

	if blk, ok := f.blocked[addr]; ok {
		if now.Before(blk.ExpiresAt) {
			return Verdict{Allowed: false, Category: CategoryBlocked}
		}
		delete(f.blocked, addr)
		delete(f.attempts, addr)
	}

	uaLower := strings.ToLower(ua)
	addrLower := strings.ToLower(addr)

	for category, pattern := range patterns {
		if pattern.MatchString(uaLower) || pattern.MatchString(addrLower) {
			f.recordViolation(addr, category, now)
			return Verdict{Allowed: false, Category: category}
		}
	}

	if isPrivateAddr(addr) {
		return Verdict{Allowed: false, Category: CategoryLocalIP}
	}

	return Verdict{Allowed: true}
}

func (f *Filter) recordViolation(addr, category string, now time.Time) {
	f.attempts[addr]++
	if f.attempts[addr] >= f.threshold {
		f.blocked[addr] = Block{
			Address:   addr,
			Category:  category,
			ExpiresAt: now.Add(f.blockFor),
		}
		log.Printf("Blocked (%s): %s", category, addr)
	}
}

// Blocklist returns the active blocks, pruning expired ones.
func (f *Filter) Blocklist() []Block {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	blocks := make([]Block, 0, len(f.blocked))
	for addr, blk := range f.blocked {
		if now.Before(blk.ExpiresAt) {
			blocks = append(blocks, blk)
		} else {
			delete(f.blocked, addr)
			delete(f.attempts, addr)
		}
	}
	return blocks
}

func isPrivateAddr(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
