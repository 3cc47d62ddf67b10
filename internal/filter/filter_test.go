package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

func TestCheck_AllowsPlainBrowser(t *testing.T) {
	f := New(Config{})

	verdict := f.Check(browserUA, "203.0.113.7")
	assert.True(t, verdict.Allowed)
}

func TestCheck_RejectsAutomationTools(t *testing.T) {
	f := New(Config{})

	for _, ua := range []string{
		"curl/8.4.0",
		"python-requests/2.31",
		"Wget/1.21",
		"Mozilla/5.0 (compatible; Googlebot/2.1)",
	} {
		verdict := f.Check(ua, "203.0.113.7")
		assert.False(t, verdict.Allowed, "expected %q to be rejected", ua)
		assert.Equal(t, CategoryBot, verdict.Category)
	}
}

func TestCheck_RejectsVPNHints(t *testing.T) {
	f := New(Config{})

	verdict := f.Check("Mozilla/5.0 NordVPN/6.0", "203.0.113.7")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, CategoryVPN, verdict.Category)
}

func TestCheck_RejectsPentestTools(t *testing.T) {
	f := New(Config{})

	verdict := f.Check("BurpSuite Professional", "203.0.113.7")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, CategoryPentest, verdict.Category)
}

func TestCheck_RejectsPrivateAddresses(t *testing.T) {
	f := New(Config{})

	for _, addr := range []string{"127.0.0.1", "10.1.2.3", "192.168.1.5", "172.16.0.9"} {
		verdict := f.Check(browserUA, addr)
		assert.False(t, verdict.Allowed, "expected %s to be rejected", addr)
		assert.Equal(t, CategoryLocalIP, verdict.Category)
	}
}

func TestCheck_ViolationsPromoteToBlocklist(t *testing.T) {
	f := New(Config{Threshold: 3, BlockDuration: time.Hour})

	// Two violations: rejected but not yet blocked.
	f.Check("curl/8.4.0", "203.0.113.7")
	f.Check("curl/8.4.0", "203.0.113.7")
	assert.Empty(t, f.Blocklist())

	// Third violation trips the threshold.
	f.Check("curl/8.4.0", "203.0.113.7")
	blocks := f.Blocklist()
	require.Len(t, blocks, 1)
	assert.Equal(t, "203.0.113.7", blocks[0].Address)

	// Now even a clean user-agent from that address is rejected.
	verdict := f.Check(browserUA, "203.0.113.7")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, CategoryBlocked, verdict.Category)
}

func TestCheck_BlockExpires(t *testing.T) {
	f := New(Config{Threshold: 1, BlockDuration: time.Hour})

	now := time.Now()
	f.now = func() time.Time { return now }

	f.Check("curl/8.4.0", "203.0.113.7")
	require.Len(t, f.Blocklist(), 1)

	verdict := f.Check(browserUA, "203.0.113.7")
	require.False(t, verdict.Allowed)

	// After expiry the address gets a clean slate.
	now = now.Add(time.Hour + time.Minute)
	verdict = f.Check(browserUA, "203.0.113.7")
	assert.True(t, verdict.Allowed)
	assert.Empty(t, f.Blocklist())
}

func TestCheck_OtherClientsUnaffected(t *testing.T) {
	f := New(Config{Threshold: 1})

	f.Check("curl/8.4.0", "203.0.113.7")

	verdict := f.Check(browserUA, "198.51.100.4")
	assert.True(t, verdict.Allowed)
}
