package provider

import (
	"fmt"
	"net"

	"github.com/projectdiscovery/mapcidr"
)

// DefaultProvider is the label assigned to addresses that match no
// known non-default prefix.
const DefaultProvider = "Cloudflare"

// Network maps a CDN edge range to its operator. Prefix is the
// two-octet form used for synthesis and classification, CIDR the
// covering range used for capacity accounting.
type Network struct {
	Provider string
	Prefix   string
	CIDR     string

	ipnet *net.IPNet
}

// defaultNetworks is the fixed table of known CDN edge ranges.
var defaultNetworks = []Network{
	// Cloudflare
	{Provider: "Cloudflare", Prefix: "104.16.", CIDR: "104.16.0.0/16"},
	{Provider: "Cloudflare", Prefix: "104.17.", CIDR: "104.17.0.0/16"},
	{Provider: "Cloudflare", Prefix: "104.18.", CIDR: "104.18.0.0/16"},
	{Provider: "Cloudflare", Prefix: "104.19.", CIDR: "104.19.0.0/16"},
	{Provider: "Cloudflare", Prefix: "104.20.", CIDR: "104.20.0.0/16"},
	{Provider: "Cloudflare", Prefix: "104.21.", CIDR: "104.21.0.0/16"},
	{Provider: "Cloudflare", Prefix: "172.64.", CIDR: "172.64.0.0/16"},
	{Provider: "Cloudflare", Prefix: "172.65.", CIDR: "172.65.0.0/16"},
	{Provider: "Cloudflare", Prefix: "172.66.", CIDR: "172.66.0.0/16"},
	{Provider: "Cloudflare", Prefix: "172.67.", CIDR: "172.67.0.0/16"},
	{Provider: "Cloudflare", Prefix: "162.159.", CIDR: "162.159.0.0/16"},
	{Provider: "Cloudflare", Prefix: "188.114.", CIDR: "188.114.0.0/16"},
	{Provider: "Cloudflare", Prefix: "198.41.", CIDR: "198.41.0.0/16"},
	{Provider: "Cloudflare", Prefix: "141.101.", CIDR: "141.101.0.0/16"},
	{Provider: "Cloudflare", Prefix: "190.93.", CIDR: "190.93.0.0/16"},
	{Provider: "Cloudflare", Prefix: "108.162.", CIDR: "108.162.0.0/16"},
	// Fastly
	{Provider: "Fastly", Prefix: "151.101.", CIDR: "151.101.0.0/16"},
	{Provider: "Fastly", Prefix: "146.75.", CIDR: "146.75.0.0/16"},
	{Provider: "Fastly", Prefix: "199.232.", CIDR: "199.232.0.0/16"},
	{Provider: "Fastly", Prefix: "167.82.", CIDR: "167.82.0.0/16"},
	// Amazon CloudFront
	{Provider: "CloudFront", Prefix: "13.32.", CIDR: "13.32.0.0/16"},
	{Provider: "CloudFront", Prefix: "13.35.", CIDR: "13.35.0.0/16"},
	{Provider: "CloudFront", Prefix: "108.138.", CIDR: "108.138.0.0/16"},
	{Provider: "CloudFront", Prefix: "143.204.", CIDR: "143.204.0.0/16"},
}

func init() {
	for i := range defaultNetworks {
		_, ipnet, err := net.ParseCIDR(defaultNetworks[i].CIDR)
		if err != nil {
			panic(fmt.Sprintf("provider: invalid CIDR in registry: %s", defaultNetworks[i].CIDR))
		}
		defaultNetworks[i].ipnet = ipnet
	}
}

// Networks returns the full registry table
func Networks() []Network {
	return defaultNetworks
}

// SynthesisPrefixes returns the two-octet prefixes used for fallback
// address synthesis
func SynthesisPrefixes() []string {
	prefixes := make([]string, 0, len(defaultNetworks))
	for _, n := range defaultNetworks {
		prefixes = append(prefixes, n.Prefix)
	}
	return prefixes
}

// Capacity returns the total number of addresses covered by the
// registry ranges, i.e. the upper bound of what synthesis can produce
func Capacity() uint64 {
	var total uint64
	for _, n := range defaultNetworks {
		total += mapcidr.AddressCountIpnet(n.ipnet)
	}
	return total
}

// Contains reports whether the address falls inside any registry range
func Contains(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	for _, n := range defaultNetworks {
		if n.ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
