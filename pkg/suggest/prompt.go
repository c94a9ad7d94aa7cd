package suggest

import (
	"fmt"
	"strings"
)

// buildPrompt builds the instruction text sent to the model: desired
// count, exclusion list, and strict formatting instructions so the
// response stays machine-parseable.
func buildPrompt(count int, exclude []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Suggest %d public IPv4 addresses that belong to well-known CDN edge networks ", count))
	sb.WriteString("(Cloudflare, Fastly, CloudFront) and are likely to be reachable without interference.\n")

	if len(exclude) > 0 {
		sb.WriteString("Do not include any of these already seen addresses: ")
		sb.WriteString(strings.Join(exclude, ", "))
		sb.WriteString(".\n")
	}

	sb.WriteString("Respond with only a JSON array of dotted-quad strings, no prose, no code fences. ")
	sb.WriteString(`Example: ["104.16.1.1","151.101.0.1"]`)

	return sb.String()
}
