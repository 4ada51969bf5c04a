package install

import "encoding/json"

// downloadPlan is the decoded return value of a provider's download_url
// callback. Most providers return a bare URL string; providers that also
// publish a detached checksum return the richer object form instead.
type downloadPlan struct {
	URL         string `json:"url"`
	ChecksumURL string `json:"checksum_url"`
	Algorithm   string `json:"algorithm"`
	FallbackURL string `json:"fallback_url"`
}

// UnmarshalJSON accepts either a bare string (the common case) or the
// object form carrying checksum metadata.
func (p *downloadPlan) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.URL = s
		return nil
	}

	type plain downloadPlan

	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*p = downloadPlan(obj)

	return nil
}
