package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContractType selects which prompt pair applies to a review.
type ContractType string

const (
	ServiceLevelAgreement  ContractType = "service_level_agreement"
	MasterServiceAgreement ContractType = "master_service_agreement"
	NonDisclosureAgreement ContractType = "non_disclosure_agreement"
	SalesContract          ContractType = "sales_contract"
	Other                  ContractType = "other"
)

// ContractTypes lists every known contract type in display order.
var ContractTypes = []ContractType{
	ServiceLevelAgreement,
	MasterServiceAgreement,
	NonDisclosureAgreement,
	SalesContract,
	Other,
}

var aliases = map[string]ContractType{
	"sla": ServiceLevelAgreement,
	"msa": MasterServiceAgreement,
	"nda": NonDisclosureAgreement,
}

// Normalize maps user input such as "NDA" or "Master-Service Agreement" onto a
// ContractType. The result may be unknown; lookups fall back to the default pair.
func Normalize(s string) ContractType {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if ct, ok := aliases[s]; ok {
		return ct
	}
	return ContractType(s)
}

// Known reports whether ct is one of ContractTypes.
func (ct ContractType) Known() bool {
	for _, k := range ContractTypes {
		if k == ct {
			return true
		}
	}
	return false
}

// Pair holds the system prompts for one contract type.
type Pair struct {
	Analysis    string `yaml:"analysis"`
	Explanation string `yaml:"explanation"`
}

func (p Pair) merge(over Pair) Pair {
	if over.Analysis != "" {
		p.Analysis = over.Analysis
	}
	if over.Explanation != "" {
		p.Explanation = over.Explanation
	}
	return p
}

// Catalog is an immutable lookup table from contract type to prompts.
type Catalog struct {
	pairs    map[ContractType]Pair
	fallback Pair
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		pairs:    make(map[ContractType]Pair, len(builtin)),
		fallback: defaultPair,
	}
	for ct, p := range builtin {
		c.pairs[ct] = p
	}
	return c
}

// Load returns the built-in catalog with the YAML file at path merged over it.
// An empty path yields the built-ins. The file maps contract types (or the key
// "default") to analysis/explanation prompts; empty fields keep the built-in text.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	var file map[string]Pair
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	for key, p := range file {
		if strings.EqualFold(strings.TrimSpace(key), "default") {
			c.fallback = c.fallback.merge(p)
			continue
		}
		ct := Normalize(key)
		base, ok := c.pairs[ct]
		if !ok {
			base = c.fallback
		}
		c.pairs[ct] = base.merge(p)
	}
	return c, nil
}

// Lookup returns the prompt pair for ct, or the default pair for unknown types.
func (c *Catalog) Lookup(ct ContractType) Pair {
	if p, ok := c.pairs[Normalize(string(ct))]; ok {
		return p.withFallback(c.fallback)
	}
	return c.fallback
}

func (p Pair) withFallback(fb Pair) Pair {
	if p.Analysis == "" {
		p.Analysis = fb.Analysis
	}
	if p.Explanation == "" {
		p.Explanation = fb.Explanation
	}
	return p
}

// Analysis returns the batch analysis system prompt for ct.
func (c *Catalog) Analysis(ct ContractType) string { return c.Lookup(ct).Analysis }

// Explanation returns the clause explanation system prompt for ct.
func (c *Catalog) Explanation(ct ContractType) string { return c.Lookup(ct).Explanation }
